package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// These tests pin down the SQL that carries the concurrency guarantees on
// PostgreSQL: row locks and guarded updates.

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func TestProductRepo_LockByIDsTx_UsesForUpdateInIDOrder(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewProductRepository(db)

	a, b := uuid.New(), uuid.New()
	rows := sqlmock.NewRows([]string{"id", "name", "price", "stock", "min_stock", "active"}).
		AddRow(a.String(), "Cafe", "12.50", "10.000", "2.000", true).
		AddRow(b.String(), "Azucar", "8.00", "3.000", "1.000", true)

	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id IN \(\$1,\$2\) ORDER BY id FOR UPDATE`).
		WillReturnRows(rows)

	products, err := repo.LockByIDsTx(db, []uuid.UUID{a, b})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.True(t, products[0].Stock.Equal(decimal.NewFromInt(10)))
	assert.True(t, products[1].Price.Equal(decimal.RequireFromString("8")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_DecrementStockTx_GuardsOnStockAndActive(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewProductRepository(db)
	id := uuid.New()

	query := `UPDATE "products" SET "stock"=stock - \$1.* WHERE id = \$\d+ AND active = \$\d+ AND stock >= \$\d+`

	mock.ExpectExec(query).WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.DecrementStockTx(db, id, decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(query).WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.DecrementStockTx(db, id, decimal.NewFromInt(99))
	require.NoError(t, err)
	assert.False(t, ok, "guard must report a rejected decrement")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_SetStockTx_IsCompareAndSwap(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewProductRepository(db)

	mock.ExpectExec(`UPDATE "products" SET "stock"=\$1.* WHERE id = \$\d+ AND stock = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SetStockTx(db, uuid.New(), decimal.NewFromInt(5), decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCashRegisterRepo_LockSharedTx_UsesForShare(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewCashRegisterRepository(db)
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "user_id", "status", "opening_amount"}).
		AddRow(id.String(), uuid.New().String(), "open", "100.00")
	mock.ExpectQuery(`SELECT \* FROM "cash_register_sessions" WHERE id = \$1 .*FOR SHARE`).
		WillReturnRows(rows)

	s, err := repo.LockSharedTx(db, id)
	require.NoError(t, err)
	assert.Equal(t, "open", string(s.Status))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCashRegisterRepo_CloseTx_OnlyClosesOpenSession(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewCashRegisterRepository(db)

	mock.ExpectExec(`UPDATE "cash_register_sessions" SET .* WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.CloseTx(db, uuid.New(), decimal.NewFromInt(150), time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaleRepo_TopProducts_FiltersCompletedAndOrdersDeterministically(t *testing.T) {
	db, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewSaleRepository(db)

	p := uuid.New()
	rows := sqlmock.NewRows([]string{"product_id", "product_name", "total_quantity", "total_revenue"}).
		AddRow(p.String(), "Cafe", "4.000", "50.00")

	mock.ExpectQuery(`(?s)SUM\(si.quantity\) AS total_quantity.*JOIN sales s ON s.id = si.sale_id WHERE s.status = \$1 AND s.created_at >= \$2 AND s.created_at <= \$3 GROUP BY .*ORDER BY total_quantity DESC, si.product_id ASC LIMIT \$4`).
		WillReturnRows(rows)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := repo.TopProducts(t.Context(), start, start.Add(24*time.Hour), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p, got[0].ProductID)
	assert.True(t, got[0].TotalRevenue.Equal(decimal.NewFromInt(50)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_x`, escapeLike("50% off_x"))
}
