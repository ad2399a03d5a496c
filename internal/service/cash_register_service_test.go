package service_test

import (
	"context"
	"sync"
	"testing"

	"poscore/internal/dto"
	"poscore/internal/model"
	"poscore/internal/service"
	"poscore/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCashRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cashier := env.user(t, "cajero1", model.RoleCashier)

	rate := dec("1050.5")
	s, err := env.registers.Open(ctx, cashier.UserID, dto.OpenCashRegisterRequest{OpeningAmount: dec("100"), ExchangeRate: &rate})
	require.NoError(t, err)
	assert.Equal(t, "open", s.Status)
	assert.Equal(t, cashier.UserID.String(), s.UserID)
	assert.True(t, s.OpeningAmount.Equal(dec("100")))
	assert.Nil(t, s.ClosedAt)
	assert.Equal(t, 1, env.events.count(worker.EventCashRegisterOpened))

	open, err := env.registers.GetOpenByUser(ctx, cashier.UserID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, s.ID, open.ID)
}

func TestOpenCashRegister_AlreadyOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cashier := env.user(t, "cajero1", model.RoleCashier)
	env.openSession(t, cashier, "100")

	_, err := env.registers.Open(ctx, cashier.UserID, dto.OpenCashRegisterRequest{OpeningAmount: dec("50")})
	assert.ErrorIs(t, err, service.ErrSessionAlreadyOpen)

	sessions, err := env.registers.List(ctx, dto.SessionFilter{UserID: &cashier.UserID})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestOpenCashRegister_ConcurrentOpensYieldOneSession(t *testing.T) {
	env := newTestEnv(t)
	cashier := env.user(t, "cajero1", model.RoleCashier)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.registers.Open(context.Background(), cashier.UserID, dto.OpenCashRegisterRequest{OpeningAmount: dec("10")})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, service.ErrSessionAlreadyOpen)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
}

func TestOpenCashRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	cashier := env.user(t, "cajero1", model.RoleCashier)
	zero := decimal.Zero

	cases := map[string]dto.OpenCashRegisterRequest{
		"negative opening":  {OpeningAmount: dec("-1")},
		"zero rate":         {OpeningAmount: dec("1"), ExchangeRate: &zero},
		"sub-cent opening":  {OpeningAmount: dec("1.001")},
		"oversized opening": {OpeningAmount: dec("10000000000")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.registers.Open(context.Background(), cashier.UserID, req)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}
}

func TestCloseCashRegister_Reconciles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cashier := env.user(t, "cajero1", model.RoleCashier)
	session := env.openSession(t, cashier, "100.00")
	p := env.product(t, "vino", "50.00", "10")
	env.sell(t, cashier, session.ID, "50", item(p.ID, "1"))

	summary, err := env.registers.Close(ctx, cashier, uuid.MustParse(session.ID), dto.CloseCashRegisterRequest{ClosingAmount: dec("150.00")})
	require.NoError(t, err)

	assert.Equal(t, "closed", summary.Session.Status)
	assert.NotNil(t, summary.Session.ClosedAt)
	assert.True(t, summary.TotalSales.Equal(dec("50.00")))
	assert.Equal(t, int64(1), summary.TotalTransactions)
	assert.True(t, summary.ExpectedCash.Equal(dec("150.00")))
	require.NotNil(t, summary.TotalCash)
	assert.True(t, summary.TotalCash.Equal(dec("150.00")))
	require.NotNil(t, summary.Difference)
	assert.True(t, summary.Difference.IsZero())
	assert.Equal(t, 1, env.events.count(worker.EventCashRegisterClosed))

	t.Run("twice", func(t *testing.T) {
		_, err := env.registers.Close(ctx, cashier, uuid.MustParse(session.ID), dto.CloseCashRegisterRequest{ClosingAmount: dec("1")})
		assert.ErrorIs(t, err, service.ErrSessionNotOpen)
	})

	t.Run("reopen after close", func(t *testing.T) {
		next := env.openSession(t, cashier, "0")
		assert.NotEqual(t, session.ID, next.ID)
	})
}

func TestCloseCashRegister_ExcludesCancelledAndOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c1 := env.user(t, "cajero1", model.RoleCashier)
	c2 := env.user(t, "cajero2", model.RoleCashier)
	s1 := env.openSession(t, c1, "20")
	s2 := env.openSession(t, c2, "0")
	p := env.product(t, "cafe", "10", "100")

	env.sell(t, c1, s1.ID, "10", item(p.ID, "1"))
	card := saleRequest(s1.ID, "20", item(p.ID, "2"))
	card.PaymentMethod = "card"
	_, err := env.sales.Create(ctx, c1, card)
	require.NoError(t, err)
	cancelled := env.sell(t, c1, s1.ID, "30", item(p.ID, "3"))
	require.NoError(t, env.sales.Cancel(ctx, uuid.MustParse(cancelled.ID)))
	env.sell(t, c2, s2.ID, "40", item(p.ID, "4"))

	summary, err := env.registers.Close(ctx, c1, uuid.MustParse(s1.ID), dto.CloseCashRegisterRequest{ClosingAmount: dec("45")})
	require.NoError(t, err)

	// expected_cash counts every completed sale, card payments included.
	assert.True(t, summary.TotalSales.Equal(dec("30")))
	assert.Equal(t, int64(2), summary.TotalTransactions)
	assert.True(t, summary.ExpectedCash.Equal(dec("50")))
	assert.True(t, summary.Difference.Equal(dec("-5")))
}

func TestCloseCashRegister_Authorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, "cajero1", model.RoleCashier)
	other := env.user(t, "cajero2", model.RoleCashier)
	admin := env.user(t, "admin", model.RoleAdmin)
	session := env.openSession(t, owner, "0")
	id := uuid.MustParse(session.ID)

	_, err := env.registers.Close(ctx, other, id, dto.CloseCashRegisterRequest{ClosingAmount: dec("0")})
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = env.registers.Close(ctx, admin, id, dto.CloseCashRegisterRequest{ClosingAmount: dec("0")})
	assert.NoError(t, err)

	_, err = env.registers.Close(ctx, owner, uuid.New(), dto.CloseCashRegisterRequest{ClosingAmount: dec("0")})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestGetSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cashier := env.user(t, "cajero1", model.RoleCashier)
	session := env.openSession(t, cashier, "10")
	p := env.product(t, "galletas", "2.50", "10")
	env.sell(t, cashier, session.ID, "5", item(p.ID, "2"))
	id := uuid.MustParse(session.ID)

	first, err := env.registers.GetSummary(ctx, id)
	require.NoError(t, err)
	second, err := env.registers.GetSummary(ctx, id)
	require.NoError(t, err)

	assert.True(t, first.TotalSales.Equal(dec("5")))
	assert.True(t, first.ExpectedCash.Equal(dec("15")))
	assert.Nil(t, first.TotalCash)
	assert.Nil(t, first.Difference)
	assert.True(t, first.TotalSales.Equal(second.TotalSales))
	assert.Equal(t, first.TotalTransactions, second.TotalTransactions)
	assert.True(t, first.ExpectedCash.Equal(second.ExpectedCash))

	_, err = env.registers.GetSummary(ctx, uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestGetOpenSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cashier := env.user(t, "cajero1", model.RoleCashier)

	none, err := env.registers.GetAnyOpen(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	s := env.openSession(t, cashier, "0")
	anyOpen, err := env.registers.GetAnyOpen(ctx)
	require.NoError(t, err)
	require.NotNil(t, anyOpen)
	assert.Equal(t, s.ID, anyOpen.ID)

	other, err := env.registers.GetOpenByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, other)
}
