package service

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestStorageErr(t *testing.T) {
	nf := notFound("Producto no encontrado")

	assert.Nil(t, storageErr(nil, nf))
	assert.Same(t, nf, storageErr(gorm.ErrRecordNotFound, nf))

	domain := newError(ErrInsufficientStock, "sin stock")
	assert.Same(t, domain, storageErr(domain, nf))

	wrapped := storageErr(errors.New("connection reset"), nf)
	assert.ErrorIs(t, wrapped, ErrUnavailable)
	assert.NotContains(t, wrapped.Error(), "connection reset")

	assert.ErrorIs(t, storageErr(gorm.ErrRecordNotFound, nil), ErrUnavailable)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrValidation, KindOf(validationError("x")))
	assert.Nil(t, KindOf(errors.New("plain")))
	assert.False(t, errors.Is(validationError("x"), ErrNotFound))
}

func TestFitsScale(t *testing.T) {
	assert.True(t, fitsScale(decimal.RequireFromString("1.25"), 2))
	assert.True(t, fitsScale(decimal.RequireFromString("1.250"), 2))
	assert.False(t, fitsScale(decimal.RequireFromString("1.255"), 2))
}

func TestFitsColumn(t *testing.T) {
	assert.True(t, fitsColumn(decimal.RequireFromString("9999999999.99"), 2))
	assert.False(t, fitsColumn(decimal.RequireFromString("10000000000"), 2))
	assert.True(t, fitsColumn(decimal.RequireFromString("999999999.999"), 3))
	assert.False(t, fitsColumn(decimal.RequireFromString("1000000000"), 3))
	assert.False(t, fitsColumn(decimal.RequireFromString("1.001"), 2))
}

func TestActorCanActOn(t *testing.T) {
	owner := Actor{UserID: [16]byte{1}, Role: "cashier"}
	other := Actor{UserID: [16]byte{2}, Role: "cashier"}
	admin := Actor{UserID: [16]byte{3}, Role: "admin"}

	assert.True(t, owner.canActOn(owner.UserID))
	assert.False(t, other.canActOn(owner.UserID))
	assert.True(t, admin.canActOn(owner.UserID))
}
