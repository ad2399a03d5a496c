package repository

import (
	"context"
	"time"

	"poscore/internal/dto"
	"poscore/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CashRegisterRepository interface {
	// Create fails with gorm.ErrDuplicatedKey when the user already has an
	// open session (partial unique index).
	Create(ctx context.Context, s *model.CashRegisterSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CashRegisterSession, error)
	FindOpenByUser(ctx context.Context, userID uuid.UUID) (*model.CashRegisterSession, error)
	FindAnyOpen(ctx context.Context) (*model.CashRegisterSession, error)
	List(ctx context.Context, filter dto.SessionFilter) ([]model.CashRegisterSession, error)

	// LockSharedTx takes a shared row lock: many sales may hold it at once,
	// but close (LockForCloseTx) waits until they commit.
	LockSharedTx(tx *gorm.DB, id uuid.UUID) (*model.CashRegisterSession, error)
	LockForCloseTx(tx *gorm.DB, id uuid.UUID) (*model.CashRegisterSession, error)
	// CloseTx transitions open → closed. It reports false when the session
	// was no longer open.
	CloseTx(tx *gorm.DB, id uuid.UUID, closingAmount decimal.Decimal, closedAt time.Time) (bool, error)

	DB() *gorm.DB
}

type cashRegisterRepo struct{ db *gorm.DB }

func NewCashRegisterRepository(db *gorm.DB) CashRegisterRepository {
	return &cashRegisterRepo{db: db}
}

func (r *cashRegisterRepo) DB() *gorm.DB { return r.db }

func (r *cashRegisterRepo) Create(ctx context.Context, s *model.CashRegisterSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *cashRegisterRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CashRegisterSession, error) {
	var s model.CashRegisterSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	return &s, err
}

func (r *cashRegisterRepo) FindOpenByUser(ctx context.Context, userID uuid.UUID) (*model.CashRegisterSession, error) {
	var s model.CashRegisterSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.SessionOpen).
		First(&s).Error
	return &s, err
}

func (r *cashRegisterRepo) FindAnyOpen(ctx context.Context) (*model.CashRegisterSession, error) {
	var s model.CashRegisterSession
	err := r.db.WithContext(ctx).
		Where("status = ?", model.SessionOpen).
		Order("opened_at DESC").
		First(&s).Error
	return &s, err
}

func (r *cashRegisterRepo) List(ctx context.Context, filter dto.SessionFilter) ([]model.CashRegisterSession, error) {
	var sessions []model.CashRegisterSession
	q := r.db.WithContext(ctx).Model(&model.CashRegisterSession{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Start != nil {
		q = q.Where("opened_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		q = q.Where("opened_at <= ?", *filter.End)
	}
	err := q.Order("opened_at DESC").Find(&sessions).Error
	return sessions, err
}

func (r *cashRegisterRepo) LockSharedTx(tx *gorm.DB, id uuid.UUID) (*model.CashRegisterSession, error) {
	var s model.CashRegisterSession
	err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Where("id = ?", id).First(&s).Error
	return &s, err
}

func (r *cashRegisterRepo) LockForCloseTx(tx *gorm.DB, id uuid.UUID) (*model.CashRegisterSession, error) {
	var s model.CashRegisterSession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&s).Error
	return &s, err
}

func (r *cashRegisterRepo) CloseTx(tx *gorm.DB, id uuid.UUID, closingAmount decimal.Decimal, closedAt time.Time) (bool, error) {
	res := tx.Model(&model.CashRegisterSession{}).
		Where("id = ? AND status = ?", id, model.SessionOpen).
		Updates(map[string]interface{}{
			"status":         model.SessionClosed,
			"closing_amount": closingAmount,
			"closed_at":      closedAt,
		})
	return res.RowsAffected == 1, res.Error
}
