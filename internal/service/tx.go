package service

import (
	"context"

	"poscore/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// runTx executes fn inside a GORM transaction. Returning an error from fn
// rolls everything back, so no partial mutation is ever visible.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uuid.UUID
	Role   model.Role
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// canActOn reports whether the actor may operate on a resource owned by owner.
func (a Actor) canActOn(owner uuid.UUID) bool {
	return a.UserID == owner || a.IsAdmin()
}

// EventDispatcher hands committed domain events to the async pipeline.
type EventDispatcher interface {
	EnqueueEvent(ctx context.Context, eventType string, payload interface{}) error
}

// dispatch is best-effort: the originating operation has already committed,
// so a queue failure is logged and swallowed.
func dispatch(ctx context.Context, d EventDispatcher, eventType string, payload interface{}) {
	if d == nil {
		return
	}
	if err := d.EnqueueEvent(context.WithoutCancel(ctx), eventType, payload); err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("event dispatch failed")
	}
}
