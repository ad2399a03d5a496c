package service

import (
	"context"
	"errors"
	"time"

	"poscore/internal/dto"
	"poscore/internal/model"
	"poscore/internal/repository"
	"poscore/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const exchangeRatePlaces = 4

// CashRegisterService runs the per-user session state machine:
// none → open → closed. Closed sessions are never reopened.
type CashRegisterService interface {
	Open(ctx context.Context, userID uuid.UUID, req dto.OpenCashRegisterRequest) (*dto.CashRegisterSessionResponse, error)
	Close(ctx context.Context, actor Actor, id uuid.UUID, req dto.CloseCashRegisterRequest) (*dto.CashRegisterSummaryResponse, error)
	GetSummary(ctx context.Context, id uuid.UUID) (*dto.CashRegisterSummaryResponse, error)
	GetSession(ctx context.Context, id uuid.UUID) (*dto.CashRegisterSessionResponse, error)
	// GetOpenByUser and GetAnyOpen return nil without error when no session
	// is open.
	GetOpenByUser(ctx context.Context, userID uuid.UUID) (*dto.CashRegisterSessionResponse, error)
	GetAnyOpen(ctx context.Context) (*dto.CashRegisterSessionResponse, error)
	List(ctx context.Context, filter dto.SessionFilter) ([]dto.CashRegisterSessionResponse, error)
}

type cashRegisterService struct {
	repo   repository.CashRegisterRepository
	sales  repository.SaleRepository
	events EventDispatcher
	now    func() time.Time
}

func NewCashRegisterService(repo repository.CashRegisterRepository, sales repository.SaleRepository, events EventDispatcher) CashRegisterService {
	return &cashRegisterService{
		repo:   repo,
		sales:  sales,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ── Open ──────────────────────────────────────────────────────────────────────
// The pre-check gives a friendly error in the common case; the partial
// unique index is what actually serialises concurrent opens.

func (s *cashRegisterService) Open(ctx context.Context, userID uuid.UUID, req dto.OpenCashRegisterRequest) (*dto.CashRegisterSessionResponse, error) {
	if req.OpeningAmount.IsNegative() || !fitsColumn(req.OpeningAmount, moneyPlaces) {
		return nil, validationError("El monto inicial debe ser mayor o igual a 0 con hasta %d decimales, dentro del máximo admitido", moneyPlaces)
	}
	if req.ExchangeRate != nil && (!req.ExchangeRate.IsPositive() || !fitsColumn(*req.ExchangeRate, exchangeRatePlaces)) {
		return nil, validationError("El tipo de cambio debe ser mayor a 0 con hasta %d decimales, dentro del máximo admitido", exchangeRatePlaces)
	}

	if _, err := s.repo.FindOpenByUser(ctx, userID); err == nil {
		return nil, sessionAlreadyOpen()
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, unavailable(err)
	}

	session := &model.CashRegisterSession{
		UserID:        userID,
		Status:        model.SessionOpen,
		OpeningAmount: req.OpeningAmount,
		ExchangeRate:  req.ExchangeRate,
		OpenedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, sessionAlreadyOpen()
		}
		return nil, unavailable(err)
	}

	dispatch(ctx, s.events, worker.EventCashRegisterOpened, worker.SessionEventPayload{
		SessionID:     session.ID.String(),
		UserID:        session.UserID.String(),
		OpeningAmount: session.OpeningAmount,
	})
	log.Info().
		Str("session_id", session.ID.String()).
		Str("user_id", userID.String()).
		Str("opening_amount", session.OpeningAmount.String()).
		Msg("cash register opened")
	return sessionToResponse(session), nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// The exclusive lock waits for every sale holding the shared lock, so the
// totals below include all sales committed against this session.

func (s *cashRegisterService) Close(ctx context.Context, actor Actor, id uuid.UUID, req dto.CloseCashRegisterRequest) (*dto.CashRegisterSummaryResponse, error) {
	if req.ClosingAmount.IsNegative() || !fitsColumn(req.ClosingAmount, moneyPlaces) {
		return nil, validationError("El monto de cierre debe ser mayor o igual a 0 con hasta %d decimales, dentro del máximo admitido", moneyPlaces)
	}

	var summary *dto.CashRegisterSummaryResponse
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		session, err := s.repo.LockForCloseTx(tx, id)
		if err != nil {
			return storageErr(err, sessionNotFound(id))
		}
		switch session.Status {
		case model.SessionOpen:
		case model.SessionClosed:
			return sessionNotOpen()
		default:
			return validationError("Estado de sesión desconocido: %s", session.Status)
		}
		if !actor.canActOn(session.UserID) {
			return newError(ErrUnauthorized, "Solo el dueño de la sesión o un administrador puede cerrarla")
		}

		totals, err := s.sales.CompletedTotalsTx(tx, id)
		if err != nil {
			return err
		}

		closedAt := s.now()
		ok, err := s.repo.CloseTx(tx, id, req.ClosingAmount, closedAt)
		if err != nil {
			return err
		}
		if !ok {
			return sessionNotOpen()
		}

		closing := req.ClosingAmount
		session.Status = model.SessionClosed
		session.ClosingAmount = &closing
		session.ClosedAt = &closedAt
		summary = summarize(session, totals)
		return nil
	})
	if err != nil {
		return nil, storageErr(err, nil)
	}

	dispatch(ctx, s.events, worker.EventCashRegisterClosed, worker.SessionEventPayload{
		SessionID:     summary.Session.ID,
		UserID:        summary.Session.UserID,
		OpeningAmount: summary.Session.OpeningAmount,
		ExpectedCash:  &summary.ExpectedCash,
		ClosingAmount: summary.TotalCash,
		Difference:    summary.Difference,
	})
	log.Info().
		Str("session_id", id.String()).
		Str("expected_cash", summary.ExpectedCash.String()).
		Str("difference", summary.Difference.String()).
		Msg("cash register closed")
	return summary, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

// GetSummary recomputes the reconciliation without touching state.
func (s *cashRegisterService) GetSummary(ctx context.Context, id uuid.UUID) (*dto.CashRegisterSummaryResponse, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, sessionNotFound(id))
	}
	totals, err := s.sales.CompletedTotals(ctx, id)
	if err != nil {
		return nil, unavailable(err)
	}
	return summarize(session, totals), nil
}

func (s *cashRegisterService) GetSession(ctx context.Context, id uuid.UUID) (*dto.CashRegisterSessionResponse, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, sessionNotFound(id))
	}
	return sessionToResponse(session), nil
}

func (s *cashRegisterService) GetOpenByUser(ctx context.Context, userID uuid.UUID) (*dto.CashRegisterSessionResponse, error) {
	return optionalSession(s.repo.FindOpenByUser(ctx, userID))
}

func (s *cashRegisterService) GetAnyOpen(ctx context.Context) (*dto.CashRegisterSessionResponse, error) {
	return optionalSession(s.repo.FindAnyOpen(ctx))
}

func (s *cashRegisterService) List(ctx context.Context, filter dto.SessionFilter) ([]dto.CashRegisterSessionResponse, error) {
	if filter.Start != nil && filter.End != nil && filter.Start.After(*filter.End) {
		return nil, validationError("La fecha de inicio debe ser anterior a la fecha de fin")
	}
	sessions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]dto.CashRegisterSessionResponse, len(sessions))
	for i := range sessions {
		out[i] = *sessionToResponse(&sessions[i])
	}
	return out, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// summarize builds the reconciliation. expected_cash counts every completed
// sale regardless of payment method. TotalCash and Difference are only known
// once the drawer has been counted, so they stay nil for open sessions.
func summarize(session *model.CashRegisterSession, totals []decimal.Decimal) *dto.CashRegisterSummaryResponse {
	totalSales := decimal.Sum(decimal.Zero, totals...)
	expected := session.OpeningAmount.Add(totalSales)

	summary := &dto.CashRegisterSummaryResponse{
		Session:           *sessionToResponse(session),
		TotalSales:        totalSales,
		TotalTransactions: int64(len(totals)),
		ExpectedCash:      expected,
	}
	if session.Status == model.SessionClosed && session.ClosingAmount != nil {
		totalCash := *session.ClosingAmount
		diff := totalCash.Sub(expected)
		summary.TotalCash = &totalCash
		summary.Difference = &diff
	}
	return summary
}

func optionalSession(session *model.CashRegisterSession, err error) (*dto.CashRegisterSessionResponse, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return sessionToResponse(session), nil
}

func sessionAlreadyOpen() error {
	return newError(ErrSessionAlreadyOpen, "El usuario ya tiene una caja abierta")
}

func sessionNotOpen() error {
	return newError(ErrSessionNotOpen, "La sesión de caja no está abierta")
}

func sessionNotFound(id uuid.UUID) error {
	return notFound("Sesión de caja %s no encontrada", id)
}

func sessionToResponse(s *model.CashRegisterSession) *dto.CashRegisterSessionResponse {
	return &dto.CashRegisterSessionResponse{
		ID:            s.ID.String(),
		UserID:        s.UserID.String(),
		Status:        string(s.Status),
		OpeningAmount: s.OpeningAmount,
		ExchangeRate:  s.ExchangeRate,
		OpenedAt:      s.OpenedAt,
		ClosingAmount: s.ClosingAmount,
		ClosedAt:      s.ClosedAt,
	}
}
