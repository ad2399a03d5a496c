package service

import (
	"context"
	"errors"
	"sort"
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

type SaleService interface {
	Create(ctx context.Context, actor Actor, req dto.CreateSaleRequest) (*dto.SaleResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error)
	List(ctx context.Context, filter dto.SaleFilter) ([]dto.SaleResponse, error)
}

type saleService struct {
	repo     repository.SaleRepository
	products repository.ProductRepository
	sessions repository.CashRegisterRepository
	cache    ProductCache
	events   EventDispatcher
	now      func() time.Time
}

func NewSaleService(
	repo repository.SaleRepository,
	products repository.ProductRepository,
	sessions repository.CashRegisterRepository,
	cache ProductCache,
	events EventDispatcher,
) SaleService {
	return &saleService{
		repo:     repo,
		products: products,
		sessions: sessions,
		cache:    cache,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ── Create ────────────────────────────────────────────────────────────────────
// One transaction:
//   1. Share-lock the session (close waits for in-flight sales)
//   2. Lock every product row in id order
//   3. Price the items, check payment and stock
//   4. Insert sale + items, decrement stock with a guarded UPDATE
// Cache invalidation and events run only after commit.

func (s *saleService) Create(ctx context.Context, actor Actor, req dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	method, err := validateSaleRequest(req)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != nil {
		if existing, err := s.findReplay(ctx, actor, req); existing != nil || err != nil {
			return existing, err
		}
	}

	required, order := requiredQuantities(req.Items)

	var (
		sale   *model.Sale
		locked map[uuid.UUID]*model.Product
	)
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		session, err := s.sessions.LockSharedTx(tx, req.SessionID)
		if err != nil {
			return storageErr(err, sessionNotFound(req.SessionID))
		}
		if session.Status != model.SessionOpen {
			return sessionNotOpen()
		}
		if !actor.canActOn(session.UserID) {
			return forbiddenSession()
		}

		products, err := s.products.LockByIDsTx(tx, order)
		if err != nil {
			return err
		}
		locked = make(map[uuid.UUID]*model.Product, len(products))
		for i := range products {
			locked[products[i].ID] = &products[i]
		}
		for _, id := range order {
			if _, ok := locked[id]; !ok {
				return productNotFound(id)
			}
		}

		sale = &model.Sale{
			SessionID:      session.ID,
			UserID:         session.UserID,
			SoldBy:         actor.UserID,
			PaymentMethod:  method,
			PaymentAmount:  req.PaymentAmount,
			Status:         model.SaleCompleted,
			IdempotencyKey: req.IdempotencyKey,
			Items:          make([]model.SaleItem, len(req.Items)),
		}
		total := decimal.Zero
		for i, it := range req.Items {
			p := locked[it.ProductID]
			subtotal := roundMoney(p.Price.Mul(it.Quantity))
			sale.Items[i] = model.SaleItem{
				Position:    i + 1,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    it.Quantity,
				UnitPrice:   p.Price,
				Subtotal:    subtotal,
			}
			total = total.Add(subtotal)
		}
		sale.Total = total
		if !fitsColumn(total, moneyPlaces) {
			return validationError("El total de la venta excede el máximo admitido")
		}

		if req.PaymentAmount.LessThan(total) {
			return newError(ErrInsufficientPayment,
				"Pago insuficiente. Total: %s, Recibido: %s", total.StringFixed(moneyPlaces), req.PaymentAmount.StringFixed(moneyPlaces))
		}
		sale.ChangeAmount = req.PaymentAmount.Sub(total)

		for _, id := range order {
			p := locked[id]
			if !p.Active {
				return newError(ErrInsufficientStock, "Producto '%s' está desactivado", p.Name)
			}
			if p.Stock.LessThan(required[id]) {
				return insufficientStock(p, required[id])
			}
		}

		sale.CreatedAt = s.now()
		if err := s.repo.CreateTx(tx, sale); err != nil {
			return err
		}
		for _, id := range order {
			ok, err := s.products.DecrementStockTx(tx, id, required[id])
			if err != nil {
				return err
			}
			if !ok {
				return insufficientStock(locked[id], required[id])
			}
			locked[id].Stock = locked[id].Stock.Sub(required[id])
		}
		return nil
	})
	if err != nil {
		if req.IdempotencyKey != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent submission with the same key won the insert.
			return s.findReplay(ctx, actor, req)
		}
		return nil, storageErr(err, nil)
	}

	s.afterCommit(ctx, sale, locked)
	log.Info().
		Str("sale_id", sale.ID.String()).
		Str("session_id", sale.SessionID.String()).
		Str("total", sale.Total.String()).
		Int("items", len(sale.Items)).
		Msg("sale completed")
	return saleToResponse(sale), nil
}

func (s *saleService) afterCommit(ctx context.Context, sale *model.Sale, products map[uuid.UUID]*model.Product) {
	codes := make([]string, 0, len(products))
	for _, p := range products {
		if p.Barcode != nil {
			codes = append(codes, *p.Barcode)
		}
	}
	invalidateProducts(ctx, s.cache, codes)

	dispatch(ctx, s.events, worker.EventSaleCompleted, saleEventPayload(sale))
	for _, p := range products {
		if p.IsLowStock() {
			dispatch(ctx, s.events, worker.EventStockLow, stockLowPayload(p))
		}
	}
}

// findReplay returns the sale already stored under the request's key. The
// replay is subject to the same session ownership rule as a new sale, and a
// key reused for a different session or a different cart is rejected.
func (s *saleService) findReplay(ctx context.Context, actor Actor, req dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, *req.IdempotencyKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	if existing.SessionID != req.SessionID {
		return nil, validationError("La clave de idempotencia ya fue usada en otra sesión")
	}

	session, err := s.sessions.FindByID(ctx, existing.SessionID)
	if err != nil {
		return nil, storageErr(err, sessionNotFound(existing.SessionID))
	}
	if !actor.canActOn(session.UserID) {
		return nil, forbiddenSession()
	}
	if !sameSale(existing, req) {
		return nil, validationError("La clave de idempotencia ya fue usada para una venta distinta")
	}

	log.Info().Str("sale_id", existing.ID.String()).Msg("sale replayed from idempotency key")
	return saleToResponse(existing), nil
}

// sameSale reports whether req resubmits exactly the stored sale: same
// payment and the same items in the same order.
func sameSale(sale *model.Sale, req dto.CreateSaleRequest) bool {
	if string(sale.PaymentMethod) != req.PaymentMethod ||
		!sale.PaymentAmount.Equal(req.PaymentAmount) ||
		len(sale.Items) != len(req.Items) {
		return false
	}
	for i, it := range req.Items {
		stored := sale.Items[i]
		if stored.ProductID != it.ProductID || !stored.Quantity.Equal(it.Quantity) {
			return false
		}
	}
	return true
}

// ── Cancel ────────────────────────────────────────────────────────────────────

func (s *saleService) Cancel(ctx context.Context, id uuid.UUID) error {
	var (
		sale     *model.Sale
		restored []model.Product
	)
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		sale, err = s.repo.LockByIDTx(tx, id)
		if err != nil {
			return storageErr(err, notFound("Venta %s no encontrada", id))
		}
		switch sale.Status {
		case model.SaleCompleted:
		case model.SaleCancelled:
			return newError(ErrAlreadyCancelled, "La venta ya fue anulada")
		default:
			return validationError("Estado de venta desconocido: %s", sale.Status)
		}

		// Keeps a concurrent close from summing this sale mid-cancel.
		if _, err := s.sessions.LockSharedTx(tx, sale.SessionID); err != nil {
			return storageErr(err, sessionNotFound(sale.SessionID))
		}

		returned, order := returnedQuantities(sale.Items)
		restored, err = s.products.LockByIDsTx(tx, order)
		if err != nil {
			return err
		}
		for i := range restored {
			if !fitsColumn(restored[i].Stock.Add(returned[restored[i].ID]), quantityPlaces) {
				return validationError("El stock de '%s' excedería el máximo admitido", restored[i].Name)
			}
		}
		for _, pid := range order {
			if err := s.products.IncrementStockTx(tx, pid, returned[pid]); err != nil {
				return storageErr(err, productNotFound(pid))
			}
		}

		ok, err := s.repo.MarkCancelledTx(tx, sale.ID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return newError(ErrAlreadyCancelled, "La venta ya fue anulada")
		}
		return nil
	})
	if err != nil {
		return storageErr(err, nil)
	}

	codes := make([]string, 0, len(restored))
	for i := range restored {
		if restored[i].Barcode != nil {
			codes = append(codes, *restored[i].Barcode)
		}
	}
	invalidateProducts(ctx, s.cache, codes)
	dispatch(ctx, s.events, worker.EventSaleCancelled, saleEventPayload(sale))

	log.Info().Str("sale_id", id.String()).Msg("sale cancelled")
	return nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *saleService) Get(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, notFound("Venta %s no encontrada", id))
	}
	return saleToResponse(sale), nil
}

func (s *saleService) List(ctx context.Context, filter dto.SaleFilter) ([]dto.SaleResponse, error) {
	if filter.Status != "" && !model.SaleStatus(filter.Status).Valid() {
		return nil, validationError("Estado de venta inválido: %s", filter.Status)
	}
	if filter.Start != nil && filter.End != nil && filter.Start.After(*filter.End) {
		return nil, validationError("La fecha de inicio debe ser anterior a la fecha de fin")
	}
	sales, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storageErr(err, nil)
	}
	return salesToResponse(sales), nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func validateSaleRequest(req dto.CreateSaleRequest) (model.PaymentMethod, error) {
	method := model.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		return "", validationError("Método de pago inválido: %s", req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return "", validationError("La venta debe tener al menos un ítem")
	}
	if req.PaymentAmount.IsNegative() || !fitsColumn(req.PaymentAmount, moneyPlaces) {
		return "", validationError("El monto pagado debe ser mayor o igual a 0 con hasta %d decimales, dentro del máximo admitido", moneyPlaces)
	}
	for i, it := range req.Items {
		if it.ProductID == uuid.Nil {
			return "", validationError("Ítem %d: producto requerido", i+1)
		}
		if !it.Quantity.IsPositive() || !fitsColumn(it.Quantity, quantityPlaces) {
			return "", validationError("Ítem %d: la cantidad debe ser mayor a 0 con hasta %d decimales, dentro del máximo admitido", i+1, quantityPlaces)
		}
	}
	return method, nil
}

// requiredQuantities sums quantities per product, so a product listed twice
// is checked against its combined demand. The returned ids are sorted to give
// every transaction the same lock order.
func requiredQuantities(items []dto.SaleItemRequest) (map[uuid.UUID]decimal.Decimal, []uuid.UUID) {
	qty := make(map[uuid.UUID]decimal.Decimal, len(items))
	for _, it := range items {
		qty[it.ProductID] = qty[it.ProductID].Add(it.Quantity)
	}
	return qty, sortedIDs(qty)
}

func returnedQuantities(items []model.SaleItem) (map[uuid.UUID]decimal.Decimal, []uuid.UUID) {
	qty := make(map[uuid.UUID]decimal.Decimal, len(items))
	for _, it := range items {
		qty[it.ProductID] = qty[it.ProductID].Add(it.Quantity)
	}
	return qty, sortedIDs(qty)
}

func sortedIDs(m map[uuid.UUID]decimal.Decimal) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func forbiddenSession() error {
	return newError(ErrUnauthorized, "No tiene permiso para vender en esta sesión de caja")
}

func insufficientStock(p *model.Product, requested decimal.Decimal) error {
	return newError(ErrInsufficientStock,
		"Stock insuficiente para '%s'. Disponible: %s, Solicitado: %s", p.Name, p.Stock.String(), requested.String())
}

func saleEventPayload(s *model.Sale) worker.SaleEventPayload {
	return worker.SaleEventPayload{
		SaleID:        s.ID.String(),
		SessionID:     s.SessionID.String(),
		UserID:        s.UserID.String(),
		SoldBy:        s.SoldBy.String(),
		Total:         s.Total,
		PaymentMethod: string(s.PaymentMethod),
		ItemCount:     len(s.Items),
	}
}

func saleToResponse(s *model.Sale) *dto.SaleResponse {
	items := make([]dto.SaleItemResponse, len(s.Items))
	for i, it := range s.Items {
		items[i] = dto.SaleItemResponse{
			ProductID:   it.ProductID.String(),
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		}
	}
	return &dto.SaleResponse{
		ID:            s.ID.String(),
		SessionID:     s.SessionID.String(),
		UserID:        s.UserID.String(),
		SoldBy:        s.SoldBy.String(),
		Items:         items,
		Total:         s.Total,
		PaymentMethod: string(s.PaymentMethod),
		PaymentAmount: s.PaymentAmount,
		ChangeAmount:  s.ChangeAmount,
		Status:        string(s.Status),
		CreatedAt:     s.CreatedAt,
		CancelledAt:   s.CancelledAt,
	}
}

func salesToResponse(sales []model.Sale) []dto.SaleResponse {
	out := make([]dto.SaleResponse, len(sales))
	for i := range sales {
		out[i] = *saleToResponse(&sales[i])
	}
	return out
}
