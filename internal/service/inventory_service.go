package service

import (
	"context"
	"fmt"

	"poscore/internal/dto"
	"poscore/internal/model"
	"poscore/internal/repository"
	"poscore/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryService applies manual stock changes through the append-only
// adjustment ledger.
type InventoryService interface {
	CreateAdjustment(ctx context.Context, userID uuid.UUID, req dto.CreateAdjustmentRequest) (*dto.AdjustmentResponse, error)
	ListAdjustments(ctx context.Context, filter dto.AdjustmentFilter) ([]dto.AdjustmentResponse, error)
}

type inventoryService struct {
	products    repository.ProductRepository
	adjustments repository.InventoryAdjustmentRepository
	cache       ProductCache
	events      EventDispatcher
}

func NewInventoryService(
	products repository.ProductRepository,
	adjustments repository.InventoryAdjustmentRepository,
	cache ProductCache,
	events EventDispatcher,
) InventoryService {
	return &inventoryService{products: products, adjustments: adjustments, cache: cache, events: events}
}

// CreateAdjustment locks the product row, computes the new stock and writes
// the stock and the ledger row in one transaction. A negative adjustment
// never drives stock below zero.
func (s *inventoryService) CreateAdjustment(ctx context.Context, userID uuid.UUID, req dto.CreateAdjustmentRequest) (*dto.AdjustmentResponse, error) {
	adjType := model.AdjustmentType(req.AdjustmentType)
	if !adjType.Valid() {
		return nil, validationError("Tipo de ajuste inválido: %s", req.AdjustmentType)
	}
	if !req.Quantity.IsPositive() {
		return nil, validationError("La cantidad debe ser mayor a 0")
	}
	if !fitsColumn(req.Quantity, quantityPlaces) {
		return nil, validationError("La cantidad admite hasta %d decimales, dentro del máximo admitido", quantityPlaces)
	}

	var (
		adj     *model.InventoryAdjustment
		product *model.Product
	)
	err := runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		p, err := s.products.LockByIDTx(tx, req.ProductID)
		if err != nil {
			return storageErr(err, productNotFound(req.ProductID))
		}
		if !p.Active {
			return validationError("Producto '%s' está desactivado", p.Name)
		}

		next, err := applyAdjustment(adjType, p.Stock, req.Quantity)
		if err != nil {
			return err
		}
		ok, err := s.products.SetStockTx(tx, p.ID, p.Stock, next)
		if err != nil {
			return err
		}
		if !ok {
			return unavailable(fmt.Errorf("stock of product %s changed under lock", p.ID))
		}

		adj = &model.InventoryAdjustment{
			ProductID:      p.ID,
			UserID:         userID,
			AdjustmentType: adjType,
			Quantity:       req.Quantity,
			PreviousStock:  p.Stock,
			NewStock:       next,
			Reason:         req.Reason,
		}
		if err := s.adjustments.CreateTx(tx, adj); err != nil {
			return err
		}
		p.Stock = next
		product = p
		return nil
	})
	if err != nil {
		return nil, storageErr(err, nil)
	}

	invalidateProducts(ctx, s.cache, barcodes(product.Barcode))
	dispatch(ctx, s.events, worker.EventInventoryAdjusted, worker.AdjustmentEventPayload{
		AdjustmentID:   adj.ID.String(),
		ProductID:      adj.ProductID.String(),
		AdjustmentType: string(adj.AdjustmentType),
		Quantity:       adj.Quantity,
		PreviousStock:  adj.PreviousStock,
		NewStock:       adj.NewStock,
	})
	if product.IsLowStock() {
		dispatch(ctx, s.events, worker.EventStockLow, stockLowPayload(product))
	}

	log.Info().
		Str("product_id", adj.ProductID.String()).
		Str("type", string(adj.AdjustmentType)).
		Str("previous", adj.PreviousStock.String()).
		Str("new", adj.NewStock.String()).
		Msg("inventory adjusted")
	return adjustmentToResponse(adj), nil
}

func (s *inventoryService) ListAdjustments(ctx context.Context, filter dto.AdjustmentFilter) ([]dto.AdjustmentResponse, error) {
	if filter.Start != nil && filter.End != nil && filter.Start.After(*filter.End) {
		return nil, validationError("La fecha de inicio debe ser anterior a la fecha de fin")
	}
	rows, err := s.adjustments.List(ctx, filter)
	if err != nil {
		return nil, storageErr(err, nil)
	}
	out := make([]dto.AdjustmentResponse, len(rows))
	for i := range rows {
		out[i] = *adjustmentToResponse(&rows[i])
	}
	return out, nil
}

func applyAdjustment(t model.AdjustmentType, current, qty decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case model.AdjustmentAdd, model.AdjustmentPositive:
		next := current.Add(qty)
		if !fitsColumn(next, quantityPlaces) {
			return decimal.Zero, validationError("El stock resultante excede el máximo admitido")
		}
		return next, nil
	case model.AdjustmentNegative:
		next := current.Sub(qty)
		if next.IsNegative() {
			return decimal.Zero, newError(ErrInsufficientStock,
				"Stock insuficiente para el ajuste negativo. Disponible: %s, Solicitado: %s", current, qty)
		}
		return next, nil
	default:
		return decimal.Zero, validationError("Tipo de ajuste inválido: %s", t)
	}
}

func stockLowPayload(p *model.Product) worker.StockLowPayload {
	return worker.StockLowPayload{
		ProductID: p.ID.String(),
		Name:      p.Name,
		Stock:     p.Stock,
		MinStock:  p.MinStock,
	}
}

func adjustmentToResponse(a *model.InventoryAdjustment) *dto.AdjustmentResponse {
	return &dto.AdjustmentResponse{
		ID:             a.ID.String(),
		ProductID:      a.ProductID.String(),
		UserID:         a.UserID.String(),
		AdjustmentType: string(a.AdjustmentType),
		Quantity:       a.Quantity,
		PreviousStock:  a.PreviousStock,
		NewStock:       a.NewStock,
		Reason:         a.Reason,
		CreatedAt:      a.CreatedAt,
	}
}
