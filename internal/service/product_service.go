package service

import (
	"context"
	"errors"
	"strings"

	"poscore/internal/dto"
	"poscore/internal/model"
	"poscore/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultUnit = "pieza"
	searchLimit = 20
)

// ProductService is the catalog manager consumed by sales and the ledger.
// It never changes stock after creation.
type ProductService interface {
	Create(ctx context.Context, userID uuid.UUID, req dto.CreateProductRequest) (*dto.ProductResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error)
	GetByBarcode(ctx context.Context, barcode string) (*dto.ProductResponse, error)
	List(ctx context.Context, activeOnly bool) ([]dto.ProductResponse, error)
	Search(ctx context.Context, query string) ([]dto.ProductResponse, error)
	ListLowStock(ctx context.Context) ([]dto.ProductResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	repo           repository.ProductRepository
	adjustmentRepo repository.InventoryAdjustmentRepository
	categoryRepo   repository.CategoryRepository
	cache          ProductCache
}

func NewProductService(
	repo repository.ProductRepository,
	adjustmentRepo repository.InventoryAdjustmentRepository,
	categoryRepo repository.CategoryRepository,
	cache ProductCache,
) ProductService {
	return &productService{repo: repo, adjustmentRepo: adjustmentRepo, categoryRepo: categoryRepo, cache: cache}
}

// ── Create ────────────────────────────────────────────────────────────────────
// Initial stock is booked as an "add" ledger row in the same transaction.

func (s *productService) Create(ctx context.Context, userID uuid.UUID, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError("El nombre del producto es obligatorio")
	}
	if err := validateCatalogAmounts(req.Price, req.MinStock); err != nil {
		return nil, err
	}
	if req.Stock.IsNegative() || !fitsColumn(req.Stock, quantityPlaces) {
		return nil, validationError("El stock inicial debe ser mayor o igual a 0 con hasta %d decimales, dentro del máximo admitido", quantityPlaces)
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	p := &model.Product{
		Name:       name,
		Barcode:    normalizeBarcode(req.Barcode),
		Price:      req.Price,
		Unit:       unitOrDefault(req.Unit),
		CategoryID: req.CategoryID,
		Stock:      req.Stock,
		MinStock:   req.MinStock,
		Active:     true,
	}

	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, p); err != nil {
			return err
		}
		if !p.Stock.IsPositive() {
			return nil
		}
		reason := "Stock inicial"
		return s.adjustmentRepo.CreateTx(tx, &model.InventoryAdjustment{
			ProductID:      p.ID,
			UserID:         userID,
			AdjustmentType: model.AdjustmentAdd,
			Quantity:       p.Stock,
			PreviousStock:  decimal.Zero,
			NewStock:       p.Stock,
			Reason:         &reason,
		})
	})
	if err != nil {
		return nil, duplicateBarcode(err)
	}

	log.Info().Str("product_id", p.ID.String()).Str("name", p.Name).Msg("product created")
	return productToResponse(p), nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *productService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, productNotFound(id))
	}
	return productToResponse(p), nil
}

func (s *productService) GetByBarcode(ctx context.Context, barcode string) (*dto.ProductResponse, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, validationError("Código de barras vacío")
	}
	var gen int64
	if s.cache != nil {
		resp, g, ok := s.cache.Get(ctx, barcode)
		if ok {
			return resp, nil
		}
		gen = g
	}

	p, err := s.repo.FindByBarcode(ctx, barcode)
	if err != nil {
		return nil, storageErr(err, notFound("Producto no encontrado"))
	}
	resp := productToResponse(p)
	if s.cache != nil {
		s.cache.Set(ctx, resp, gen)
	}
	return resp, nil
}

func (s *productService) List(ctx context.Context, activeOnly bool) ([]dto.ProductResponse, error) {
	products, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, storageErr(err, nil)
	}
	return productsToResponse(products), nil
}

func (s *productService) Search(ctx context.Context, query string) ([]dto.ProductResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []dto.ProductResponse{}, nil
	}
	products, err := s.repo.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, storageErr(err, nil)
	}
	return productsToResponse(products), nil
}

func (s *productService) ListLowStock(ctx context.Context) ([]dto.ProductResponse, error) {
	products, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, storageErr(err, nil)
	}
	return productsToResponse(products), nil
}

// ── Update / Deactivate ───────────────────────────────────────────────────────

func (s *productService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError("El nombre del producto es obligatorio")
	}
	if err := validateCatalogAmounts(req.Price, req.MinStock); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, productNotFound(id))
	}
	oldBarcode := p.Barcode

	p.Name = name
	p.Barcode = normalizeBarcode(req.Barcode)
	p.Price = req.Price
	p.Unit = unitOrDefault(req.Unit)
	p.CategoryID = req.CategoryID
	p.MinStock = req.MinStock
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, duplicateBarcode(err)
	}

	invalidateProducts(ctx, s.cache, barcodes(oldBarcode, p.Barcode))
	return productToResponse(p), nil
}

func (s *productService) Deactivate(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return storageErr(err, productNotFound(id))
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return storageErr(err, productNotFound(id))
	}
	invalidateProducts(ctx, s.cache, barcodes(p.Barcode))
	log.Info().Str("product_id", id.String()).Msg("product deactivated")
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *productService) checkCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.categoryRepo.FindByID(ctx, *id); err != nil {
		return storageErr(err, notFound("Categoría no encontrada"))
	}
	return nil
}

func validateCatalogAmounts(price, minStock decimal.Decimal) error {
	if price.IsNegative() || !fitsColumn(price, moneyPlaces) {
		return validationError("El precio debe ser mayor o igual a 0 con hasta %d decimales, dentro del máximo admitido", moneyPlaces)
	}
	if minStock.IsNegative() || !fitsColumn(minStock, quantityPlaces) {
		return validationError("El stock mínimo debe ser mayor o igual a 0")
	}
	return nil
}

func duplicateBarcode(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return validationError("El código de barras ya está registrado")
	}
	return storageErr(err, nil)
}

func productNotFound(id uuid.UUID) error {
	return notFound("Producto con ID %s no encontrado", id)
}

func normalizeBarcode(b *string) *string {
	if b == nil {
		return nil
	}
	v := strings.TrimSpace(*b)
	if v == "" {
		return nil
	}
	return &v
}

func unitOrDefault(u string) string {
	if u = strings.TrimSpace(u); u == "" {
		return defaultUnit
	}
	return u
}

func barcodes(ptrs ...*string) []string {
	out := make([]string, 0, len(ptrs))
	for _, p := range ptrs {
		if p != nil && *p != "" {
			out = append(out, *p)
		}
	}
	return out
}

func productToResponse(p *model.Product) *dto.ProductResponse {
	resp := &dto.ProductResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		Barcode:   p.Barcode,
		Price:     p.Price,
		Unit:      p.Unit,
		Stock:     p.Stock,
		MinStock:  p.MinStock,
		Active:    p.Active,
		LowStock:  p.IsLowStock(),
		UpdatedAt: p.UpdatedAt,
	}
	if p.CategoryID != nil {
		c := p.CategoryID.String()
		resp.CategoryID = &c
	}
	return resp
}

func productsToResponse(products []model.Product) []dto.ProductResponse {
	out := make([]dto.ProductResponse, len(products))
	for i := range products {
		out[i] = *productToResponse(&products[i])
	}
	return out
}
