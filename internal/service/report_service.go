package service

import (
	"context"
	"time"

	"poscore/internal/dto"
	"poscore/internal/model"
	"poscore/internal/repository"

	"github.com/shopspring/decimal"
)

// ReportService aggregates completed sales. Every method is a pure read and
// safe for the caller to retry.
type ReportService interface {
	GetSalesReport(ctx context.Context, start, end time.Time) (*dto.SalesReportResponse, error)
	// GetTopProducts ranks products by quantity sold. A nil limit means
	// unbounded.
	GetTopProducts(ctx context.Context, start, end time.Time, limit *int) ([]dto.TopProductResponse, error)
}

type reportService struct {
	sales repository.SaleRepository
}

func NewReportService(sales repository.SaleRepository) ReportService {
	return &reportService{sales: sales}
}

func (s *reportService) GetSalesReport(ctx context.Context, start, end time.Time) (*dto.SalesReportResponse, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	sales, err := s.sales.List(ctx, dto.SaleFilter{
		Start:  &start,
		End:    &end,
		Status: string(model.SaleCompleted),
	})
	if err != nil {
		return nil, unavailable(err)
	}

	total := decimal.Zero
	for i := range sales {
		total = total.Add(sales[i].Total)
	}
	count := int64(len(sales))
	average := decimal.Zero
	if count > 0 {
		average = roundMoney(total.Div(decimal.NewFromInt(count)))
	}

	return &dto.SalesReportResponse{
		TotalSales:        total,
		TotalTransactions: count,
		AverageSale:       average,
		Sales:             salesToResponse(sales),
	}, nil
}

func (s *reportService) GetTopProducts(ctx context.Context, start, end time.Time, limit *int) ([]dto.TopProductResponse, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	n := 0
	if limit != nil {
		if *limit <= 0 {
			return nil, validationError("El límite debe ser mayor a 0")
		}
		n = *limit
	}

	rows, err := s.sales.TopProducts(ctx, start, end, n)
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]dto.TopProductResponse, len(rows))
	for i, r := range rows {
		out[i] = dto.TopProductResponse{
			ProductID:     r.ProductID.String(),
			ProductName:   r.ProductName,
			TotalQuantity: r.TotalQuantity.Round(quantityPlaces),
			TotalRevenue:  roundMoney(r.TotalRevenue),
		}
	}
	return out, nil
}

func validateRange(start, end time.Time) error {
	if start.After(end) {
		return validationError("La fecha de inicio debe ser anterior a la fecha de fin")
	}
	return nil
}
