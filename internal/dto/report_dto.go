package dto

import "github.com/shopspring/decimal"

type SalesReportResponse struct {
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalTransactions int64           `json:"total_transactions"`
	AverageSale       decimal.Decimal `json:"average_sale"`
	Sales             []SaleResponse  `json:"sales"`
}

type TopProductResponse struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}
