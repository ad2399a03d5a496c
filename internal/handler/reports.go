package handler

import (
	"net/http"
	"strconv"

	"poscore/internal/apierror"
	"poscore/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportsHandler struct{ svc service.ReportService }

func NewReportsHandler(svc service.ReportService) *ReportsHandler { return &ReportsHandler{svc: svc} }

// Sales godoc
// @Summary Reporte de ventas completadas en un rango
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param start query string true "Desde (RFC3339 o YYYY-MM-DD)"
// @Param end query string true "Hasta (RFC3339 o YYYY-MM-DD, inclusive)"
// @Success 200 {object} dto.SalesReportResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/reports/sales [get]
func (h *ReportsHandler) Sales(c *gin.Context) {
	start, end, ok := parseRequiredRange(c)
	if !ok {
		return
	}
	resp, err := h.svc.GetSalesReport(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TopProducts godoc
// @Summary Productos más vendidos
// @Description Ordenados por cantidad descendente; empates por ID de producto.
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param start query string true "Desde"
// @Param end query string true "Hasta (inclusive)"
// @Param limit query int false "Máximo de filas (sin límite si se omite)"
// @Success 200 {array} dto.TopProductResponse
// @Router /v1/reports/top-products [get]
func (h *ReportsHandler) TopProducts(c *gin.Context) {
	start, end, ok := parseRequiredRange(c)
	if !ok {
		return
	}
	var limit *int
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.WithCode("bad_request", "limit inválido"))
			return
		}
		limit = &n
	}
	resp, err := h.svc.GetTopProducts(c.Request.Context(), start, end, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
