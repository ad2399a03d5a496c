package handler

import (
	"net/http"

	"poscore/internal/dto"
	"poscore/internal/service"

	"github.com/gin-gonic/gin"
)

type SalesHandler struct{ svc service.SaleService }

func NewSalesHandler(svc service.SaleService) *SalesHandler { return &SalesHandler{svc: svc} }

// Create godoc
// @Summary Registra una venta
// @Description Atómica: descuenta stock y persiste la venta o no cambia nada. Reenviar con el mismo idempotency_key devuelve la venta original.
// @Tags sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateSaleRequest true "Venta"
// @Success 201 {object} dto.SaleResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/sales [post]
func (h *SalesHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cancel godoc
// @Summary Anula una venta y devuelve el stock
// @Tags sales
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de venta"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/sales/{id}/cancel [post]
func (h *SalesHandler) Cancel(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SalesHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary Lista ventas
// @Tags sales
// @Produce json
// @Security BearerAuth
// @Param session_id query string false "ID de sesión"
// @Param start query string false "Desde (RFC3339 o YYYY-MM-DD)"
// @Param end query string false "Hasta (RFC3339 o YYYY-MM-DD, inclusive)"
// @Param status query string false "completed | cancelled"
// @Success 200 {array} dto.SaleResponse
// @Router /v1/sales [get]
func (h *SalesHandler) List(c *gin.Context) {
	sessionID, ok := parseUUIDQuery(c, "session_id")
	if !ok {
		return
	}
	start, end, ok := parseOptionalRange(c)
	if !ok {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), dto.SaleFilter{
		SessionID: sessionID,
		Start:     start,
		End:       end,
		Status:    c.Query("status"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
