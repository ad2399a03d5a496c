package handler

import (
	"net/http"

	"poscore/internal/apierror"
	"poscore/internal/dto"
	"poscore/internal/service"

	"github.com/gin-gonic/gin"
)

type CashRegistersHandler struct{ svc service.CashRegisterService }

func NewCashRegistersHandler(svc service.CashRegisterService) *CashRegistersHandler {
	return &CashRegistersHandler{svc: svc}
}

// Open godoc
// @Summary Abre una sesión de caja para el usuario autenticado
// @Tags cash-registers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenCashRegisterRequest true "Datos de apertura"
// @Success 201 {object} dto.CashRegisterSessionResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/cash-registers [post]
func (h *CashRegistersHandler) Open(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.OpenCashRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Open(c.Request.Context(), actor.UserID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary Cierra la sesión y devuelve la conciliación
// @Tags cash-registers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesión"
// @Param body body dto.CloseCashRegisterRequest true "Efectivo contado"
// @Success 200 {object} dto.CashRegisterSummaryResponse
// @Failure 403 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash-registers/{id}/close [post]
func (h *CashRegistersHandler) Close(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.CloseCashRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Summary godoc
// @Summary Conciliación de una sesión (abierta o cerrada)
// @Description total_cash y difference son null mientras la sesión está abierta.
// @Tags cash-registers
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesión"
// @Success 200 {object} dto.CashRegisterSummaryResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cash-registers/{id}/summary [get]
func (h *CashRegistersHandler) Summary(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CashRegistersHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetOpen godoc
// @Summary Sesión abierta del usuario
// @Description Sin parámetros devuelve la del usuario autenticado. user_id y any=true son solo para administradores.
// @Tags cash-registers
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "ID de usuario"
// @Param any query bool false "Cualquier sesión abierta"
// @Success 200 {object} dto.CashRegisterSessionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cash-registers/open [get]
func (h *CashRegistersHandler) GetOpen(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	userID, ok := parseUUIDQuery(c, "user_id")
	if !ok {
		return
	}
	anyOpen := c.Query("any") == "true"
	if (anyOpen || (userID != nil && *userID != actor.UserID)) && !actor.IsAdmin() {
		c.JSON(http.StatusForbidden, apierror.New("Permisos insuficientes"))
		return
	}

	var (
		resp *dto.CashRegisterSessionResponse
		err  error
	)
	switch {
	case anyOpen:
		resp, err = h.svc.GetAnyOpen(c.Request.Context())
	case userID != nil:
		resp, err = h.svc.GetOpenByUser(c.Request.Context(), *userID)
	default:
		resp, err = h.svc.GetOpenByUser(c.Request.Context(), actor.UserID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, apierror.WithCode("not_found", "Sin sesión activa"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List returns sessions, newest first. Filters: user_id, start, end.
func (h *CashRegistersHandler) List(c *gin.Context) {
	userID, ok := parseUUIDQuery(c, "user_id")
	if !ok {
		return
	}
	start, end, ok := parseOptionalRange(c)
	if !ok {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), dto.SessionFilter{UserID: userID, Start: start, End: end})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
