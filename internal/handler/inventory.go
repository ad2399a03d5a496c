package handler

import (
	"net/http"

	"poscore/internal/dto"
	"poscore/internal/service"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct{ svc service.InventoryService }

func NewInventoryHandler(svc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// CreateAdjustment godoc
// @Summary Registra un ajuste manual de stock
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateAdjustmentRequest true "Ajuste"
// @Success 201 {object} dto.AdjustmentResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/inventory/adjustments [post]
func (h *InventoryHandler) CreateAdjustment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateAdjustmentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateAdjustment(c.Request.Context(), actor.UserID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListAdjustments filters by product_id and by an optional start/end range.
func (h *InventoryHandler) ListAdjustments(c *gin.Context) {
	productID, ok := parseUUIDQuery(c, "product_id")
	if !ok {
		return
	}
	start, end, ok := parseOptionalRange(c)
	if !ok {
		return
	}
	resp, err := h.svc.ListAdjustments(c.Request.Context(), dto.AdjustmentFilter{ProductID: productID, Start: start, End: end})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
