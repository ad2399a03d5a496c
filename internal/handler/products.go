package handler

import (
	"net/http"

	"poscore/internal/dto"
	"poscore/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductsHandler struct{ svc service.ProductService }

func NewProductsHandler(svc service.ProductService) *ProductsHandler {
	return &ProductsHandler{svc: svc}
}

// Create godoc
// @Summary Crea un producto
// @Description El stock inicial se registra como ajuste de inventario "add".
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateProductRequest true "Producto"
// @Success 201 {object} dto.ProductResponse
// @Failure 422 {object} apierror.APIError
// @Router /v1/products [post]
func (h *ProductsHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.CreateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), actor.UserID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary Lista productos
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param include_inactive query bool false "Incluir desactivados"
// @Success 200 {array} dto.ProductResponse
// @Router /v1/products [get]
func (h *ProductsHandler) List(c *gin.Context) {
	activeOnly := c.Query("include_inactive") != "true"
	resp, err := h.svc.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Search godoc
// @Summary Busca productos activos por nombre o código de barras
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param q query string true "Texto a buscar"
// @Success 200 {array} dto.ProductResponse
// @Router /v1/products/search [get]
func (h *ProductsHandler) Search(c *gin.Context) {
	resp, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductsHandler) LowStock(c *gin.Context) {
	resp, err := h.svc.ListLowStock(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetByBarcode godoc
// @Summary Obtiene un producto activo por código de barras
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param barcode path string true "Código de barras"
// @Success 200 {object} dto.ProductResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/products/barcode/{barcode} [get]
func (h *ProductsHandler) GetByBarcode(c *gin.Context) {
	resp, err := h.svc.GetByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductsHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update godoc
// @Summary Actualiza los datos de catálogo de un producto
// @Description El stock no se modifica aquí; use /v1/inventory/adjustments.
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de producto"
// @Param body body dto.UpdateProductRequest true "Producto"
// @Success 200 {object} dto.ProductResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/products/{id} [put]
func (h *ProductsHandler) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductsHandler) Deactivate(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
