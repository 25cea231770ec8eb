// internal/handlers/catalog.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/s4li/talamala-v4-sub000/internal/i18n"
	"github.com/s4li/talamala-v4-sub000/internal/models"
	"github.com/s4li/talamala-v4-sub000/internal/services"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

type CatalogHandler struct {
	catalogService *services.CatalogService
	pricingService *services.PricingService
}

func NewCatalogHandler(catalogService *services.CatalogService, pricingService *services.PricingService) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		pricingService: pricingService,
	}
}

// GET /products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var metal *models.Metal
	if raw := c.Query("metal"); raw != "" {
		m := models.Metal(raw)
		if !m.Valid() {
			utils.BadRequestResponse(c, "Unknown metal", nil)
			return
		}
		metal = &m
	}

	products, total, err := h.catalogService.ListProducts(metal, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(products, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	listing, err := h.catalogService.GetProduct(productID)
	if err != nil {
		if derr, isDomain := services.AsDomainError(err); isDomain && derr.Code == services.CodeNotFound {
			utils.NotFoundResponse(c, i18n.T(lang, i18n.KeyProductNotFound))
			return
		}
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, listing)
}

// GET /prices
func (h *CatalogHandler) ListPrices(c *gin.Context) {
	points, err := h.pricingService.AllCurrent(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, points)
}

// GET /prices/:metal
func (h *CatalogHandler) GetPrice(c *gin.Context) {
	metal := models.Metal(c.Param("metal"))
	if !metal.Valid() {
		utils.BadRequestResponse(c, "Unknown metal", nil)
		return
	}

	point, err := h.pricingService.CurrentPrice(c.Request.Context(), metal)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, point)
}

// GET /locations
func (h *CatalogHandler) ListLocations(c *gin.Context) {
	var dealerID *uuid.UUID
	if raw := c.Query("dealer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid dealer_id", nil)
			return
		}
		dealerID = &id
	}

	locations, err := h.catalogService.ListLocations(dealerID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, locations)
}
