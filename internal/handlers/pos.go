// internal/handlers/pos.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/s4li/talamala-v4-sub000/internal/i18n"
	"github.com/s4li/talamala-v4-sub000/internal/services"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

// PosHandler exposes the dealer counter flows: short-hold reserve, confirm
// with a terminal reference and bulk restock from wholesale.
type PosHandler struct {
	posService         *services.PosService
	fulfillmentService *services.FulfillmentService
	catalogService     *services.CatalogService
}

func NewPosHandler(posService *services.PosService, fulfillmentService *services.FulfillmentService, catalogService *services.CatalogService) *PosHandler {
	return &PosHandler{
		posService:         posService,
		fulfillmentService: fulfillmentService,
		catalogService:     catalogService,
	}
}

// POST /pos/reserve
func (h *PosHandler) Reserve(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		ProductID  uuid.UUID `json:"product_id" binding:"required"`
		LocationID uuid.UUID `json:"location_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	quote, err := h.posService.ReserveForPos(c.Request.Context(), userID, req.ProductID, req.LocationID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, quote)
}

// POST /pos/confirm
func (h *PosHandler) Confirm(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		UnitID     uuid.UUID `json:"unit_id" binding:"required"`
		PaymentRef string    `json:"payment_ref" binding:"required,max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	receipt, err := h.posService.ConfirmPos(userID, req.UnitID, req.PaymentRef)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, receipt)
}

// POST /pos/fulfillments
func (h *PosHandler) FulfillBulk(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.FulfillmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	order, err := h.fulfillmentService.FulfillBulk(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, order)
}

// POST /pos/locations
func (h *PosHandler) CreateLocation(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Name    string `json:"name" binding:"required,max=255"`
		Address string `json:"address" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	location, err := h.catalogService.CreateLocation(userID, req.Name, req.Address)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, location)
}
