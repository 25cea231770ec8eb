// internal/handlers/buyback.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/s4li/talamala-v4-sub000/internal/i18n"
	"github.com/s4li/talamala-v4-sub000/internal/services"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

type BuybackHandler struct {
	buybackService *services.BuybackService
}

func NewBuybackHandler(buybackService *services.BuybackService) *BuybackHandler {
	return &BuybackHandler{buybackService: buybackService}
}

// POST /buybacks
func (h *BuybackHandler) Buyback(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.BuybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	buyback, err := h.buybackService.Buyback(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, buyback)
}

// GET /buybacks
func (h *BuybackHandler) ListBuybacks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	buybacks, total, err := h.buybackService.ListForSeller(userID, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(buybacks, total, params)
	utils.PaginatedResponse(c, result)
}
