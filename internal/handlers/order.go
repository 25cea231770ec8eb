// internal/handlers/order.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/s4li/talamala-v4-sub000/internal/i18n"
	"github.com/s4li/talamala-v4-sub000/internal/models"
	"github.com/s4li/talamala-v4-sub000/internal/services"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

type OrderHandler struct {
	checkoutService *services.CheckoutService
}

func NewOrderHandler(checkoutService *services.CheckoutService) *OrderHandler {
	return &OrderHandler{checkoutService: checkoutService}
}

// POST /orders
func (h *OrderHandler) Checkout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	order, err := h.checkoutService.Checkout(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, order)
}

// POST /orders/:id/pay/wallet
func (h *OrderHandler) PayFromWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.checkoutService.PayFromWallet(orderID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// POST /orders/:id/pay/gateway
func (h *OrderHandler) StartGatewayPayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	intent, err := h.checkoutService.StartGatewayPayment(orderID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, intent)
}

// POST /orders/:id/pay/gateway/confirm
func (h *OrderHandler) ConfirmGatewayPayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.checkoutService.ConfirmGatewayPayment(orderID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// POST /orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	// Ownership check before the cancel path touches gateway or stock.
	if _, err := h.checkoutService.GetOrder(orderID, userID); err != nil {
		respondError(c, err)
		return
	}

	order, err := h.checkoutService.CancelOrder(orderID, "cancelled by customer")
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.checkoutService.GetOrder(orderID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// GET /orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	var status *models.OrderStatus
	if raw := c.Query("status"); raw != "" {
		s := models.OrderStatus(raw)
		status = &s
	}

	orders, total, err := h.checkoutService.ListOrders(userID, status, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(orders, total, params)
	utils.PaginatedResponse(c, result)
}
