// internal/handlers/wallet.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/s4li/talamala-v4-sub000/internal/i18n"
	"github.com/s4li/talamala-v4-sub000/internal/models"
	"github.com/s4li/talamala-v4-sub000/internal/services"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

type WalletHandler struct {
	ledgerService       *services.LedgerService
	topupService        *services.TopUpService
	withdrawalService   *services.WithdrawalService
	notificationService *services.NotificationService
}

func NewWalletHandler(ledgerService *services.LedgerService, topupService *services.TopUpService, withdrawalService *services.WithdrawalService, notificationService *services.NotificationService) *WalletHandler {
	return &WalletHandler{
		ledgerService:       ledgerService,
		topupService:        topupService,
		withdrawalService:   withdrawalService,
		notificationService: notificationService,
	}
}

var walletAssets = []models.AssetCode{
	models.AssetCash,
	models.AssetGoldMg,
	models.AssetSilverMg,
	models.AssetPlatinumMg,
}

func parseAsset(c *gin.Context) (models.AssetCode, bool) {
	raw := c.DefaultQuery("asset", string(models.AssetCash))
	asset := models.AssetCode(raw)
	for _, known := range walletAssets {
		if asset == known {
			return asset, true
		}
	}
	utils.BadRequestResponse(c, "Unknown asset", nil)
	return "", false
}

// GET /wallet/balances
func (h *WalletHandler) GetBalances(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	balances := make(map[models.AssetCode]*models.BalanceSummary, len(walletAssets))
	for _, asset := range walletAssets {
		summary, err := h.ledgerService.GetBalance(userID, asset)
		if err != nil {
			respondError(c, err)
			return
		}
		balances[asset] = summary
	}

	utils.SuccessResponse(c, balances)
}

// GET /wallet/entries
func (h *WalletHandler) GetEntries(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	asset, ok := parseAsset(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	entries, err := h.ledgerService.GetEntries(userID, asset, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, entries)
}

// POST /wallet/deposits
func (h *WalletHandler) StartDeposit(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Amount int64 `json:"amount" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	intent, err := h.topupService.Start(userID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, intent)
}

// POST /wallet/deposits/:id/confirm
func (h *WalletHandler) ConfirmDeposit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	topupID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	topup, err := h.topupService.Confirm(topupID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, topup)
}

// GET /wallet/deposits
func (h *WalletHandler) ListDeposits(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	topups, total, err := h.topupService.ListForOwner(userID, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(topups, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /wallet/withdrawals
func (h *WalletHandler) CreateWithdrawal(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	request, err := h.withdrawalService.Create(userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, request)
}

// GET /wallet/withdrawals
func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	requests, total, err := h.withdrawalService.ListForOwner(userID, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(requests, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /wallet/notifications
func (h *WalletHandler) ListNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	notifications, total, err := h.notificationService.ListForUser(userID, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(notifications, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /wallet/notifications/:id/read
func (h *WalletHandler) MarkNotificationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	notificationID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(notificationID, userID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"read": true})
}
