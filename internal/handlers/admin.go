// internal/handlers/admin.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/s4li/talamala-v4-sub000/internal/i18n"
	"github.com/s4li/talamala-v4-sub000/internal/models"
	"github.com/s4li/talamala-v4-sub000/internal/services"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

type AdminHandler struct {
	adminService      *services.AdminService
	settingsService   *services.SettingsService
	withdrawalService *services.WithdrawalService
	inventoryService  *services.InventoryService
	catalogService    *services.CatalogService
	pricingService    *services.PricingService
	checkoutService   *services.CheckoutService
	reaperService     *services.ReaperService
}

func NewAdminHandler(
	adminService *services.AdminService,
	settingsService *services.SettingsService,
	withdrawalService *services.WithdrawalService,
	inventoryService *services.InventoryService,
	catalogService *services.CatalogService,
	pricingService *services.PricingService,
	checkoutService *services.CheckoutService,
	reaperService *services.ReaperService,
) *AdminHandler {
	return &AdminHandler{
		adminService:      adminService,
		settingsService:   settingsService,
		withdrawalService: withdrawalService,
		inventoryService:  inventoryService,
		catalogService:    catalogService,
		pricingService:    pricingService,
		checkoutService:   checkoutService,
		reaperService:     reaperService,
	}
}

// GET /admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var status *models.UserStatus
	if raw := c.Query("status"); raw != "" {
		s := models.UserStatus(raw)
		status = &s
	}

	users, total, err := h.adminService.ListUsers(status, c.Query("search"), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(users, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /admin/users/:id/status
func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.UserStatus `json:"status" binding:"required,oneof=active suspended"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	user, err := h.adminService.SetUserStatus(targetID, req.Status, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, user)
}

// POST /admin/dealers
func (h *AdminHandler) GrantDealer(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.GrantDealerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	dealer, err := h.adminService.GrantDealer(&req, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, dealer)
}

// DELETE /admin/dealers/:id
func (h *AdminHandler) RevokeDealer(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.adminService.RevokeDealer(targetID, adminID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"revoked": true})
}

// POST /admin/grants
func (h *AdminHandler) GrantAdmin(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id" binding:"required"`
		Role   string    `json:"role" binding:"required,oneof=admin super_admin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	grant, err := h.adminService.GrantAdmin(req.UserID, req.Role, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, grant)
}

// POST /admin/credits
func (h *AdminHandler) GrantCredit(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.GrantCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	entry, err := h.adminService.GrantCredit(&req, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, entry)
}

// GET /admin/settings
func (h *AdminHandler) ListSettings(c *gin.Context) {
	settings, err := h.settingsService.List(c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, settings)
}

// PUT /admin/settings/:category/:key
func (h *AdminHandler) UpsertSetting(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		Value       models.JSONB `json:"value" binding:"required"`
		DataType    string       `json:"data_type" binding:"required,oneof=int bool string"`
		Description string       `json:"description" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	setting, err := h.settingsService.Upsert(c.Param("category"), c.Param("key"), req.Value, req.DataType, req.Description, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, setting)
}

// GET /admin/withdrawals
func (h *AdminHandler) ListPendingWithdrawals(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	requests, total, err := h.withdrawalService.ListPending(params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(requests, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/withdrawals/:id/approve
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	h.decideWithdrawal(c, true)
}

// POST /admin/withdrawals/:id/reject
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	h.decideWithdrawal(c, false)
}

func (h *AdminHandler) decideWithdrawal(c *gin.Context, approve bool) {
	lang := utils.GetLangFromContext(c)

	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	requestID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Note string `json:"note" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	var (
		request *models.WithdrawalRequest
		err     error
	)
	if approve {
		request, err = h.withdrawalService.Approve(requestID, adminID, req.Note)
	} else {
		request, err = h.withdrawalService.Reject(requestID, adminID, req.Note)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// POST /admin/products
func (h *AdminHandler) CreateProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	product, err := h.catalogService.CreateProduct(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, product)
}

// PUT /admin/products/:id
func (h *AdminHandler) UpdateProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	product, err := h.catalogService.UpdateProduct(productID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, product)
}

// POST /admin/units/mint
func (h *AdminHandler) MintUnits(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req struct {
		ProductID   uuid.UUID `json:"product_id" binding:"required"`
		SerialCodes []string  `json:"serial_codes" binding:"required,min=1,max=1000,dive,serial_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	units, err := h.inventoryService.MintUnits(req.ProductID, req.SerialCodes)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, units)
}

// POST /admin/units/activate
func (h *AdminHandler) ActivateUnits(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req struct {
		UnitIDs    []uuid.UUID `json:"unit_ids" binding:"required,min=1,max=1000"`
		LocationID uuid.UUID   `json:"location_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	if err := h.inventoryService.ActivateUnits(req.UnitIDs, req.LocationID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"activated": len(req.UnitIDs)})
}

// POST /admin/units/move
func (h *AdminHandler) MoveUnits(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req struct {
		UnitIDs    []uuid.UUID `json:"unit_ids" binding:"required,min=1,max=1000"`
		LocationID uuid.UUID   `json:"location_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	if err := h.inventoryService.MoveUnits(req.UnitIDs, req.LocationID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"moved": len(req.UnitIDs)})
}

// PUT /admin/units/:id/status
func (h *AdminHandler) OverrideUnitStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	unitID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.UnitStatus `json:"status" binding:"required,oneof=raw assigned reserved sold"`
		Reason string            `json:"reason" binding:"required,max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	unit, err := h.inventoryService.AdminOverrideStatus(unitID, req.Status, req.Reason, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, unit)
}

// DELETE /admin/units/raw
func (h *AdminHandler) PurgeRawUnits(c *gin.Context) {
	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product_id", nil)
		return
	}

	purged, err := h.inventoryService.PurgeRawUnits(productID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"purged": purged})
}

// POST /admin/prices
func (h *AdminHandler) RecordPrice(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req struct {
		Metal        models.Metal `json:"metal" binding:"required"`
		PricePerGram int64        `json:"price_per_gram" binding:"required,min=1"`
		FeedAt       *time.Time   `json:"feed_at"`
		Source       string       `json:"source" binding:"required,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}
	if !req.Metal.Valid() {
		utils.BadRequestResponse(c, "Unknown metal", nil)
		return
	}

	feedAt := time.Now()
	if req.FeedAt != nil {
		feedAt = *req.FeedAt
	}

	price, err := h.pricingService.RecordPrice(c.Request.Context(), req.Metal, req.PricePerGram, feedAt, req.Source)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, price)
}

// POST /admin/orders/:id/cancel
func (h *AdminHandler) CancelOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required,max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	order, err := h.checkoutService.CancelOrder(orderID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, order)
}

// GET /admin/audit-logs
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	logs, total, err := h.adminService.ListAuditLogs(c.Query("resource_type"), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(logs, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/sweep
//
// One manual reaper pass, same work the cron schedule runs.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	h.reaperService.Sweep()
	utils.SuccessResponse(c, gin.H{"swept": true})
}
