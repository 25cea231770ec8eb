// internal/handlers/unit.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/s4li/talamala-v4-sub000/internal/i18n"
	"github.com/s4li/talamala-v4-sub000/internal/services"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

type UnitHandler struct {
	inventoryService *services.InventoryService
}

func NewUnitHandler(inventoryService *services.InventoryService) *UnitHandler {
	return &UnitHandler{inventoryService: inventoryService}
}

// GET /units
func (h *UnitHandler) ListOwned(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	units, err := h.inventoryService.GetOwnedUnits(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, units)
}

// GET /units/:serial
//
// Returns the unit with its full ownership history. Serial codes are public;
// the claim code never leaves the service layer through this endpoint.
func (h *UnitHandler) GetBySerial(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	serial := c.Param("serial")
	if err := utils.ValidateSerialCode(serial); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	unit, err := h.inventoryService.GetUnitBySerial(serial)
	if err != nil {
		respondError(c, err)
		return
	}

	unit.ClaimCode = nil
	utils.SuccessResponse(c, unit)
}

// POST /units/claim
func (h *UnitHandler) Claim(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		SerialCode string `json:"serial_code" binding:"required"`
		ClaimCode  string `json:"claim_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	unit, err := h.inventoryService.Claim(req.SerialCode, req.ClaimCode, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, unit)
}

// POST /units/:serial/transfer
func (h *UnitHandler) Transfer(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		ToUserID *uuid.UUID `json:"to_user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	existing, err := h.inventoryService.GetUnitBySerial(c.Param("serial"))
	if err != nil {
		respondError(c, err)
		return
	}

	unit, err := h.inventoryService.TransferOwnership(existing.ID, userID, req.ToUserID, "owner transfer")
	if err != nil {
		respondError(c, err)
		return
	}

	// A transfer to an unknown recipient minted a claim code; hand it back
	// to the sender so they can pass it on out of band.
	claimCode := unit.ClaimCode
	unit.ClaimCode = nil
	resp := gin.H{"unit": unit}
	if claimCode != nil {
		resp["claim_code"] = *claimCode
	}
	utils.SuccessResponse(c, resp)
}
