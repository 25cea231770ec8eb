// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthRegisterSuccess    = "auth.register_success"

	// User Management
	KeyUserNotFound  = "user.not_found"
	KeyUserSuspended = "user.suspended"

	// Catalog
	KeyProductNotFound   = "product.not_found"
	KeyProductOutOfStock = "product.out_of_stock"

	// Orders
	KeyOrderCreated     = "order.created"
	KeyOrderPaid        = "order.paid"
	KeyOrderCancelled   = "order.cancelled"
	KeyOrderNotFound    = "order.not_found"
	KeyOrderNotPending  = "order.not_pending"
	KeyOrderPriceStale  = "order.price_stale"
	KeyOrderShortStock  = "order.short_stock"
	KeyOrderLowBalance  = "order.low_balance"
	KeyOrderConflict    = "order.conflict"
	KeyPaymentFailed    = "payment.failed"
	KeyPaymentConfirmed = "payment.confirmed"

	// Units
	KeyUnitNotFound     = "unit.not_found"
	KeyUnitClaimed      = "unit.claimed"
	KeyUnitClaimInvalid = "unit.claim_invalid"
	KeyUnitTransferred  = "unit.transferred"
	KeyUnitNotOwned     = "unit.not_owned"

	// Wallet
	KeyWalletWithdrawalCreated  = "wallet.withdrawal_created"
	KeyWalletWithdrawalApproved = "wallet.withdrawal_approved"
	KeyWalletWithdrawalRejected = "wallet.withdrawal_rejected"

	// Buyback
	KeyBuybackCompleted = "buyback.completed"
	KeyBuybackDisabled  = "buyback.disabled"

	// Admin
	KeyAdminAccessDenied    = "admin.access_denied"
	KeyAdminSettingsUpdated = "admin.settings_updated"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
)
