// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s4li/talamala-v4-sub000/internal/config"
	"github.com/s4li/talamala-v4-sub000/internal/handlers"
	"github.com/s4li/talamala-v4-sub000/internal/middleware"
	"github.com/s4li/talamala-v4-sub000/internal/services"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

// Initialize wires services, handlers and routes. The returned reaper is
// started and stopped by the caller alongside the HTTP server.
func Initialize(db *gorm.DB, cache *redis.Client, cfg *config.Config, treasuryID uuid.UUID) (*gin.Engine, *services.ReaperService) {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	ledgerService := services.NewLedgerService(db)
	inventoryService := services.NewInventoryService(db)
	pricingService := services.NewPricingService(db, cache,
		time.Duration(cfg.Pricing.CacheTTLSeconds)*time.Second,
		time.Duration(cfg.Pricing.StalenessSeconds)*time.Second)
	settingsService := services.NewSettingsService(db)
	gateway := services.NewStripeGateway(cfg.Payment.StripeSecretKey, cfg.Payment.Currency)

	authService := services.NewAuthService(db, cfg, notificationService)
	catalogService := services.NewCatalogService(db, inventoryService)
	checkoutService := services.NewCheckoutService(db, ledgerService, inventoryService, pricingService, settingsService, gateway, notificationService, treasuryID)
	posService := services.NewPosService(db, ledgerService, inventoryService, pricingService, settingsService, notificationService, treasuryID)
	buybackService := services.NewBuybackService(db, ledgerService, inventoryService, pricingService, settingsService, notificationService)
	fulfillmentService := services.NewFulfillmentService(db, ledgerService, pricingService, settingsService, treasuryID)
	topupService := services.NewTopUpService(db, ledgerService, gateway)
	withdrawalService := services.NewWithdrawalService(db, ledgerService, settingsService, notificationService)
	adminService := services.NewAdminService(db, ledgerService)
	reaperService := services.NewReaperService(inventoryService, checkoutService, cfg.Reaper.Schedule)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	catalogHandler := handlers.NewCatalogHandler(catalogService, pricingService)
	orderHandler := handlers.NewOrderHandler(checkoutService)
	posHandler := handlers.NewPosHandler(posService, fulfillmentService, catalogService)
	walletHandler := handlers.NewWalletHandler(ledgerService, topupService, withdrawalService, notificationService)
	unitHandler := handlers.NewUnitHandler(inventoryService)
	buybackHandler := handlers.NewBuybackHandler(buybackService)
	adminHandler := handlers.NewAdminHandler(adminService, settingsService, withdrawalService, inventoryService, catalogService, pricingService, checkoutService, reaperService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Catalog routes (public)
		products := v1.Group("/products")
		{
			products.GET("", catalogHandler.ListProducts)
			products.GET("/:id", catalogHandler.GetProduct)
		}

		prices := v1.Group("/prices")
		{
			prices.GET("", catalogHandler.ListPrices)
			prices.GET("/:metal", catalogHandler.GetPrice)
		}

		v1.GET("/locations", catalogHandler.ListLocations)

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.POST("", orderHandler.Checkout)
			orders.GET("", orderHandler.ListOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.POST("/:id/cancel", orderHandler.CancelOrder)

			// Settlement endpoints are serialized per client
			pay := orders.Group("")
			pay.Use(middleware.SettlementRateLimit())
			{
				pay.POST("/:id/pay/wallet", orderHandler.PayFromWallet)
				pay.POST("/:id/pay/gateway", orderHandler.StartGatewayPayment)
				pay.POST("/:id/pay/gateway/confirm", orderHandler.ConfirmGatewayPayment)
			}
		}

		// Dealer counter routes
		pos := v1.Group("/pos")
		pos.Use(middleware.AuthRequired(), middleware.DealerRequired())
		{
			pos.POST("/reserve", posHandler.Reserve)
			pos.POST("/confirm", middleware.SettlementRateLimit(), posHandler.Confirm)
			pos.POST("/fulfillments", middleware.SettlementRateLimit(), posHandler.FulfillBulk)
			pos.POST("/locations", posHandler.CreateLocation)
		}

		// Wallet routes
		wallet := v1.Group("/wallet")
		wallet.Use(middleware.AuthRequired())
		{
			wallet.GET("/balances", walletHandler.GetBalances)
			wallet.GET("/entries", walletHandler.GetEntries)
			wallet.POST("/deposits", walletHandler.StartDeposit)
			wallet.GET("/deposits", walletHandler.ListDeposits)
			wallet.POST("/deposits/:id/confirm", middleware.SettlementRateLimit(), walletHandler.ConfirmDeposit)
			wallet.POST("/withdrawals", walletHandler.CreateWithdrawal)
			wallet.GET("/withdrawals", walletHandler.ListWithdrawals)
			wallet.GET("/notifications", walletHandler.ListNotifications)
			wallet.PUT("/notifications/:id/read", walletHandler.MarkNotificationRead)
		}

		// Unit routes
		units := v1.Group("/units")
		{
			units.GET("/:serial", unitHandler.GetBySerial)

			protected := units.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.GET("", unitHandler.ListOwned)
				protected.POST("/claim", unitHandler.Claim)
				protected.POST("/:serial/transfer", unitHandler.Transfer)
			}
		}

		// Buyback routes
		buybacks := v1.Group("/buybacks")
		buybacks.Use(middleware.AuthRequired(), middleware.SettlementRateLimit())
		{
			buybacks.POST("", buybackHandler.Buyback)
			buybacks.GET("", buybackHandler.ListBuybacks)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", adminHandler.ListUsers)
				adminUsers.PUT("/:id/status", adminHandler.SetUserStatus)
			}

			admin.POST("/dealers", adminHandler.GrantDealer)
			admin.DELETE("/dealers/:id", adminHandler.RevokeDealer)
			admin.POST("/grants", adminHandler.GrantAdmin)
			admin.POST("/credits", adminHandler.GrantCredit)

			adminSettings := admin.Group("/settings")
			{
				adminSettings.GET("", adminHandler.ListSettings)
				adminSettings.PUT("/:category/:key", adminHandler.UpsertSetting)
			}

			adminWithdrawals := admin.Group("/withdrawals")
			{
				adminWithdrawals.GET("", adminHandler.ListPendingWithdrawals)
				adminWithdrawals.POST("/:id/approve", adminHandler.ApproveWithdrawal)
				adminWithdrawals.POST("/:id/reject", adminHandler.RejectWithdrawal)
			}

			adminProducts := admin.Group("/products")
			{
				adminProducts.POST("", adminHandler.CreateProduct)
				adminProducts.PUT("/:id", adminHandler.UpdateProduct)
			}

			adminUnits := admin.Group("/units")
			{
				adminUnits.POST("/mint", adminHandler.MintUnits)
				adminUnits.POST("/activate", adminHandler.ActivateUnits)
				adminUnits.POST("/move", adminHandler.MoveUnits)
				adminUnits.PUT("/:id/status", adminHandler.OverrideUnitStatus)
				adminUnits.DELETE("/raw", adminHandler.PurgeRawUnits)
			}

			admin.POST("/prices", middleware.PriceFeedRateLimit(), adminHandler.RecordPrice)
			admin.POST("/orders/:id/cancel", adminHandler.CancelOrder)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
			admin.POST("/sweep", adminHandler.RunSweep)
		}
	}

	return r, reaperService
}
