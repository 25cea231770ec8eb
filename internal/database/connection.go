// internal/database/connection.go
package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/s4li/talamala-v4-sub000/internal/config"
	"github.com/s4li/talamala-v4-sub000/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// gen_random_uuid lives in pgcrypto on Postgres < 13
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"pgcrypto\"").Error; err != nil {
		return fmt.Errorf("failed to create pgcrypto extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.DealerProfile{},
		&models.AdminGrant{},
		&models.Location{},
		&models.Product{},
		&models.Account{},
		&models.LedgerEntry{},
		&models.Unit{},
		&models.OwnershipEvent{},
		&models.Order{},
		&models.OrderLine{},
		&models.Buyback{},
		&models.WithdrawalRequest{},
		&models.TopUp{},
		&models.MetalPrice{},
		&models.AdminSettings{},
		&models.AuditLog{},
		&models.Notification{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Ledger indexes
		"CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_created ON ledger_entries(account_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_ledger_entries_reference ON ledger_entries(reference_type, reference_id)",

		// Unit indexes beyond the struct tags: the reaper scan and the
		// reservation candidate scan
		"CREATE INDEX IF NOT EXISTS idx_units_reserved_expiry ON units(reserved_until) WHERE status = 'reserved'",
		"CREATE INDEX IF NOT EXISTS idx_units_sellable ON units(product_id, serial_code) WHERE status = 'assigned' AND owner_id IS NULL",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_orders_customer_created ON orders(customer_id, created_at DESC)",

		// Price feed lookup
		"CREATE INDEX IF NOT EXISTS idx_metal_prices_latest ON metal_prices(metal, feed_at DESC)",

		// Admin indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_top_ups_owner_created ON top_ups(owner_id, created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	admin, err := ensureSystemUser(db, "admin", "admin@talamala.com")
	if err != nil {
		return err
	}
	var grantCount int64
	db.Model(&models.AdminGrant{}).Where("user_id = ?", admin.ID).Count(&grantCount)
	if grantCount == 0 {
		grant := &models.AdminGrant{UserID: admin.ID, Role: "super_admin"}
		if err := db.Create(grant).Error; err != nil {
			return fmt.Errorf("failed to grant admin capability: %w", err)
		}
	}

	// The treasury user owns the platform side of every double entry: tax
	// and wholesale proceeds land here.
	if _, err := ensureSystemUser(db, "treasury", "treasury@talamala.com"); err != nil {
		return err
	}

	// Create default platform settings
	defaultSettings := []models.AdminSettings{
		{
			Category:    "trade",
			Key:         "tax_percent",
			Value:       models.JSONB{"value": 9},
			DataType:    "integer",
			Description: "Tax percent applied to metal value plus wage",
		},
		{
			Category:    "trade",
			Key:         "reservation_ttl_s",
			Value:       models.JSONB{"value": 600},
			DataType:    "integer",
			Description: "Seconds a web checkout reservation lives",
		},
		{
			Category:    "trade",
			Key:         "pos_reservation_ttl_s",
			Value:       models.JSONB{"value": 180},
			DataType:    "integer",
			Description: "Seconds a POS quote holds a unit",
		},
		{
			Category:    "trade",
			Key:         "price_freshness_s",
			Value:       models.JSONB{"value": 300},
			DataType:    "integer",
			Description: "Maximum feed age accepted by settlement",
		},
		{
			Category:    "trade",
			Key:         "buyback_enabled",
			Value:       models.JSONB{"value": true},
			DataType:    "boolean",
			Description: "Kill switch for the buyback flow",
		},
		{
			Category:    "trade",
			Key:         "wage_refund_percent",
			Value:       models.JSONB{"value": 70},
			DataType:    "integer",
			Description: "Share of the original wage refunded on buyback",
		},
		{
			Category:    "trade",
			Key:         "min_withdrawal",
			Value:       models.JSONB{"value": 100000},
			DataType:    "integer",
			Description: "Minimum withdrawal amount in minor units",
		},
	}

	for _, setting := range defaultSettings {
		var count int64
		db.Model(&models.AdminSettings{}).Where("category = ? AND key = ?", setting.Category, setting.Key).Count(&count)

		if count == 0 {
			setting.UpdatedBy = admin.ID
			if err := db.Create(&setting).Error; err != nil {
				log.Printf("Warning: Failed to create setting %s.%s: %v", setting.Category, setting.Key, err)
			}
		}
	}

	log.Println("Initial data seeding completed")
	return nil
}

// TreasuryUserID looks up the seeded treasury account owner.
func TreasuryUserID(db *gorm.DB) (uuid.UUID, error) {
	var user models.User
	if err := db.Where("username = ?", "treasury").First(&user).Error; err != nil {
		return uuid.Nil, fmt.Errorf("treasury user missing, run seeds first: %w", err)
	}
	return user.ID, nil
}

func ensureSystemUser(db *gorm.DB, username, email string) (*models.User, error) {
	var user models.User
	err := db.Where("username = ?", username).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up %s user: %w", username, err)
	}

	user = models.User{
		Username: username,
		Email:    email,
		Status:   models.UserStatusActive,
		ProfileData: models.JSONB{
			"system": true,
		},
	}
	if err := user.SetPassword(fmt.Sprintf("change-me-%d", time.Now().UnixNano())); err != nil {
		return nil, fmt.Errorf("failed to set %s password: %w", username, err)
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create %s user: %w", username, err)
	}

	log.Printf("System user %s created", username)
	return &user, nil
}
