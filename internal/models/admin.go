// internal/models/admin.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminSettings is the runtime-mutable key/value configuration table
// (reservation window, tax percent, buyback wage-refund percent). Orchestrated
// transactions never read it mid-flight: they take an immutable snapshot at
// the start (see services.SettingsSnapshot).
type AdminSettings struct {
	BaseModel
	Category    string    `json:"category" gorm:"size:50;not null;uniqueIndex:idx_admin_settings_cat_key,priority:1"`
	Key         string    `json:"key" gorm:"size:100;not null;uniqueIndex:idx_admin_settings_cat_key,priority:2"`
	Value       JSONB     `json:"value" gorm:"type:jsonb"`
	DataType    string    `json:"data_type" gorm:"size:20"`
	Description string    `json:"description" gorm:"type:text"`
	UpdatedBy   uuid.UUID `json:"updated_by" gorm:"type:uuid"`
}

// AuditLog is an append-only request audit row written asynchronously by the
// logging middleware.
type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:255;not null"`
	ResourceType string     `json:"resource_type" gorm:"size:50;index:idx_audit_logs_resource,priority:1"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index:idx_audit_logs_resource,priority:2"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"size:255"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
}

// Notification is an in-app notification row; email delivery is
// fire-and-forget on top of it.
type Notification struct {
	BaseModel
	UserID  uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Type    string     `json:"type" gorm:"size:50;not null;index"`
	Title   string     `json:"title" gorm:"size:255;not null"`
	Message string     `json:"message" gorm:"type:text"`
	Data    JSONB      `json:"data" gorm:"type:jsonb"`
	ReadAt  *time.Time `json:"read_at"`
}
