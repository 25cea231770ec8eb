// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is an identity record only. What a user may do (sell at a counter,
// administer the platform) lives in separate capability records so the
// settlement core never has to ask which kind of user it is dealing with.
type User struct {
	BaseModel
	Username     string     `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Phone        string     `json:"phone" gorm:"size:20;index"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"`
	Status       UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	ProfileData  JSONB      `json:"profile_data" gorm:"type:jsonb"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	// Relationships
	Accounts []Account      `json:"accounts,omitempty" gorm:"foreignKey:OwnerID"`
	Orders   []Order        `json:"orders,omitempty" gorm:"foreignKey:CustomerID"`
	Dealer   *DealerProfile `json:"dealer,omitempty" gorm:"foreignKey:UserID"`
	Admin    *AdminGrant    `json:"admin,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// DealerProfile grants point-of-sale capability: the user sells physical
// stock held at a custody location and receives sale proceeds.
type DealerProfile struct {
	BaseModel
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	DisplayName string    `json:"display_name" gorm:"size:100;not null"`
	Active      bool      `json:"active" gorm:"default:true"`

	User      User       `json:"-" gorm:"foreignKey:UserID"`
	Locations []Location `json:"locations,omitempty" gorm:"foreignKey:DealerID"`
}

// AdminGrant grants administrative capability.
type AdminGrant struct {
	BaseModel
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	Role      string     `json:"role" gorm:"size:50;default:'admin'"`
	GrantedBy *uuid.UUID `json:"granted_by" gorm:"type:uuid"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// Location is a physical custody point (vault, branch counter) where
// serialized units sit until sold.
type Location struct {
	BaseModel
	DealerID uuid.UUID `json:"dealer_id" gorm:"type:uuid;not null;index"`
	Name     string    `json:"name" gorm:"size:100;not null"`
	Address  string    `json:"address" gorm:"type:text"`
	Active   bool      `json:"active" gorm:"default:true"`

	Dealer DealerProfile `json:"-" gorm:"foreignKey:DealerID"`
}
