// internal/services/auth_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s4li/talamala-v4-sub000/internal/config"
	"github.com/s4li/talamala-v4-sub000/internal/models"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

type AuthService struct {
	db            *gorm.DB
	cfg           *config.Config
	notifications *NotificationService
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username    string                 `json:"username" validate:"required,username"`
	Email       string                 `json:"email" validate:"required,email"`
	Password    string                 `json:"password" validate:"required,strong_password"`
	Phone       string                 `json:"phone,omitempty"`
	ProfileData map[string]interface{} `json:"profile_data,omitempty"`
}

type AuthResponse struct {
	User         *models.User `json:"user"`
	Roles        []string     `json:"roles"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

func NewAuthService(db *gorm.DB, cfg *config.Config, notifications *NotificationService) *AuthService {
	return &AuthService{
		db:            db,
		cfg:           cfg,
		notifications: notifications,
	}
}

func (s *AuthService) Register(req *RegisterRequest) (*AuthResponse, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Check if user already exists
	var existingUser models.User
	if err := s.db.Where("email = ? OR username = ?", req.Email, req.Username).First(&existingUser).Error; err == nil {
		if existingUser.Email == req.Email {
			return nil, errors.New("user with this email already exists")
		}
		return nil, errors.New("username already taken")
	}

	user := &models.User{
		Username:    req.Username,
		Email:       req.Email,
		Phone:       req.Phone,
		Status:      models.UserStatusActive,
		ProfileData: models.JSONB(req.ProfileData),
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// New accounts hold no capability records; they can buy, claim and hold
	// balances. Dealer and admin capabilities are granted separately.
	roles := []string{utils.RoleCustomer}

	response, err := s.buildAuthResponse(user, roles)
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		go s.notifications.SendWelcomeEmail(user)
	}
	return response, nil
}

func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Find user by email
	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("invalid email or password")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if user.Status == models.UserStatusSuspended {
		return nil, errors.New("account is suspended")
	}
	if user.Status == models.UserStatusBanned {
		return nil, errors.New("account is banned")
	}

	// Verify password
	if err := user.CheckPassword(req.Password); err != nil {
		return nil, errors.New("invalid email or password")
	}

	// Update last login time
	now := time.Now()
	user.LastLoginAt = &now
	s.db.Save(&user)

	roles, err := s.RolesFor(user.ID)
	if err != nil {
		return nil, err
	}
	return s.buildAuthResponse(&user, roles)
}

func (s *AuthService) RefreshToken(refreshToken string) (*AuthResponse, error) {
	userIDStr, err := utils.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if user.Status != models.UserStatusActive {
		return nil, errors.New("account is not active")
	}

	roles, err := s.RolesFor(user.ID)
	if err != nil {
		return nil, err
	}
	return s.buildAuthResponse(&user, roles)
}

// RolesFor resolves capability records into token roles. Capabilities are
// explicit lookups, never attributes of the user row itself.
func (s *AuthService) RolesFor(userID uuid.UUID) ([]string, error) {
	roles := []string{utils.RoleCustomer}

	var dealerCount int64
	if err := s.db.Model(&models.DealerProfile{}).
		Where("user_id = ? AND active = ?", userID, true).Count(&dealerCount).Error; err != nil {
		return nil, fmt.Errorf("failed to look up dealer capability: %w", err)
	}
	if dealerCount > 0 {
		roles = append(roles, utils.RoleDealer)
	}

	var adminCount int64
	if err := s.db.Model(&models.AdminGrant{}).
		Where("user_id = ?", userID).Count(&adminCount).Error; err != nil {
		return nil, fmt.Errorf("failed to look up admin capability: %w", err)
	}
	if adminCount > 0 {
		roles = append(roles, utils.RoleAdmin)
	}
	return roles, nil
}

// GetProfile loads the user plus their capability records.
func (s *AuthService) GetProfile(userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Dealer").Preload("Dealer.Locations").Preload("Admin").
		First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &user, nil
}

func (s *AuthService) buildAuthResponse(user *models.User, roles []string) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(user.ID, user.Username, roles, s.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := utils.GenerateRefreshToken(user.ID, s.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &AuthResponse{
		User:         user,
		Roles:        roles,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.JWT.AccessTokenTTL * 3600, // Convert hours to seconds
	}, nil
}
