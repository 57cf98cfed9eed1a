package domain

import (
	"time"

	"github.com/google/uuid"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Defaults applied to newly registered users.
const (
	DefaultInvoicePrefix      = "INV"
	DefaultInvoiceStartNumber = 1
	DefaultSGSTRate           = 2.5
	DefaultCGSTRate           = 2.5
	DefaultSessionTimeoutMins = 24 * 60
)

// User represents a registered account owner (the tenant).
type User struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Password           string             `json:"-"` // bcrypt hash, never serialized
	Role               string             `json:"role"`
	CompanyName        string             `json:"companyName"`
	CompanyAddress     string             `json:"companyAddress"`
	CompanyPhone       string             `json:"companyPhone"`
	GSTIN              string             `json:"gstin"`
	PlanID             string             `json:"planId"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	InvoicesUsed       int                `json:"invoicesUsed"`
	UsagePeriodStart   time.Time          `json:"usagePeriodStart"`
	InvoicePrefix      string             `json:"invoicePrefix"`
	InvoiceSuffix      string             `json:"invoiceSuffix"`
	InvoiceStartNumber int                `json:"invoiceStartNumber"`
	SGSTRate           float64            `json:"sgstRate"`
	CGSTRate           float64            `json:"cgstRate"`
	SessionTimeoutMins int                `json:"sessionTimeoutMinutes"`
	TwoFactorEnabled   bool               `json:"twoFactorEnabled"`
	TwoFactorSecret    string             `json:"-"` // encrypted
	BackupCodes        []string           `json:"-"` // bcrypt hashes
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// SessionTimeout returns the configured session lifetime, falling back to the default.
func (u *User) SessionTimeout() time.Duration {
	mins := u.SessionTimeoutMins
	if mins <= 0 {
		mins = DefaultSessionTimeoutMins
	}
	return time.Duration(mins) * time.Minute
}

// UsagePeriodElapsed reports whether the monthly invoice allowance has
// rolled over since UsagePeriodStart.
func (u *User) UsagePeriodElapsed(now time.Time) bool {
	return !now.Before(u.UsagePeriodStart.AddDate(0, 1, 0))
}

// NewUser returns a user on the free plan with default invoicing preferences.
func NewUser(name, email, passwordHash string, now time.Time) *User {
	return &User{
		ID:                 NewID(),
		Name:               name,
		Email:              email,
		Password:           passwordHash,
		Role:               RoleUser,
		PlanID:             FreePlanID,
		SubscriptionStatus: SubscriptionNone,
		UsagePeriodStart:   now,
		InvoicePrefix:      DefaultInvoicePrefix,
		InvoiceStartNumber: DefaultInvoiceStartNumber,
		SGSTRate:           DefaultSGSTRate,
		CGSTRate:           DefaultCGSTRate,
		SessionTimeoutMins: DefaultSessionTimeoutMins,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// RegisterRequest is the validated input for creating an account.
type RegisterRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	CompanyName string `json:"companyName" validate:"max=200"`
}

// LoginRequest is the validated input for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
	Code     string `json:"code" validate:"omitempty,min=6,max=12"`
}

// LoginMeta describes the client a login originates from.
type LoginMeta struct {
	IP        string
	UserAgent string
}

// LoginResponse is the result of a login attempt. Token is empty when a
// second factor is still required.
type LoginResponse struct {
	RequiresTwoFactor bool          `json:"requiresTwoFactor,omitempty"`
	Token             string        `json:"-"`
	SessionID         string        `json:"-"`
	ExpiresAt         time.Time     `json:"expiresAt,omitempty"`
	User              *UserResponse `json:"user,omitempty"`
}

// JWTClaims represents the JWT payload.
type JWTClaims struct {
	Sub       string `json:"sub"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
}

// ChangePasswordRequest is the validated input for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

// CreateUserRequest is the validated input for creating a user (admin only).
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UserResponse is the safe API response for a user (no secrets).
type UserResponse struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Role               string             `json:"role"`
	CompanyName        string             `json:"companyName"`
	PlanID             string             `json:"planId"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	TwoFactorEnabled   bool               `json:"twoFactorEnabled"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// ToResponse strips credentials from a user.
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		CompanyName:        u.CompanyName,
		PlanID:             u.PlanID,
		SubscriptionStatus: u.SubscriptionStatus,
		TwoFactorEnabled:   u.TwoFactorEnabled,
		CreatedAt:          u.CreatedAt,
	}
}

// TwoFactorSetupResponse carries the provisioning data for an authenticator app.
type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// TwoFactorCodeRequest carries a TOTP code.
type TwoFactorCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// TwoFactorDisableRequest requires the account password.
type TwoFactorDisableRequest struct {
	Password string `json:"password" validate:"required"`
}

// BackupCodesResponse is returned once when two-factor auth is enabled.
type BackupCodesResponse struct {
	BackupCodes []string `json:"backupCodes"`
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
