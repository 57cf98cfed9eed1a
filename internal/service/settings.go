package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/repository"
)

// SettingsService reads and updates per-user preferences.
type SettingsService struct {
	userRepo *repository.UserRepository
	validate *validator.Validate
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(userRepo *repository.UserRepository) *SettingsService {
	return &SettingsService{userRepo: userRepo, validate: newValidator()}
}

// Get returns all settings for the user.
func (s *SettingsService) Get(ctx context.Context, userID string) (*domain.SettingsResponse, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if u == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	return &domain.SettingsResponse{
		Profile: domain.UpdateProfileRequest{
			Name:           u.Name,
			CompanyName:    u.CompanyName,
			CompanyAddress: u.CompanyAddress,
			CompanyPhone:   u.CompanyPhone,
			GSTIN:          u.GSTIN,
		},
		Invoice: domain.InvoiceSettings{
			InvoicePrefix:      u.InvoicePrefix,
			InvoiceSuffix:      u.InvoiceSuffix,
			InvoiceStartNumber: u.InvoiceStartNumber,
			SGSTRate:           u.SGSTRate,
			CGSTRate:           u.CGSTRate,
		},
		Session:  domain.SessionSettings{SessionTimeoutMins: u.SessionTimeoutMins},
		Email:    u.Email,
		TwoFA:    u.TwoFactorEnabled,
		PlanID:   u.PlanID,
		Currency: "INR",
	}, nil
}

// UpdateProfile stores profile and company fields.
func (s *SettingsService) UpdateProfile(ctx context.Context, userID string, req *domain.UpdateProfileRequest) error {
	req.GSTIN = strings.ToUpper(strings.TrimSpace(req.GSTIN))
	if err := validateStruct(s.validate, req); err != nil {
		return err
	}
	if err := s.userRepo.UpdateProfile(ctx, userID, req); err != nil {
		return domain.ErrInternal("failed to update profile", err)
	}
	return nil
}

// UpdateInvoiceSettings stores numbering and tax preferences. New numbers
// follow the new prefix; existing invoices keep theirs.
func (s *SettingsService) UpdateInvoiceSettings(ctx context.Context, userID string, req *domain.InvoiceSettings) error {
	req.InvoicePrefix = strings.ToUpper(strings.TrimSpace(req.InvoicePrefix))
	if err := validateStruct(s.validate, req); err != nil {
		return err
	}
	if err := s.userRepo.UpdateInvoiceSettings(ctx, userID, req); err != nil {
		return domain.ErrInternal("failed to update invoice settings", err)
	}
	return nil
}

// UpdateSessionSettings stores the session lifetime. Existing sessions keep
// their expiry.
func (s *SettingsService) UpdateSessionSettings(ctx context.Context, userID string, req *domain.SessionSettings) error {
	if err := validateStruct(s.validate, req); err != nil {
		return err
	}
	if err := s.userRepo.UpdateSessionTimeout(ctx, userID, req.SessionTimeoutMins); err != nil {
		return domain.ErrInternal("failed to update session settings", err)
	}
	return nil
}
