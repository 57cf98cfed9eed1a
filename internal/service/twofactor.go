package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/invoicely/backend/internal/domain"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const (
	totpIssuer      = "Invoicely"
	backupCodeCount = 8
)

// SetupTwoFactor generates a TOTP secret, stores it encrypted and returns
// the provisioning data. Two-factor stays disabled until EnableTwoFactor.
func (s *AuthService) SetupTwoFactor(ctx context.Context, userID string) (*domain.TwoFactorSetupResponse, error) {
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, domain.ErrBadRequest("two-factor authentication is already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: totpIssuer, AccountName: user.Email})
	if err != nil {
		return nil, domain.ErrInternal("failed to generate secret", err)
	}
	sealed, err := s.enc.Seal(userID, key.Secret())
	if err != nil {
		return nil, domain.ErrInternal("failed to encrypt secret", err)
	}
	if err := s.userRepo.SetTwoFactorSecret(ctx, userID, sealed); err != nil {
		return nil, domain.ErrInternal("failed to store secret", err)
	}
	return &domain.TwoFactorSetupResponse{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// EnableTwoFactor confirms a code against the pending secret, turns
// two-factor on and returns fresh backup codes. The plaintext codes are
// only ever returned here.
func (s *AuthService) EnableTwoFactor(ctx context.Context, userID string, req *domain.TwoFactorCodeRequest) (*domain.BackupCodesResponse, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, domain.ErrBadRequest("two-factor authentication is already enabled")
	}
	if user.TwoFactorSecret == "" {
		return nil, domain.ErrBadRequest("two-factor setup has not been started")
	}

	ok, err := s.checkTOTP(user, req.Code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrBadRequest("invalid verification code")
	}

	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		return nil, domain.ErrInternal("failed to generate backup codes", err)
	}
	if err := s.userRepo.EnableTwoFactor(ctx, userID, hashes); err != nil {
		return nil, domain.ErrInternal("failed to enable two-factor", err)
	}

	s.notifier.Notify(ctx, domain.CreateNotificationInput{
		UserID:   userID,
		Type:     domain.NotificationSuccess,
		Category: domain.CategorySecurity,
		Title:    "Two-factor authentication enabled",
		Message:  "Your account now requires a verification code at sign-in.",
	})
	return &domain.BackupCodesResponse{BackupCodes: codes}, nil
}

// DisableTwoFactor turns two-factor off after re-checking the password.
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID string, req *domain.TwoFactorDisableRequest) error {
	if err := validateStruct(s.validate, req); err != nil {
		return err
	}
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return domain.ErrBadRequest("password is incorrect")
	}
	if err := s.userRepo.DisableTwoFactor(ctx, userID); err != nil {
		return domain.ErrInternal("failed to disable two-factor", err)
	}

	s.notifier.Notify(ctx, domain.CreateNotificationInput{
		UserID:   userID,
		Type:     domain.NotificationWarning,
		Category: domain.CategorySecurity,
		Title:    "Two-factor authentication disabled",
		Message:  "Sign-in no longer requires a verification code.",
	})
	return nil
}

func (s *AuthService) checkTOTP(user *domain.User, code string) (bool, error) {
	secret, err := s.enc.Open(user.ID, user.TwoFactorSecret)
	if err != nil {
		return false, domain.ErrInternal("failed to read two-factor secret", err)
	}
	return totp.Validate(code, secret), nil
}

// verifySecondFactor accepts a current TOTP code or an unused backup code.
// A matched backup code is consumed.
func (s *AuthService) verifySecondFactor(ctx context.Context, user *domain.User, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if ok, err := s.checkTOTP(user, code); err != nil || ok {
		return ok, err
	}

	normalized := strings.ToLower(strings.ReplaceAll(code, "-", ""))
	for i, h := range user.BackupCodes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(normalized)) != nil {
			continue
		}
		remaining := make([]string, 0, len(user.BackupCodes)-1)
		remaining = append(remaining, user.BackupCodes[:i]...)
		remaining = append(remaining, user.BackupCodes[i+1:]...)
		if err := s.userRepo.UpdateBackupCodes(ctx, user.ID, remaining); err != nil {
			return false, domain.ErrInternal("failed to consume backup code", err)
		}
		user.BackupCodes = remaining
		return true, nil
	}
	return false, nil
}

func (s *AuthService) newBackupCodes() (codes, hashes []string, err error) {
	codes = make([]string, backupCodeCount)
	hashes = make([]string, backupCodeCount)
	for i := range codes {
		buf := make([]byte, 5)
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		code := hex.EncodeToString(buf)
		h, err := s.hash(code)
		if err != nil {
			return nil, nil, err
		}
		codes[i] = code[:5] + "-" + code[5:]
		hashes[i] = h
	}
	return codes, hashes, nil
}
