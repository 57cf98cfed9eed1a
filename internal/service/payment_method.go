package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/repository"
	"github.com/invoicely/backend/pkg/crypto"
	"github.com/jackc/pgx/v5"
)

// PaymentMethodService stores payment instruments encrypted at rest.
type PaymentMethodService struct {
	db       repository.DB
	repo     *repository.PaymentMethodRepository
	enc      *crypto.Encryptor
	validate *validator.Validate
	now      func() time.Time
}

// NewPaymentMethodService creates a new PaymentMethodService.
func NewPaymentMethodService(db repository.DB, enc *crypto.Encryptor) *PaymentMethodService {
	return &PaymentMethodService{
		db:       db,
		repo:     repository.NewPaymentMethodRepository(db),
		enc:      enc,
		validate: newValidator(),
		now:      time.Now,
	}
}

// Add saves a payment method. Only the masked form is returned.
func (s *PaymentMethodService) Add(ctx context.Context, userID string, req *domain.CreatePaymentMethodRequest) (*domain.PaymentMethod, error) {
	req.Details = strings.ReplaceAll(strings.TrimSpace(req.Details), " ", "")
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	sealed, err := s.enc.Seal(userID, req.Details)
	if err != nil {
		return nil, domain.ErrInternal("failed to encrypt payment details", err)
	}

	m := &domain.PaymentMethod{
		ID:        domain.NewID(),
		UserID:    userID,
		Type:      req.Type,
		Label:     req.Label,
		Masked:    domain.MaskDetails(req.Type, req.Details),
		Details:   sealed,
		IsDefault: req.IsDefault,
		CreatedAt: s.now(),
	}
	err = repository.InTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		if m.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, m)
	})
	if err != nil {
		return nil, domain.ErrInternal("failed to save payment method", err)
	}
	return m, nil
}

// List returns the user's payment methods.
func (s *PaymentMethodService) List(ctx context.Context, userID string) ([]*domain.PaymentMethod, error) {
	list, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list payment methods", err)
	}
	if list == nil {
		list = []*domain.PaymentMethod{}
	}
	return list, nil
}

// SetDefault makes one method the default.
func (s *PaymentMethodService) SetDefault(ctx context.Context, userID, id string) error {
	err := repository.InTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ClearDefault(ctx, userID); err != nil {
			return err
		}
		ok, err := repo.SetDefault(ctx, id, userID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound("payment method not found")
		}
		return nil
	})
	if err != nil {
		return asAppError(err, "failed to set default payment method")
	}
	return nil
}

// Delete removes a payment method.
func (s *PaymentMethodService) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return domain.ErrInternal("failed to delete payment method", err)
	}
	if !ok {
		return domain.ErrNotFound("payment method not found")
	}
	return nil
}
