package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/repository"
)

// CustomerService manages a user's customers.
type CustomerService struct {
	repo     *repository.CustomerRepository
	userRepo *repository.UserRepository
	validate *validator.Validate
	now      func() time.Time
}

// NewCustomerService creates a new CustomerService.
func NewCustomerService(repo *repository.CustomerRepository, userRepo *repository.UserRepository) *CustomerService {
	return &CustomerService{
		repo:     repo,
		userRepo: userRepo,
		validate: newValidator(),
		now:      time.Now,
	}
}

// Create adds a customer, enforcing the plan's customer limit.
func (s *CustomerService) Create(ctx context.Context, userID string, req *domain.CustomerRequest) (*domain.Customer, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthorized(domain.MsgUnauthorized)
	}
	plan := planFor(user)
	if plan.CustomerLimit > 0 {
		n, err := s.repo.CountByUser(ctx, userID)
		if err != nil {
			return nil, domain.ErrInternal("failed to count customers", err)
		}
		if n >= plan.CustomerLimit {
			return nil, domain.ErrForbidden(fmt.Sprintf("customer limit of %d reached for the %s plan", plan.CustomerLimit, plan.Name))
		}
	}

	now := s.now()
	c := &domain.Customer{
		ID:        domain.NewID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.Apply(c)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, domain.ErrInternal("failed to create customer", err)
	}
	return c, nil
}

// List returns the user's customers.
func (s *CustomerService) List(ctx context.Context, userID string, f domain.CustomerFilter) ([]*domain.Customer, error) {
	if f.Status != "" && f.Status != domain.CustomerActive && f.Status != domain.CustomerInactive {
		return nil, domain.ErrValidation("status must be one of: ACTIVE INACTIVE")
	}
	list, err := s.repo.List(ctx, userID, f)
	if err != nil {
		return nil, domain.ErrInternal("failed to list customers", err)
	}
	if list == nil {
		list = []*domain.Customer{}
	}
	return list, nil
}

// Get returns one customer.
func (s *CustomerService) Get(ctx context.Context, userID, id string) (*domain.Customer, error) {
	c, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find customer", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound("customer not found")
	}
	return c, nil
}

// Update replaces the editable fields of a customer.
func (s *CustomerService) Update(ctx context.Context, userID, id string, req *domain.CustomerRequest) (*domain.Customer, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	req.Apply(c)
	c.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, domain.ErrInternal("failed to update customer", err)
	}
	return c, nil
}

// Delete removes a customer that has no invoices.
func (s *CustomerService) Delete(ctx context.Context, userID, id string) error {
	c, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		return domain.ErrInternal("failed to find customer", err)
	}
	if c == nil {
		return domain.ErrNotFound("customer not found")
	}

	n, err := s.repo.CountInvoices(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to count invoices", err)
	}
	if n > 0 {
		return domain.ErrBadRequest(fmt.Sprintf("cannot delete customer with %d existing invoice(s)", n))
	}

	// An invoice issued after the count still blocks the delete through the
	// invoices.customer_id foreign key.
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return domain.ErrBadRequest("cannot delete customer with existing invoices")
		}
		return domain.ErrInternal("failed to delete customer", err)
	}
	return nil
}

// planFor resolves the user's plan, falling back to the free plan when the
// subscription is not live or the plan id is unknown.
func planFor(user *domain.User) domain.Plan {
	if user.PlanID != domain.FreePlanID && !user.SubscriptionStatus.Live() {
		return domain.FreePlan()
	}
	if p, ok := domain.GetPlan(user.PlanID); ok {
		return p
	}
	return domain.FreePlan()
}
