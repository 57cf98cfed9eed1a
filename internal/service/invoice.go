package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/observability"
	"github.com/invoicely/backend/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// InvoiceService issues and manages invoices.
type InvoiceService struct {
	db           repository.DB
	invoiceRepo  *repository.InvoiceRepository
	userRepo     *repository.UserRepository
	customerRepo *repository.CustomerRepository
	notifier     Notifier
	reminders    ReminderScheduler
	log          *logrus.Logger
	metrics      *observability.Metrics
	validate     *validator.Validate
	now          func() time.Time
}

// InvoiceDeps groups the collaborators of InvoiceService.
type InvoiceDeps struct {
	DB        repository.DB
	Notifier  Notifier
	Reminders ReminderScheduler
	Log       *logrus.Logger
	Metrics   *observability.Metrics
}

// NewInvoiceService creates a new InvoiceService. Repositories are bound to
// deps.DB and rebound to the transaction during creation.
func NewInvoiceService(deps InvoiceDeps) *InvoiceService {
	return &InvoiceService{
		db:           deps.DB,
		invoiceRepo:  repository.NewInvoiceRepository(deps.DB),
		userRepo:     repository.NewUserRepository(deps.DB),
		customerRepo: repository.NewCustomerRepository(deps.DB),
		notifier:     deps.Notifier,
		reminders:    deps.Reminders,
		log:          deps.Log,
		metrics:      deps.Metrics,
		validate:     newValidator(),
		now:          time.Now,
	}
}

// Create issues an invoice. Everything that must agree (usage, numbering,
// the invoice rows) is written in one transaction with the user row locked;
// notification and reminders follow the commit and never fail the call.
func (s *InvoiceService) Create(ctx context.Context, userID string, req *domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	var inv *domain.Invoice
	err := repository.InTx(ctx, s.db, func(tx pgx.Tx) error {
		users := s.userRepo.WithTx(tx)
		customers := s.customerRepo.WithTx(tx)
		invoices := s.invoiceRepo.WithTx(tx)
		now := s.now()

		user, err := users.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrUnauthorized(domain.MsgUnauthorized)
		}

		used := user.InvoicesUsed
		if user.UsagePeriodElapsed(now) {
			if err := users.ResetUsage(ctx, userID, now); err != nil {
				return err
			}
			used = 0
		}
		plan := planFor(user)
		if plan.InvoiceLimit > 0 && used >= plan.InvoiceLimit {
			return domain.ErrForbidden(fmt.Sprintf("invoice limit of %d reached for the %s plan; upgrade to create more", plan.InvoiceLimit, plan.Name))
		}

		var customer *domain.Customer
		if req.CustomerID != "" {
			customer, err = customers.FindByID(ctx, req.CustomerID, userID)
			if err != nil {
				return err
			}
			if customer == nil {
				return domain.ErrNotFound("customer not found")
			}
		}

		number := req.InvoiceNumber
		if number == "" {
			existing, err := invoices.ListNumbers(ctx, userID, user.InvoicePrefix)
			if err != nil {
				return err
			}
			number = domain.NextInvoiceNumber(existing, user.InvoicePrefix, user.InvoiceSuffix, user.InvoiceStartNumber)
		} else {
			exists, err := invoices.NumberExists(ctx, userID, number)
			if err != nil {
				return err
			}
			if exists {
				return domain.ErrConflict(fmt.Sprintf("invoice number %s already exists", number))
			}
		}

		inv = newInvoice(userID, number, req, user, now)
		if customer != nil {
			inv.CustomerID = &customer.ID
			inv.CustomerName = customer.Name
		}

		if err := invoices.Create(ctx, inv); err != nil {
			if repository.IsUniqueViolation(err) {
				return domain.ErrConflict(fmt.Sprintf("invoice number %s already exists", number))
			}
			return err
		}
		if err := users.IncrementInvoicesUsed(ctx, userID); err != nil {
			return err
		}
		if customer != nil {
			if err := customers.Touch(ctx, customer.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "failed to create invoice")
	}

	s.metrics.InvoicesCreated.Inc()
	s.afterCreate(ctx, inv)
	return inv, nil
}

func newInvoice(userID, number string, req *domain.CreateInvoiceRequest, user *domain.User, now time.Time) *domain.Invoice {
	status := req.Status
	if status == "" {
		status = domain.InvoiceDraft
	}
	inv := &domain.Invoice{
		ID:            domain.NewID(),
		UserID:        userID,
		InvoiceNumber: number,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		Status:        status,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == domain.InvoicePaid {
		inv.PaidAt = &now
	}
	domain.ComputeTotals(req.Items, user.SGSTRate, user.CGSTRate).Apply(inv)
	return inv
}

func (s *InvoiceService) afterCreate(ctx context.Context, inv *domain.Invoice) {
	s.notifier.Notify(ctx, domain.CreateNotificationInput{
		UserID:   inv.UserID,
		Type:     domain.NotificationSuccess,
		Category: domain.CategoryInvoice,
		Title:    "Invoice created",
		Message:  fmt.Sprintf("Invoice %s for ₹%.2f was created.", inv.InvoiceNumber, inv.TotalAmount),
		Metadata: map[string]any{"invoiceId": inv.ID, "invoiceNumber": inv.InvoiceNumber},
	})
	if inv.Status == domain.InvoiceDraft || inv.Status == domain.InvoicePaid {
		return
	}
	if err := s.reminders.Schedule(ctx, inv); err != nil {
		s.log.WithField("invoiceId", inv.ID).Warnf("reminder scheduling failed: %v", err)
	}
}

// NextNumber previews the number the next invoice will be assigned.
func (s *InvoiceService) NextNumber(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return "", domain.ErrUnauthorized(domain.MsgUnauthorized)
	}
	existing, err := s.invoiceRepo.ListNumbers(ctx, userID, user.InvoicePrefix)
	if err != nil {
		return "", domain.ErrInternal("failed to list invoice numbers", err)
	}
	return domain.NextInvoiceNumber(existing, user.InvoicePrefix, user.InvoiceSuffix, user.InvoiceStartNumber), nil
}

// Get returns an invoice with its items.
func (s *InvoiceService) Get(ctx context.Context, userID, id string) (*domain.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find invoice", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound("invoice not found")
	}
	return inv, nil
}

// List returns the user's invoices.
func (s *InvoiceService) List(ctx context.Context, userID string, f domain.InvoiceFilter) ([]*domain.Invoice, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.ErrValidation("status must be one of: DRAFT SENT PENDING PAID OVERDUE")
	}
	list, err := s.invoiceRepo.List(ctx, userID, f)
	if err != nil {
		return nil, domain.ErrInternal("failed to list invoices", err)
	}
	if list == nil {
		list = []*domain.Invoice{}
	}
	return list, nil
}

// UpdateStatus moves an invoice to a new status. PAID stamps paidAt.
func (s *InvoiceService) UpdateStatus(ctx context.Context, userID, id string, req *domain.UpdateInvoiceStatusRequest) (*domain.Invoice, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	inv, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == req.Status {
		return inv, nil
	}

	var paidAt *time.Time
	if req.Status == domain.InvoicePaid {
		now := s.now()
		paidAt = &now
	}
	if _, err := s.invoiceRepo.UpdateStatus(ctx, id, userID, req.Status, paidAt); err != nil {
		return nil, domain.ErrInternal("failed to update invoice status", err)
	}
	prev := inv.Status
	inv.Status = req.Status
	inv.PaidAt = paidAt

	switch {
	case req.Status == domain.InvoicePaid:
		s.notifier.Notify(ctx, domain.CreateNotificationInput{
			UserID:   userID,
			Type:     domain.NotificationSuccess,
			Category: domain.CategoryPayment,
			Title:    "Invoice paid",
			Message:  fmt.Sprintf("Invoice %s was marked as paid.", inv.InvoiceNumber),
			Metadata: map[string]any{"invoiceId": inv.ID, "invoiceNumber": inv.InvoiceNumber},
		})
	case prev == domain.InvoiceDraft && req.Status.Outstanding():
		if err := s.reminders.Schedule(ctx, inv); err != nil {
			s.log.WithField("invoiceId", inv.ID).Warnf("reminder scheduling failed: %v", err)
		}
	}
	return inv, nil
}

// Update edits the due date, items and notes of an unpaid invoice. Totals
// are recomputed with the rates stored on the invoice.
func (s *InvoiceService) Update(ctx context.Context, userID, id string, req *domain.UpdateInvoiceRequest) (*domain.Invoice, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	inv, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == domain.InvoicePaid {
		return nil, domain.ErrBadRequest("paid invoices cannot be edited")
	}
	if req.DueDate.Before(inv.IssueDate) {
		return nil, domain.ErrValidation("dueDate must not be before issueDate")
	}

	inv.DueDate = req.DueDate
	inv.Notes = req.Notes
	inv.UpdatedAt = s.now()
	domain.ComputeTotals(req.Items, inv.SGSTRate, inv.CGSTRate).Apply(inv)

	err = repository.InTx(ctx, s.db, func(tx pgx.Tx) error {
		return s.invoiceRepo.WithTx(tx).Update(ctx, inv)
	})
	if err != nil {
		return nil, domain.ErrInternal("failed to update invoice", err)
	}
	return inv, nil
}

// Delete removes an invoice.
func (s *InvoiceService) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.invoiceRepo.Delete(ctx, id, userID)
	if err != nil {
		return domain.ErrInternal("failed to delete invoice", err)
	}
	if !ok {
		return domain.ErrNotFound("invoice not found")
	}
	return nil
}

// Stats returns dashboard totals by status.
func (s *InvoiceService) Stats(ctx context.Context, userID string) (*domain.InvoiceStats, error) {
	stats, err := s.invoiceRepo.Stats(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load invoice stats", err)
	}
	return stats, nil
}

// SweepOverdue flips past-due outstanding invoices to OVERDUE and notifies
// their owners.
func (s *InvoiceService) SweepOverdue(ctx context.Context) (int, error) {
	changed, err := s.invoiceRepo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, o := range changed {
		s.notifier.Notify(ctx, domain.CreateNotificationInput{
			UserID:   o.UserID,
			Type:     domain.NotificationWarning,
			Category: domain.CategoryInvoice,
			Title:    "Invoice overdue",
			Message:  fmt.Sprintf("Invoice %s (₹%.2f) is now overdue.", o.InvoiceNumber, o.TotalAmount),
			Metadata: map[string]any{"invoiceId": o.ID, "invoiceNumber": o.InvoiceNumber},
		})
	}
	s.metrics.InvoicesMarkedOverdue.Add(float64(len(changed)))
	return len(changed), nil
}

// asAppError passes AppErrors through and wraps anything else as a 500.
func asAppError(err error, msg string) error {
	if appErr, ok := domain.AsAppError(err); ok {
		return appErr
	}
	return domain.ErrInternal(msg, err)
}
