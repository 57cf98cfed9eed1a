package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/observability"
	"github.com/invoicely/backend/internal/repository"
	"github.com/invoicely/backend/pkg/mailer"
	"github.com/invoicely/backend/pkg/payment"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// SubscriptionService runs plan selection, cancellation and paid checkout.
type SubscriptionService struct {
	db          repository.DB
	subRepo     *repository.SubscriptionRepository
	userRepo    *repository.UserRepository
	billingRepo *repository.BillingRepository
	txnRepo     *repository.TransactionRepository
	gateway     payment.Gateway
	notifier    Notifier
	mail        mailer.Mailer
	log         *logrus.Logger
	metrics     *observability.Metrics
	validate    *validator.Validate
	now         func() time.Time
}

// SubscriptionDeps groups the collaborators of SubscriptionService.
type SubscriptionDeps struct {
	DB       repository.DB
	Gateway  payment.Gateway
	Notifier Notifier
	Mailer   mailer.Mailer
	Log      *logrus.Logger
	Metrics  *observability.Metrics
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(deps SubscriptionDeps) *SubscriptionService {
	return &SubscriptionService{
		db:          deps.DB,
		subRepo:     repository.NewSubscriptionRepository(deps.DB),
		userRepo:    repository.NewUserRepository(deps.DB),
		billingRepo: repository.NewBillingRepository(deps.DB),
		txnRepo:     repository.NewTransactionRepository(deps.DB),
		gateway:     deps.Gateway,
		notifier:    deps.Notifier,
		mail:        deps.Mailer,
		log:         deps.Log,
		metrics:     deps.Metrics,
		validate:    newValidator(),
		now:         time.Now,
	}
}

// Plans returns the plan catalog.
func (s *SubscriptionService) Plans() []domain.Plan {
	return domain.AvailablePlans()
}

// Current returns the user's billing state.
func (s *SubscriptionService) Current(ctx context.Context, userID string) (*domain.SubscriptionView, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthorized(domain.MsgUnauthorized)
	}
	sub, err := s.subRepo.FindLive(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find subscription", err)
	}
	return &domain.SubscriptionView{
		Status:       user.SubscriptionStatus,
		Plan:         planFor(user),
		Subscription: sub,
		InvoicesUsed: user.InvoicesUsed,
	}, nil
}

// History returns the user's billing ledger.
func (s *SubscriptionService) History(ctx context.Context, userID string, limit int) ([]*domain.BillingHistory, error) {
	list, err := s.billingRepo.List(ctx, userID, limit)
	if err != nil {
		return nil, domain.ErrInternal("failed to list billing history", err)
	}
	if list == nil {
		list = []*domain.BillingHistory{}
	}
	return list, nil
}

// SelectPlan switches the user to a plan without a charge. Paid plans with a
// trial start in TRIAL; everything else is ACTIVE at once.
func (s *SubscriptionService) SelectPlan(ctx context.Context, userID string, req *domain.SelectPlanRequest) (*domain.Subscription, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	plan, ok := domain.GetPlan(req.PlanID)
	if !ok {
		return nil, domain.ErrNotFound("plan not found")
	}

	var sub *domain.Subscription
	err := repository.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.lockUser(ctx, tx, userID); err != nil {
			return err
		}
		now := s.now()
		subs := s.subRepo.WithTx(tx)
		if _, err := subs.CancelLive(ctx, userID, now); err != nil {
			return err
		}
		sub = domain.StartSubscription(userID, plan, now)
		if err := createLive(ctx, subs, sub); err != nil {
			return err
		}
		if err := s.userRepo.WithTx(tx).UpdatePlan(ctx, userID, plan.ID, sub.Status, now); err != nil {
			return err
		}
		return s.billingRepo.WithTx(tx).Append(ctx, domain.HistoryForNewSubscription(sub, plan, now))
	})
	if err != nil {
		return nil, asAppError(err, "failed to select plan")
	}

	msg := fmt.Sprintf("You are now on the %s plan.", plan.Name)
	if sub.Status == domain.SubscriptionTrial {
		msg = fmt.Sprintf("Your %d-day %s trial has started.", plan.TrialPeriodDays, plan.Name)
	}
	s.notifier.Notify(ctx, domain.CreateNotificationInput{
		UserID:   userID,
		Type:     domain.NotificationSuccess,
		Category: domain.CategorySubscription,
		Title:    "Plan updated",
		Message:  msg,
		Metadata: map[string]any{"planId": plan.ID, "status": string(sub.Status)},
	})
	return sub, nil
}

// Cancel ends the live subscription and moves the user to the free plan.
func (s *SubscriptionService) Cancel(ctx context.Context, userID string) error {
	var canceled *domain.Subscription
	err := repository.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.lockUser(ctx, tx, userID); err != nil {
			return err
		}
		now := s.now()
		subs := s.subRepo.WithTx(tx)
		sub, err := subs.FindLive(ctx, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrNotFound("no active subscription")
		}
		if _, err := subs.CancelLive(ctx, userID, now); err != nil {
			return err
		}
		if err := s.userRepo.WithTx(tx).UpdatePlan(ctx, userID, domain.FreePlanID, domain.SubscriptionCanceled, now); err != nil {
			return err
		}
		subID := sub.ID
		canceled = sub
		return s.billingRepo.WithTx(tx).Append(ctx, &domain.BillingHistory{
			ID:             domain.NewID(),
			UserID:         userID,
			SubscriptionID: &subID,
			Event:          domain.BillingSubscriptionCanceled,
			PlanID:         sub.PlanID,
			Currency:       "INR",
			Status:         domain.BillingCompleted,
			Description:    "Subscription canceled",
			CreatedAt:      now,
		})
	})
	if err != nil {
		return asAppError(err, "failed to cancel subscription")
	}

	s.notifier.Notify(ctx, domain.CreateNotificationInput{
		UserID:   userID,
		Type:     domain.NotificationWarning,
		Category: domain.CategorySubscription,
		Title:    "Subscription canceled",
		Message:  "Your subscription was canceled. You are now on the Free plan.",
		Metadata: map[string]any{"planId": canceled.PlanID},
	})
	return nil
}

// CreateOrder opens a gateway order for a paid plan and records it.
func (s *SubscriptionService) CreateOrder(ctx context.Context, userID string, req *domain.CreateOrderRequest) (*domain.OrderResponse, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	plan, ok := domain.GetPlan(req.PlanID)
	if !ok {
		return nil, domain.ErrNotFound("plan not found")
	}
	if plan.IsFree() {
		return nil, domain.ErrBadRequest("the free plan does not require payment")
	}

	receipt := "rcpt_" + domain.NewID()[:18]
	order, err := s.gateway.CreateOrder(ctx, plan.AmountMinor(), plan.Currency, receipt)
	if err != nil {
		return nil, domain.ErrInternal("failed to create payment order", err)
	}

	now := s.now()
	txn := &domain.PaymentTransaction{
		ID:        domain.NewID(),
		UserID:    userID,
		PlanID:    plan.ID,
		OrderID:   order.ID,
		Amount:    plan.Price,
		Currency:  plan.Currency,
		Status:    domain.TransactionCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.txnRepo.Create(ctx, txn); err != nil {
		return nil, domain.ErrInternal("failed to record payment order", err)
	}

	return &domain.OrderResponse{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.gateway.KeyID(),
		Plan:     plan,
		Price:    plan.Price,
	}, nil
}

// VerifyPayment checks the gateway signature and, only when it matches,
// settles the order and moves the user onto the paid plan in one
// transaction.
func (s *SubscriptionService) VerifyPayment(ctx context.Context, userID string, req *domain.VerifyPaymentRequest) (*domain.Subscription, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	plan, ok := domain.GetPlan(req.PlanID)
	if !ok {
		return nil, domain.ErrNotFound("plan not found")
	}
	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		s.metrics.PaymentsVerified.WithLabelValues("bad_signature").Inc()
		s.log.WithFields(logrus.Fields{"userId": userID, "orderId": req.OrderID}).Warn("payment signature mismatch")
		return nil, domain.ErrBadRequest("Invalid payment signature")
	}

	var sub *domain.Subscription
	err := repository.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.lockUser(ctx, tx, userID); err != nil {
			return err
		}
		now := s.now()
		txns := s.txnRepo.WithTx(tx)
		subs := s.subRepo.WithTx(tx)

		txn, err := txns.FindByOrderIDForUpdate(ctx, req.OrderID, userID)
		if err != nil {
			return err
		}
		if txn == nil {
			return domain.ErrNotFound("payment order not found")
		}
		if txn.Status == domain.TransactionPaid {
			return domain.ErrConflict("payment already processed")
		}
		if txn.PlanID != plan.ID {
			return domain.ErrBadRequest("plan does not match the payment order")
		}

		if err := txns.MarkPaid(ctx, txn.ID, req.PaymentID); err != nil {
			return err
		}
		if _, err := subs.CancelLive(ctx, userID, now); err != nil {
			return err
		}
		sub = domain.StartSubscription(userID, plan, now)
		sub.PaymentProviderID = req.PaymentID
		if err := createLive(ctx, subs, sub); err != nil {
			return err
		}
		if err := s.userRepo.WithTx(tx).UpdatePlan(ctx, userID, plan.ID, sub.Status, now); err != nil {
			return err
		}
		subID, txnID := sub.ID, txn.ID
		return s.billingRepo.WithTx(tx).Append(ctx, &domain.BillingHistory{
			ID:             domain.NewID(),
			UserID:         userID,
			SubscriptionID: &subID,
			TransactionID:  &txnID,
			Event:          domain.BillingPaymentReceived,
			PlanID:         plan.ID,
			Amount:         txn.Amount,
			Currency:       txn.Currency,
			Status:         domain.BillingCompleted,
			Description:    fmt.Sprintf("Payment for %s plan", plan.Name),
			CreatedAt:      now,
		})
	})
	if err != nil {
		s.metrics.PaymentsVerified.WithLabelValues("error").Inc()
		return nil, asAppError(err, "failed to verify payment")
	}
	s.metrics.PaymentsVerified.WithLabelValues("ok").Inc()

	s.notifier.Notify(ctx, domain.CreateNotificationInput{
		UserID:   userID,
		Type:     domain.NotificationSuccess,
		Category: domain.CategoryPayment,
		Title:    "Payment received",
		Message:  fmt.Sprintf("Payment of ₹%.2f for the %s plan was received.", plan.Price, plan.Name),
		Metadata: map[string]any{"planId": plan.ID, "paymentId": req.PaymentID, "orderId": req.OrderID},
	})
	go s.sendReceipt(userID, plan, req.PaymentID)
	return sub, nil
}

// lockUser holds the user row until tx ends, so billing changes for one
// user run one at a time and never leave two live subscriptions.
func (s *SubscriptionService) lockUser(ctx context.Context, tx pgx.Tx, userID string) error {
	user, err := s.userRepo.WithTx(tx).FindByIDForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUnauthorized(domain.MsgUnauthorized)
	}
	return nil
}

func createLive(ctx context.Context, subs *repository.SubscriptionRepository, sub *domain.Subscription) error {
	if err := subs.Create(ctx, sub); err != nil {
		if repository.IsUniqueViolation(err) {
			return domain.ErrConflict("a subscription change is already in progress")
		}
		return err
	}
	return nil
}

func (s *SubscriptionService) sendReceipt(userID string, plan domain.Plan, paymentID string) {
	if s.mail == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil || user == nil {
		s.log.WithField("userId", userID).Warnf("receipt skipped: user lookup failed: %v", err)
		return
	}
	body := fmt.Sprintf("Hi %s,\n\nWe received your payment of ₹%.2f for the %s plan.\nPayment reference: %s\n",
		user.Name, plan.Price, plan.Name, paymentID)
	if err := s.mail.Send(ctx, user.Email, "Payment receipt", body); err != nil {
		s.log.WithField("userId", userID).Warnf("receipt email failed: %v", err)
	}
}
