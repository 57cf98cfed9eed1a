package domain

import "time"

// SubscriptionStatus is the billing state of a subscription, and of a user.
type SubscriptionStatus string

const (
	SubscriptionNone     SubscriptionStatus = "NONE"
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionTrial    SubscriptionStatus = "TRIAL"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
	SubscriptionExpired  SubscriptionStatus = "EXPIRED"
)

// Live reports whether the status grants the plan (ACTIVE or TRIAL).
func (s SubscriptionStatus) Live() bool {
	return s == SubscriptionActive || s == SubscriptionTrial
}

// Subscription represents a user's subscription to a plan.
type Subscription struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"userId"`
	PlanID             string             `json:"planId"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd"`
	TrialEnd           *time.Time         `json:"trialEnd"`
	CanceledAt         *time.Time         `json:"canceledAt,omitempty"`
	PaymentProviderID  string             `json:"paymentProviderId,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// StartSubscription builds the subscription a plan selection produces.
// A paid plan with trial days starts in TRIAL; a free plan or a plan
// without a trial is ACTIVE immediately.
func StartSubscription(userID string, plan Plan, now time.Time) *Subscription {
	sub := &Subscription{
		ID:                 NewID(),
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   plan.PeriodEnd(now),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if !plan.IsFree() && plan.TrialPeriodDays > 0 {
		trialEnd := now.AddDate(0, 0, plan.TrialPeriodDays)
		sub.Status = SubscriptionTrial
		sub.TrialEnd = &trialEnd
		sub.CurrentPeriodEnd = trialEnd
	}
	return sub
}

// BillingEvent classifies billing history rows.
type BillingEvent string

const (
	BillingSubscriptionCreated  BillingEvent = "SUBSCRIPTION_CREATED"
	BillingPaymentReceived      BillingEvent = "PAYMENT_RECEIVED"
	BillingSubscriptionCanceled BillingEvent = "SUBSCRIPTION_CANCELED"
)

// BillingStatus is the settlement state of a billing history row.
type BillingStatus string

const (
	BillingPending   BillingStatus = "PENDING"
	BillingCompleted BillingStatus = "COMPLETED"
	BillingFailed    BillingStatus = "FAILED"
)

// BillingHistory is an append-only ledger row.
type BillingHistory struct {
	ID             string        `json:"id"`
	UserID         string        `json:"userId"`
	SubscriptionID *string       `json:"subscriptionId,omitempty"`
	TransactionID  *string       `json:"transactionId,omitempty"`
	Event          BillingEvent  `json:"event"`
	PlanID         string        `json:"planId"`
	Amount         float64       `json:"amount"`
	Currency       string        `json:"currency"`
	Status         BillingStatus `json:"status"`
	Description    string        `json:"description"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// HistoryForNewSubscription records a plan selection. Trials stay PENDING
// until the first charge; free and immediately active plans are COMPLETED.
func HistoryForNewSubscription(sub *Subscription, plan Plan, now time.Time) *BillingHistory {
	status := BillingCompleted
	desc := "Subscribed to " + plan.Name
	if sub.Status == SubscriptionTrial {
		status = BillingPending
		desc = "Started " + plan.Name + " trial"
	}
	subID := sub.ID
	return &BillingHistory{
		ID:             NewID(),
		UserID:         sub.UserID,
		SubscriptionID: &subID,
		Event:          BillingSubscriptionCreated,
		PlanID:         plan.ID,
		Amount:         0,
		Currency:       plan.Currency,
		Status:         status,
		Description:    desc,
		CreatedAt:      now,
	}
}

// TransactionStatus is the lifecycle of a gateway order.
type TransactionStatus string

const (
	TransactionCreated TransactionStatus = "CREATED"
	TransactionPaid    TransactionStatus = "PAID"
	TransactionFailed  TransactionStatus = "FAILED"
)

// PaymentTransaction tracks one gateway order from creation to settlement.
type PaymentTransaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	PlanID    string            `json:"planId"`
	OrderID   string            `json:"orderId"`
	PaymentID string            `json:"paymentId,omitempty"`
	Amount    float64           `json:"amount"`
	Currency  string            `json:"currency"`
	Status    TransactionStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// SelectPlanRequest is the input for switching plans without a payment.
type SelectPlanRequest struct {
	PlanID string `json:"planId" validate:"required,max=50"`
}

// CreateOrderRequest starts a paid checkout.
type CreateOrderRequest struct {
	PlanID string `json:"planId" validate:"required,max=50"`
}

// OrderResponse is what the client needs to open the gateway checkout.
type OrderResponse struct {
	OrderID  string  `json:"orderId"`
	Amount   int64   `json:"amount"` // minor units
	Currency string  `json:"currency"`
	KeyID    string  `json:"keyId"`
	Plan     Plan    `json:"plan"`
	Price    float64 `json:"price"`
}

// VerifyPaymentRequest carries the gateway's checkout callback fields.
type VerifyPaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
	PlanID    string `json:"planId" validate:"required,max=50"`
}

// SubscriptionView is the current billing state of a user.
type SubscriptionView struct {
	Status       SubscriptionStatus `json:"status"`
	Plan         Plan               `json:"plan"`
	Subscription *Subscription      `json:"subscription"`
	InvoicesUsed int                `json:"invoicesUsed"`
}
