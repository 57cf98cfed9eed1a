package domain

import "time"

// InvoiceStatus is drawn from a fixed enumeration.
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "DRAFT"
	InvoiceSent    InvoiceStatus = "SENT"
	InvoicePending InvoiceStatus = "PENDING"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceOverdue InvoiceStatus = "OVERDUE"
)

// InvoiceStatuses lists every valid status in display order.
func InvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceDraft, InvoiceSent, InvoicePending, InvoicePaid, InvoiceOverdue}
}

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	for _, v := range InvoiceStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

// Outstanding reports whether the invoice still awaits payment.
func (s InvoiceStatus) Outstanding() bool {
	return s == InvoiceSent || s == InvoicePending || s == InvoiceOverdue
}

// Invoice is a bill issued by a user, optionally to one of their customers.
type Invoice struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	CustomerID    *string       `json:"customerId,omitempty"`
	CustomerName  string        `json:"customerName,omitempty"`
	InvoiceNumber string        `json:"invoiceNumber"`
	IssueDate     time.Time     `json:"issueDate"`
	DueDate       time.Time     `json:"dueDate"`
	Status        InvoiceStatus `json:"status"`
	Items         []InvoiceItem `json:"items,omitempty"`
	Subtotal      float64       `json:"subtotal"`
	SGSTRate      float64       `json:"sgstRate"`
	SGSTAmount    float64       `json:"sgstAmount"`
	CGSTRate      float64       `json:"cgstRate"`
	CGSTAmount    float64       `json:"cgstAmount"`
	TotalAmount   float64       `json:"totalAmount"`
	Notes         string        `json:"notes"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	ID          string  `json:"id"`
	InvoiceID   string  `json:"invoiceId"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
	Position    int     `json:"position"`
}

// InvoiceItemRequest is one validated input line.
type InvoiceItemRequest struct {
	Description string  `json:"description" validate:"required,min=1,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	Rate        float64 `json:"rate" validate:"gte=0"`
}

// CreateInvoiceRequest is the validated input for creating an invoice.
// InvoiceNumber is optional; the next number in the user's sequence is
// assigned when it is empty.
type CreateInvoiceRequest struct {
	CustomerID    string               `json:"customerId" validate:"omitempty,uuid"`
	InvoiceNumber string               `json:"invoiceNumber" validate:"omitempty,max=50"`
	IssueDate     time.Time            `json:"issueDate" validate:"required"`
	DueDate       time.Time            `json:"dueDate" validate:"required,gtefield=IssueDate"`
	Status        InvoiceStatus        `json:"status" validate:"omitempty,oneof=DRAFT SENT PENDING PAID OVERDUE"`
	Items         []InvoiceItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	Notes         string               `json:"notes" validate:"max=2000"`
}

// UpdateInvoiceRequest changes the editable fields of an unpaid invoice.
type UpdateInvoiceRequest struct {
	DueDate time.Time            `json:"dueDate" validate:"required"`
	Items   []InvoiceItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	Notes   string               `json:"notes" validate:"max=2000"`
}

// UpdateInvoiceStatusRequest moves an invoice to another status.
type UpdateInvoiceStatusRequest struct {
	Status InvoiceStatus `json:"status" validate:"required,oneof=DRAFT SENT PENDING PAID OVERDUE"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status     InvoiceStatus
	CustomerID string
	Limit      int
	Offset     int
}

// InvoiceStats summarises a user's invoices by status.
type InvoiceStats struct {
	TotalInvoices    int                           `json:"totalInvoices"`
	TotalBilled      float64                       `json:"totalBilled"`
	TotalPaid        float64                       `json:"totalPaid"`
	TotalOutstanding float64                       `json:"totalOutstanding"`
	ByStatus         map[InvoiceStatus]StatusTally `json:"byStatus"`
}

// StatusTally is the count and sum of invoices in one status.
type StatusTally struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// NextNumberResponse previews the number the next invoice will receive.
type NextNumberResponse struct {
	InvoiceNumber string `json:"invoiceNumber"`
}

// OverdueInvoice identifies an invoice flipped to OVERDUE by the sweeper.
type OverdueInvoice struct {
	ID            string
	UserID        string
	InvoiceNumber string
	TotalAmount   float64
}
