package domain

import "time"

// PaymentMethodType is the kind of stored payment instrument.
type PaymentMethodType string

const (
	PaymentMethodCard PaymentMethodType = "CARD"
	PaymentMethodUPI  PaymentMethodType = "UPI"
	PaymentMethodBank PaymentMethodType = "BANK"
)

// PaymentMethod is a saved instrument. Details are stored encrypted and only
// the masked form leaves the server.
type PaymentMethod struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Type      PaymentMethodType `json:"type"`
	Label     string            `json:"label"`
	Masked    string            `json:"masked"`
	Details   string            `json:"-"` // encrypted
	IsDefault bool              `json:"isDefault"`
	CreatedAt time.Time         `json:"createdAt"`
}

// CreatePaymentMethodRequest is the validated input for saving an instrument.
type CreatePaymentMethodRequest struct {
	Type      PaymentMethodType `json:"type" validate:"required,oneof=CARD UPI BANK"`
	Label     string            `json:"label" validate:"max=100"`
	Details   string            `json:"details" validate:"required,min=4,max=200"`
	IsDefault bool              `json:"isDefault"`
}

// MaskDetails keeps only the last four characters of an instrument identifier.
func MaskDetails(t PaymentMethodType, details string) string {
	tail := details
	if len(details) > 4 {
		tail = details[len(details)-4:]
	}
	switch t {
	case PaymentMethodCard:
		return "•••• •••• •••• " + tail
	case PaymentMethodUPI:
		return "••••" + tail
	default:
		return "XXXX" + tail
	}
}
