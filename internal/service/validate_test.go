package service

import (
	"testing"

	"github.com/invoicely/backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestValidateStruct_FirstErrorMessage(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name string
		req  any
		want string
	}{
		{"required", &domain.RegisterRequest{Email: "a@b.co", Password: "12345678"}, "name is required"},
		{"email", &domain.RegisterRequest{Name: "Asha", Email: "not-an-email", Password: "12345678"}, "email must be a valid email address"},
		{"min", &domain.RegisterRequest{Name: "Asha", Email: "a@b.co", Password: "short"}, "password must be at least 8"},
		{"oneof", &domain.UpdateInvoiceStatusRequest{Status: "LOST"}, "status must be one of: DRAFT SENT PENDING PAID OVERDUE"},
		{"nefield", &domain.ChangePasswordRequest{CurrentPassword: "samesame1", NewPassword: "samesame1"}, "newPassword must differ from CurrentPassword"},
		{"len", &domain.TwoFactorCodeRequest{Code: "123"}, "code must be exactly 6 characters"},
		{"nested item", &domain.UpdateInvoiceRequest{
			DueDate: fixedNow,
			Items:   []domain.InvoiceItemRequest{{Description: "x", Quantity: 0, Rate: 1}},
		}, "items[0].quantity must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStruct(v, tt.req)
			appErr := requireAppError(t, err, 400)
			assert.Equal(t, tt.want, appErr.Message)
		})
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	err := validateStruct(newValidator(), &domain.RegisterRequest{Name: "Asha", Email: "asha@example.com", Password: "long enough"})
	assert.NoError(t, err)
}

func TestReminderTimes(t *testing.T) {
	due := fixedNow
	got := ReminderTimes(due)

	assert.Equal(t, []Reminder{
		{Kind: "before_due", At: due.AddDate(0, 0, -3)},
		{Kind: "on_due", At: due},
		{Kind: "after_due", At: due.AddDate(0, 0, 3)},
	}, got)
}
