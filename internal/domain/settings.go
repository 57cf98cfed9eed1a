package domain

// UpdateProfileRequest changes the account holder's profile and company details.
type UpdateProfileRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=100"`
	CompanyName    string `json:"companyName" validate:"max=200"`
	CompanyAddress string `json:"companyAddress" validate:"max=500"`
	CompanyPhone   string `json:"companyPhone" validate:"max=30"`
	GSTIN          string `json:"gstin" validate:"omitempty,len=15,alphanum"`
}

// InvoiceSettings are the per-user numbering and tax preferences.
type InvoiceSettings struct {
	InvoicePrefix      string  `json:"invoicePrefix" validate:"required,max=10,alphanum"`
	InvoiceSuffix      string  `json:"invoiceSuffix" validate:"max=10"`
	InvoiceStartNumber int     `json:"invoiceStartNumber" validate:"min=1,max=99999999"`
	SGSTRate           float64 `json:"sgstRate" validate:"min=0,max=50"`
	CGSTRate           float64 `json:"cgstRate" validate:"min=0,max=50"`
}

// SessionSettings controls how long a login stays valid.
type SessionSettings struct {
	SessionTimeoutMins int `json:"sessionTimeoutMinutes" validate:"min=5,max=43200"`
}

// SettingsResponse aggregates every user-editable setting.
type SettingsResponse struct {
	Profile  UpdateProfileRequest `json:"profile"`
	Invoice  InvoiceSettings      `json:"invoice"`
	Session  SessionSettings      `json:"session"`
	Email    string               `json:"email"`
	TwoFA    bool                 `json:"twoFactorEnabled"`
	PlanID   string               `json:"planId"`
	Currency string               `json:"currency"`
}
