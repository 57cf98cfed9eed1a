package domain

import "time"

// CustomerStatus is the lifecycle flag of a customer.
type CustomerStatus string

const (
	CustomerActive   CustomerStatus = "ACTIVE"
	CustomerInactive CustomerStatus = "INACTIVE"
)

// Customer is a client a user invoices. It belongs to exactly one user.
type Customer struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	Company      string         `json:"company"`
	Address      string         `json:"address"`
	City         string         `json:"city"`
	State        string         `json:"state"`
	PostalCode   string         `json:"postalCode"`
	GSTIN        string         `json:"gstin"`
	Status       CustomerStatus `json:"status"`
	InvoiceCount int            `json:"invoiceCount"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// CustomerRequest is the validated input for creating or updating a customer.
type CustomerRequest struct {
	Name       string         `json:"name" validate:"required,min=1,max=200"`
	Email      string         `json:"email" validate:"omitempty,email"`
	Phone      string         `json:"phone" validate:"max=30"`
	Company    string         `json:"company" validate:"max=200"`
	Address    string         `json:"address" validate:"max=500"`
	City       string         `json:"city" validate:"max=100"`
	State      string         `json:"state" validate:"max=100"`
	PostalCode string         `json:"postalCode" validate:"max=20"`
	GSTIN      string         `json:"gstin" validate:"omitempty,len=15,alphanum"`
	Status     CustomerStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// Apply copies request fields onto the customer.
func (r *CustomerRequest) Apply(c *Customer) {
	c.Name = r.Name
	c.Email = r.Email
	c.Phone = r.Phone
	c.Company = r.Company
	c.Address = r.Address
	c.City = r.City
	c.State = r.State
	c.PostalCode = r.PostalCode
	c.GSTIN = r.GSTIN
	if r.Status != "" {
		c.Status = r.Status
	}
	if c.Status == "" {
		c.Status = CustomerActive
	}
}

// CustomerFilter narrows customer listings.
type CustomerFilter struct {
	Search string
	Status CustomerStatus
}
