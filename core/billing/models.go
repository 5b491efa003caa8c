package billing

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// InvoiceStatus is the closed set of invoice states.
type InvoiceStatus string

const (
	StatusPending InvoiceStatus = "pending"
	StatusPaid    InvoiceStatus = "paid"
	StatusVoid    InvoiceStatus = "void"
)

// Invoice bills an organization. Amount is in minor currency units.
type Invoice struct {
	ID          int           `json:"id"`
	OrgID       int           `json:"org_id"`
	Reference   string        `json:"reference"` // uuid; idempotency key with the gateway
	Description string        `json:"description"`
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency"`
	Status      InvoiceStatus `json:"status"`
	PaidAt      time.Time     `json:"paid_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"` // UTC
	UpdatedAt   time.Time     `json:"updated_at"` // UTC
}

type NewInvoice struct {
	Description string `json:"description" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,min=1"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	OrgID       int    `json:"-"`
}

func (ni *NewInvoice) Validate(validate *validator.Validate) error {
	ni.Description = core.CleanString(ni.Description)
	ni.Currency = core.CleanString(ni.Currency)
	if ni.Currency == "" {
		ni.Currency = "USD"
	}
	return validate.Struct(ni)
}
