package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrNotFound       = errors.New("invoice not found")
	ErrNotPending     = errors.New("invoice is not pending")
	ErrAmountMismatch = errors.New("paid amount does not match the invoice")
)

type (
	Repository interface {
		CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
		QueryInvoicesByOrg(ctx context.Context, orgID int) ([]Invoice, error)
		GetInvoiceByID(ctx context.Context, id int) (Invoice, error)
		GetInvoiceByReference(ctx context.Context, ref string) (Invoice, error)
		UpdateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	}

	Service struct {
		repo    Repository
		gateway Gateway
	}
)

func NewService(repo Repository, gateway Gateway) *Service {
	return &Service{repo: repo, gateway: gateway}
}

func (svc *Service) CreateInvoice(ctx context.Context, ni NewInvoice) (Invoice, error) {
	now := time.Now().UTC()
	inv := Invoice{
		OrgID:       ni.OrgID,
		Reference:   uuid.New().String(),
		Description: ni.Description,
		Amount:      ni.Amount,
		Currency:    ni.Currency,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateInvoice(ctx, inv)
}

func (svc *Service) InvoicesByOrg(ctx context.Context, orgID int) ([]Invoice, error) {
	return svc.repo.QueryInvoicesByOrg(ctx, orgID)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Invoice, error) {
	return svc.repo.GetInvoiceByID(ctx, id)
}

// InitiatePayment asks the gateway to collect a pending invoice; the caller
// redirects the payer to the returned authorization URL.
func (svc *Service) InitiatePayment(ctx context.Context, invoiceID int, payerEmail string) (Charge, error) {
	inv, err := svc.repo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return Charge{}, err
	}
	if inv.Status != StatusPending {
		return Charge{}, ErrNotPending
	}

	charge, err := svc.gateway.InitiateCharge(ctx, ChargeRequest{
		Reference: inv.Reference,
		Email:     payerEmail,
		Amount:    inv.Amount,
		Currency:  inv.Currency,
	})
	if err != nil {
		return Charge{}, errors.Wrap(err, "initiating charge")
	}
	return charge, nil
}

// ConfirmPayment verifies a charge with the gateway and marks the invoice
// paid. Idempotent: a second confirmation of a paid invoice is a no-op.
func (svc *Service) ConfirmPayment(ctx context.Context, reference string) (Invoice, error) {
	inv, err := svc.repo.GetInvoiceByReference(ctx, reference)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status == StatusPaid {
		return inv, nil
	}
	if inv.Status != StatusPending {
		return Invoice{}, ErrNotPending
	}

	status, err := svc.gateway.VerifyCharge(ctx, reference)
	if err != nil {
		return Invoice{}, errors.Wrap(err, "verifying charge")
	}
	if !status.Paid {
		return inv, nil
	}
	if status.Amount != inv.Amount || status.Currency != inv.Currency {
		return Invoice{}, ErrAmountMismatch
	}

	now := time.Now().UTC()
	inv.Status = StatusPaid
	inv.PaidAt = now
	inv.UpdatedAt = now
	return svc.repo.UpdateInvoice(ctx, inv)
}

// VoidInvoice cancels a pending invoice.
func (svc *Service) VoidInvoice(ctx context.Context, invoiceID int) (Invoice, error) {
	inv, err := svc.repo.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status != StatusPending {
		return Invoice{}, ErrNotPending
	}
	inv.Status = StatusVoid
	inv.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateInvoice(ctx, inv)
}
