package paymentsvc

import (
	"context"
	"sync"

	"github.com/darasahq/darasa/core/billing"
)

// DummyGateway records charges in memory. Tests flip Paid per reference to
// simulate the payer completing or abandoning a charge.
type DummyGateway struct {
	mu      sync.Mutex
	charges map[string]billing.ChargeStatus
}

var _ billing.Gateway = (*DummyGateway)(nil)

func NewDummyGateway() *DummyGateway {
	return &DummyGateway{charges: make(map[string]billing.ChargeStatus)}
}

func (g *DummyGateway) InitiateCharge(ctx context.Context, req billing.ChargeRequest) (billing.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.charges[req.Reference] = billing.ChargeStatus{
		Reference: req.Reference,
		Amount:    req.Amount,
		Currency:  req.Currency,
	}
	return billing.Charge{
		Reference:        req.Reference,
		AuthorizationURL: "https://pay.example.com/" + req.Reference,
	}, nil
}

func (g *DummyGateway) VerifyCharge(ctx context.Context, reference string) (billing.ChargeStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges[reference], nil
}

// CompleteCharge marks a charge as paid, as the provider would after the
// payer checks out.
func (g *DummyGateway) CompleteCharge(reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status := g.charges[reference]
	status.Paid = true
	g.charges[reference] = status
}
