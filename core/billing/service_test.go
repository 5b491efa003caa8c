package billing_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core/billing"
	paymentsvc "github.com/darasahq/darasa/services/payment"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

func newTestService(t *testing.T) (*billing.Service, *paymentsvc.DummyGateway) {
	t.Helper()
	gateway := paymentsvc.NewDummyGateway()
	return billing.NewService(inmemdb.NewBillingRepository(inmemdb.NewDB()), gateway), gateway
}

func pendingInvoice(t *testing.T, svc *billing.Service) billing.Invoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), billing.NewInvoice{
		Description: "Annual subscription",
		Amount:      50000,
		Currency:    "USD",
		OrgID:       1,
	})
	require.NoError(t, err)
	require.Equal(t, billing.StatusPending, inv.Status)
	require.NotEmpty(t, inv.Reference)
	return inv
}

func TestService_PaymentLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, gateway := newTestService(t)
	inv := pendingInvoice(t, svc)

	charge, err := svc.InitiatePayment(ctx, inv.ID, "payer@test.cd")
	require.NoError(t, err)
	assert.Equal(t, inv.Reference, charge.Reference)
	assert.NotEmpty(t, charge.AuthorizationURL)

	// not paid yet: confirmation is a no-op
	got, err := svc.ConfirmPayment(ctx, inv.Reference)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPending, got.Status)

	// payer checks out
	gateway.CompleteCharge(inv.Reference)

	got, err = svc.ConfirmPayment(ctx, inv.Reference)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, got.Status)
	assert.False(t, got.PaidAt.IsZero())

	t.Run("confirmation is idempotent", func(t *testing.T) {
		again, err := svc.ConfirmPayment(ctx, inv.Reference)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusPaid, again.Status)
		assert.Equal(t, got.PaidAt, again.PaidAt)
	})

	t.Run("paid invoice cannot be paid again", func(t *testing.T) {
		_, err := svc.InitiatePayment(ctx, inv.ID, "payer@test.cd")
		assert.Equal(t, billing.ErrNotPending, errors.Cause(err))
	})
}

func TestService_ConfirmPayment_amountMismatch(t *testing.T) {
	ctx := context.Background()
	svc, gateway := newTestService(t)
	inv := pendingInvoice(t, svc)

	// charge verified as paid but never initiated with our amount
	gateway.CompleteCharge(inv.Reference)

	_, err := svc.ConfirmPayment(ctx, inv.Reference)
	assert.Equal(t, billing.ErrAmountMismatch, errors.Cause(err))
}

func TestService_ConfirmPayment_unknownReference(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ConfirmPayment(context.Background(), "not-a-reference")
	assert.Equal(t, billing.ErrNotFound, errors.Cause(err))
}

func TestService_VoidInvoice(t *testing.T) {
	ctx := context.Background()
	svc, gateway := newTestService(t)
	inv := pendingInvoice(t, svc)

	got, err := svc.VoidInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusVoid, got.Status)

	t.Run("void is final", func(t *testing.T) {
		_, err := svc.VoidInvoice(ctx, inv.ID)
		assert.Equal(t, billing.ErrNotPending, errors.Cause(err))

		_, err = svc.InitiatePayment(ctx, inv.ID, "payer@test.cd")
		assert.Equal(t, billing.ErrNotPending, errors.Cause(err))
	})

	t.Run("late confirmation does not resurrect it", func(t *testing.T) {
		gateway.CompleteCharge(inv.Reference)
		_, err := svc.ConfirmPayment(ctx, inv.Reference)
		assert.Equal(t, billing.ErrNotPending, errors.Cause(err))
	})
}
