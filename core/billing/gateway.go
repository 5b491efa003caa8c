package billing

import "context"

type (
	// ChargeRequest asks the payment provider to collect a payment.
	ChargeRequest struct {
		Reference string // our invoice reference; provider echoes it back
		Email     string // payer email
		Amount    int64  // minor currency units
		Currency  string
	}

	// Charge is the provider's handle on an initiated payment.
	Charge struct {
		Reference        string
		AuthorizationURL string // payer completes the charge here
	}

	// ChargeStatus is the provider's view of a charge after verification.
	ChargeStatus struct {
		Reference string
		Paid      bool
		Amount    int64
		Currency  string
	}

	// Gateway is the hosted payment provider. The gate performs no retries;
	// verification is idempotent on our side, keyed by reference.
	Gateway interface {
		InitiateCharge(ctx context.Context, req ChargeRequest) (Charge, error)
		VerifyCharge(ctx context.Context, reference string) (ChargeStatus, error)
	}
)
