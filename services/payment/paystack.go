// Package paymentsvc implements the billing gateway against a hosted
// Paystack-compatible payment API.
package paymentsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/billing"
)

type paystackGateway struct {
	baseURL string
	secret  string
	client  *http.Client
}

var _ billing.Gateway = (*paystackGateway)(nil)

func NewPaystackGateway(conf *core.Config) *paystackGateway {
	return &paystackGateway{
		baseURL: conf.Payment.BaseURL,
		secret:  conf.Payment.SecretKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type (
	initRequest struct {
		Reference string `json:"reference"`
		Email     string `json:"email"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	}

	initResponse struct {
		Status bool `json:"status"`
		Data   struct {
			Reference        string `json:"reference"`
			AuthorizationURL string `json:"authorization_url"`
		} `json:"data"`
		Message string `json:"message"`
	}

	verifyResponse struct {
		Status bool `json:"status"`
		Data   struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
		} `json:"data"`
		Message string `json:"message"`
	}
)

func (g paystackGateway) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf *bytes.Buffer
	if body != nil {
		buf = new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return errors.Wrap(err, "encoding request")
		}
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, buf)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+g.secret)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling payment API")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("payment API returned %d", res.StatusCode)
	}
	if err = json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

func (g paystackGateway) InitiateCharge(ctx context.Context, req billing.ChargeRequest) (billing.Charge, error) {
	body := initRequest{
		Reference: req.Reference,
		Email:     req.Email,
		Amount:    req.Amount,
		Currency:  req.Currency,
	}
	var res initResponse
	if err := g.do(ctx, http.MethodPost, "/transaction/initialize", body, &res); err != nil {
		return billing.Charge{}, err
	}
	if !res.Status {
		return billing.Charge{}, errors.Errorf("charge rejected: %s", res.Message)
	}
	return billing.Charge{
		Reference:        res.Data.Reference,
		AuthorizationURL: res.Data.AuthorizationURL,
	}, nil
}

func (g paystackGateway) VerifyCharge(ctx context.Context, reference string) (billing.ChargeStatus, error) {
	var res verifyResponse
	path := fmt.Sprintf("/transaction/verify/%s", reference)
	if err := g.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return billing.ChargeStatus{}, err
	}
	if !res.Status {
		return billing.ChargeStatus{}, errors.Errorf("verification failed: %s", res.Message)
	}
	return billing.ChargeStatus{
		Reference: res.Data.Reference,
		Paid:      res.Data.Status == "success",
		Amount:    res.Data.Amount,
		Currency:  res.Data.Currency,
	}, nil
}
