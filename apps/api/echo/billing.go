package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/billing"
	"github.com/darasahq/darasa/core/user"
)

type billingApi struct {
	svc      *billing.Service
	validate *validator.Validate
}

func registerBillingAPI(g *echo.Group, jwt echo.MiddlewareFunc, gate *gate, deps ServerDeps) {
	api := billingApi{svc: deps.BillingSvc, validate: deps.Validate}

	// the gateway redirects the payer here after checkout; also used as the
	// webhook target, so no auth. ConfirmPayment re-verifies with the
	// gateway before trusting anything.
	g.POST("/billing/payments/confirm", api.confirmPayment)

	// management endpoints
	mg := g.Group("/billing", jwt, gate.authorize(user.RoleAdmin))
	mg.POST("/invoices", api.createInvoice)
	mg.GET("/invoices", api.queryInvoices)
	mg.GET("/invoices/:id", api.retrieveInvoice)
	mg.POST("/invoices/:id/pay", api.initiatePayment)
	mg.POST("/invoices/:id/void", api.voidInvoice)

	// delegated staff endpoints
	sg := g.Group("/staff/billing", jwt, gate.authorize(user.RoleSubAdmin))
	sg.GET("/invoices", api.queryInvoices,
		gate.requirePermission(access.ModuleBillingManagement, "View Invoices"))
	sg.GET("/invoices/:id", api.retrieveInvoice,
		gate.requirePermission(access.ModuleBillingManagement, "View Invoices"))
	sg.POST("/invoices/:id/pay", api.initiatePayment,
		gate.requirePermission(access.ModuleBillingManagement, "Initiate Payment"))
}

// Handlers

func (api *billingApi) createInvoice(ctx echo.Context) error {
	var data billing.NewInvoice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvoice")
	}
	data.OrgID = contextOrgID(ctx)
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inv, err := api.svc.CreateInvoice(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating invoice")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *billingApi) queryInvoices(ctx echo.Context) error {
	invoices, err := api.svc.InvoicesByOrg(ctx.Request().Context(), contextOrgID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying invoices")
	}
	if invoices == nil {
		invoices = []billing.Invoice{}
	}
	return ctx.JSON(http.StatusOK, invoices)
}

func (api *billingApi) retrieveInvoice(ctx echo.Context) error {
	inv, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *billingApi) initiatePayment(ctx echo.Context) error {
	inv, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}

	var data InitiatePaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InitiatePaymentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	charge, err := api.svc.InitiatePayment(ctx.Request().Context(), inv.ID, data.Email)
	if err != nil {
		if errors.Cause(err) == billing.ErrNotPending {
			return core.NewValidationError(billing.ErrNotPending)
		}
		return errors.Wrap(err, "initiating payment")
	}
	return ctx.JSON(http.StatusOK, charge)
}

func (api *billingApi) confirmPayment(ctx echo.Context) error {
	var data ConfirmPaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmPaymentRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	inv, err := api.svc.ConfirmPayment(ctx.Request().Context(), data.Reference)
	if err != nil {
		switch errors.Cause(err) {
		case billing.ErrNotFound:
			return errHttpNotFound
		case billing.ErrAmountMismatch:
			return core.NewValidationError(billing.ErrAmountMismatch)
		}
		return errors.Wrap(err, "confirming payment")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *billingApi) voidInvoice(ctx echo.Context) error {
	inv, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}

	inv, err = api.svc.VoidInvoice(ctx.Request().Context(), inv.ID)
	if err != nil {
		if errors.Cause(err) == billing.ErrNotPending {
			return core.NewValidationError(billing.ErrNotPending)
		}
		return errors.Wrap(err, "voiding invoice")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *billingApi) objectOrNotFound(ctx echo.Context) (billing.Invoice, error) {
	id, err := intParam(ctx, "id")
	if err != nil {
		return billing.Invoice{}, err
	}
	inv, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == billing.ErrNotFound {
			return billing.Invoice{}, errHttpNotFound
		}
		return billing.Invoice{}, errors.Wrap(err, "finding invoice by ID")
	}
	if inv.OrgID != contextOrgID(ctx) {
		return billing.Invoice{}, errHttpNotFound
	}
	return inv, nil
}

type (
	InitiatePaymentRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	ConfirmPaymentRequest struct {
		Reference string `json:"reference" validate:"required"`
	}
)

func (ir *InitiatePaymentRequest) Validate(validate *validator.Validate) error {
	ir.Email = core.CleanString(ir.Email, true /* lower */)
	return validate.Struct(ir)
}
