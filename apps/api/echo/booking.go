package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/booking"
	"github.com/darasahq/darasa/core/user"
	calendarsvc "github.com/darasahq/darasa/services/calendar"
)

type bookingApi struct {
	svc      *booking.Service
	tokens   *calendarsvc.TokenStore
	validate *validator.Validate
}

func registerBookingAPI(g *echo.Group, jwt echo.MiddlewareFunc, gate *gate, deps ServerDeps) {
	api := bookingApi{svc: deps.BookingSvc, tokens: deps.CalendarTokens, validate: deps.Validate}

	// management endpoints
	mg := g.Group("/bookings", jwt, gate.authorize(user.RoleAdmin))
	mg.POST("", api.create)
	mg.GET("", api.query)
	mg.GET("/:id", api.retrieve)
	mg.POST("/:id/cancel", api.cancel)

	// delegated staff endpoints
	sg := g.Group("/staff/bookings", jwt, gate.authorize(user.RoleSubAdmin))
	sg.POST("", api.create,
		gate.requirePermission(access.ModuleBookingManagement, "Create Booking"))
	sg.GET("", api.query,
		gate.requirePermission(access.ModuleBookingManagement, "View Bookings"))
	sg.GET("/:id", api.retrieve,
		gate.requirePermission(access.ModuleBookingManagement, "View Bookings"))
	sg.POST("/:id/cancel", api.cancel,
		gate.requirePermission(access.ModuleBookingManagement, "Cancel Booking"))

	// per-user calendar credentials, kept in a keyed store
	cg := g.Group("/calendar", jwt)
	cg.PUT("/token", api.saveCalendarToken)
	cg.GET("/token", api.calendarTokenStatus)
	cg.DELETE("/token", api.deleteCalendarToken)
}

// Handlers

func (api *bookingApi) create(ctx echo.Context) error {
	var data booking.NewBooking
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	data.OrgID = contextOrgID(ctx)
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		switch errors.Cause(err) {
		case booking.ErrOverlap, booking.ErrPast:
			return core.NewValidationError(errors.Cause(err))
		}
		return errors.Wrap(err, "creating booking")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *bookingApi) query(ctx echo.Context) error {
	bookings, err := api.svc.QueryByOrg(ctx.Request().Context(), contextOrgID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying bookings")
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}
	return ctx.JSON(http.StatusOK, bookings)
}

func (api *bookingApi) retrieve(ctx echo.Context) error {
	b, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bookingApi) cancel(ctx echo.Context) error {
	b, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}

	b, err = api.svc.Cancel(ctx.Request().Context(), b.ID)
	if err != nil {
		if errors.Cause(err) == booking.ErrCancelled {
			return core.NewValidationError(booking.ErrCancelled)
		}
		return errors.Wrap(err, "cancelling booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bookingApi) saveCalendarToken(ctx echo.Context) error {
	var data CalendarTokenRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CalendarTokenRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	api.tokens.Put(claims.UserID(), calendarsvc.Token{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresAt:    time.Unix(data.ExpiresAt, 0),
	})
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Calendar connected."})
}

func (api *bookingApi) calendarTokenStatus(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	_, connected := api.tokens.Get(claims.UserID())
	return ctx.JSON(http.StatusOK, CalendarStatusResponse{Connected: connected})
}

func (api *bookingApi) deleteCalendarToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	api.tokens.Delete(claims.UserID())
	return ctx.NoContent(http.StatusNoContent)
}

func (api *bookingApi) objectOrNotFound(ctx echo.Context) (booking.Booking, error) {
	id, err := intParam(ctx, "id")
	if err != nil {
		return booking.Booking{}, err
	}
	b, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == booking.ErrNotFound {
			return booking.Booking{}, errHttpNotFound
		}
		return booking.Booking{}, errors.Wrap(err, "finding booking by ID")
	}
	if b.OrgID != contextOrgID(ctx) {
		return booking.Booking{}, errHttpNotFound
	}
	return b, nil
}

type (
	CalendarTokenRequest struct {
		AccessToken  string `json:"access_token" validate:"required"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    int64  `json:"expires_at" validate:"required"`
	}

	CalendarStatusResponse struct {
		Connected bool `json:"connected"`
	}
)
