package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/certificate"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
)

type certificateApi struct {
	svc       *certificate.Service
	courseSvc *course.Service
	validate  *validator.Validate
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, gate *gate, deps ServerDeps) {
	api := certificateApi{svc: deps.CertificateSvc, courseSvc: deps.CourseSvc, validate: deps.Validate}

	// anyone holding a serial+code pair can verify it
	g.GET("/certificates/verify", api.verify)

	// management endpoints
	mg := g.Group("/certificates", jwt, gate.authorize(user.RoleAdmin))
	mg.POST("", api.issue)
	mg.GET("/users/:id", api.queryByUser)

	// delegated staff endpoints
	sg := g.Group("/staff/certificates", jwt, gate.authorize(user.RoleSubAdmin))
	sg.POST("", api.issue,
		gate.requirePermission(access.ModuleCertificateManagement, "Issue Certificate"))
	sg.GET("/users/:id", api.queryByUser,
		gate.requirePermission(access.ModuleCertificateManagement, "View Certificates"))

	// learner endpoints
	lg := g.Group("/learn/certificates", jwt, gate.authorize(user.RoleUser))
	lg.GET("", api.mine)
}

// Handlers

func (api *certificateApi) issue(ctx echo.Context) error {
	var data IssueCertificateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IssueCertificateRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	// the course must belong to the caller's organization
	c, err := api.courseSvc.GetByID(ctx.Request().Context(), data.CourseID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding course by ID")
	}
	if c.OrgID != contextOrgID(ctx) {
		return errHttpNotFound
	}

	cert, err := api.svc.Issue(ctx.Request().Context(), data.CourseID, data.UserID)
	if err != nil {
		switch errors.Cause(err) {
		case certificate.ErrNotCompleted, certificate.ErrAlreadyIssued:
			return core.NewValidationError(errors.Cause(err))
		}
		return errors.Wrap(err, "issuing certificate")
	}
	return ctx.JSON(http.StatusCreated, cert)
}

func (api *certificateApi) verify(ctx echo.Context) error {
	serial := ctx.QueryParam("serial")
	code := ctx.QueryParam("code")
	if serial == "" || code == "" {
		return core.NewValidationError(certificate.ErrInvalidCode)
	}

	cert, err := api.svc.Verify(ctx.Request().Context(), serial, code)
	if err != nil {
		switch errors.Cause(err) {
		case certificate.ErrNotFound:
			return errHttpNotFound
		case certificate.ErrInvalidCode:
			return core.NewValidationError(certificate.ErrInvalidCode)
		}
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) queryByUser(ctx echo.Context) error {
	userID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	certs, err := api.svc.QueryByUser(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying certificates")
	}

	scoped := []certificate.Certificate{}
	for _, cert := range certs {
		if cert.OrgID == contextOrgID(ctx) {
			scoped = append(scoped, cert)
		}
	}
	return ctx.JSON(http.StatusOK, scoped)
}

func (api *certificateApi) mine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	certs, err := api.svc.QueryByUser(ctx.Request().Context(), claims.UserID())
	if err != nil {
		return errors.Wrap(err, "querying certificates")
	}
	if certs == nil {
		certs = []certificate.Certificate{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

type IssueCertificateRequest struct {
	CourseID int `json:"course_id" validate:"required"`
	UserID   int `json:"user_id" validate:"required"`
}
