package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/org"
	"github.com/darasahq/darasa/core/user"
)

type orgApi struct {
	svc      *org.Service
	validate *validator.Validate
}

// Organization onboarding is the platform operator's job; every route here
// is super-admin only.
func registerOrgAPI(g *echo.Group, jwt echo.MiddlewareFunc, gate *gate, deps ServerDeps) {
	api := orgApi{svc: deps.OrgSvc, validate: deps.Validate}

	og := g.Group("/orgs", jwt, gate.authorize(user.RoleSuperAdmin))
	og.POST("", api.create)
	og.GET("", api.query)
	og.GET("/:id", api.retrieve)
	og.PUT("/:id", api.update)
	og.DELETE("/:id", api.destroy)
	og.DELETE("", api.destroyMultiple)
}

func (api *orgApi) create(ctx echo.Context) error {
	var data org.NewOrganization
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrganization")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	o, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating organization")
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *orgApi) query(ctx echo.Context) error {
	orgs, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying organizations")
	}
	if orgs == nil {
		orgs = []org.Organization{}
	}
	return ctx.JSON(http.StatusOK, orgs)
}

func (api *orgApi) retrieve(ctx echo.Context) error {
	o, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *orgApi) update(ctx echo.Context) error {
	o, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}

	var data org.UpdateOrganization
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOrganization")
	}
	if err := data.Validate(api.validate, o, api.svc); err != nil {
		return err
	}

	o, err = api.svc.Update(ctx.Request().Context(), o.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating organization")
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *orgApi) destroy(ctx echo.Context) error {
	o, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), o.ID); err != nil {
		return errors.Wrap(err, "deleting organization")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *orgApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting organizations")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *orgApi) objectOrNotFound(ctx echo.Context) (org.Organization, error) {
	id, err := intParam(ctx, "id")
	if err != nil {
		return org.Organization{}, err
	}
	o, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == org.ErrNotFound {
			return org.Organization{}, errHttpNotFound
		}
		return org.Organization{}, errors.Wrap(err, "finding organization by ID")
	}
	return o, nil
}
