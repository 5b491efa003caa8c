package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/user"
)

type accessApi struct {
	svc      *access.Service
	validate *validator.Validate
}

// Roles and sub-admin profiles are managed by the owning organization's
// admin; sub-admins cannot grant access themselves.
func registerAccessAPI(g *echo.Group, jwt echo.MiddlewareFunc, gate *gate, deps ServerDeps) {
	api := accessApi{svc: deps.AccessSvc, validate: deps.Validate}

	ag := g.Group("/access", jwt, gate.authorize(user.RoleAdmin))
	ag.GET("/permissions", api.queryPermissions)

	ag.POST("/roles", api.createRole)
	ag.GET("/roles", api.queryRoles)
	ag.GET("/roles/:id", api.retrieveRole)
	ag.PUT("/roles/:id", api.updateRole)
	ag.DELETE("/roles/:id", api.destroyRole)

	ag.POST("/sub-admins", api.createSubAdmin)
	ag.GET("/sub-admins", api.querySubAdmins)
	ag.GET("/sub-admins/:id", api.retrieveSubAdmin)
	ag.PUT("/sub-admins/:id", api.updateSubAdminAccess)
	ag.DELETE("/sub-admins/:id", api.destroySubAdmin)
}

func (api *accessApi) queryPermissions(ctx echo.Context) error {
	perms, err := api.svc.Permissions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying permissions")
	}
	if perms == nil {
		perms = []access.Permission{}
	}
	return ctx.JSON(http.StatusOK, perms)
}

func (api *accessApi) createRole(ctx echo.Context) error {
	var data access.NewRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRole")
	}
	data.OrgID = contextOrgID(ctx)
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	role, err := api.svc.CreateRole(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating role")
	}
	return ctx.JSON(http.StatusCreated, role)
}

func (api *accessApi) queryRoles(ctx echo.Context) error {
	roles, err := api.svc.Roles(ctx.Request().Context(), contextOrgID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying roles")
	}
	if roles == nil {
		roles = []access.Role{}
	}
	return ctx.JSON(http.StatusOK, roles)
}

func (api *accessApi) retrieveRole(ctx echo.Context) error {
	role, err := api.roleOrNotFound(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, role)
}

func (api *accessApi) updateRole(ctx echo.Context) error {
	role, err := api.roleOrNotFound(ctx)
	if err != nil {
		return err
	}

	var data access.UpdateRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRole")
	}
	if err := data.Validate(api.validate, role, api.svc); err != nil {
		return err
	}

	role, err = api.svc.UpdateRole(ctx.Request().Context(), role.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating role")
	}
	return ctx.JSON(http.StatusOK, role)
}

func (api *accessApi) destroyRole(ctx echo.Context) error {
	role, err := api.roleOrNotFound(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteRoles(ctx.Request().Context(), role.ID); err != nil {
		return errors.Wrap(err, "deleting role")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accessApi) createSubAdmin(ctx echo.Context) error {
	var data access.NewSubAdmin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubAdmin")
	}
	data.OrgID = contextOrgID(ctx)
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sa, err := api.svc.CreateSubAdmin(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == access.ErrRoleNotFound {
			return echo.NewHTTPError(http.StatusBadRequest, access.ErrRoleNotFound.Error())
		}
		return errors.Wrap(err, "creating sub-admin")
	}
	return ctx.JSON(http.StatusCreated, sa)
}

func (api *accessApi) querySubAdmins(ctx echo.Context) error {
	sas, err := api.svc.SubAdmins(ctx.Request().Context(), contextOrgID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying sub-admins")
	}
	if sas == nil {
		sas = []access.SubAdmin{}
	}
	return ctx.JSON(http.StatusOK, sas)
}

func (api *accessApi) retrieveSubAdmin(ctx echo.Context) error {
	sa, err := api.subAdminOrNotFound(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sa)
}

func (api *accessApi) updateSubAdminAccess(ctx echo.Context) error {
	sa, err := api.subAdminOrNotFound(ctx)
	if err != nil {
		return err
	}

	var data access.UpdateSubAdminAccess
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubAdminAccess")
	}

	sa, err = api.svc.UpdateSubAdminAccess(ctx.Request().Context(), sa.ID, data)
	if err != nil {
		if errors.Cause(err) == access.ErrRoleNotFound {
			return echo.NewHTTPError(http.StatusBadRequest, access.ErrRoleNotFound.Error())
		}
		return errors.Wrap(err, "updating sub-admin access")
	}
	return ctx.JSON(http.StatusOK, sa)
}

func (api *accessApi) destroySubAdmin(ctx echo.Context) error {
	sa, err := api.subAdminOrNotFound(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteSubAdmins(ctx.Request().Context(), sa.ID); err != nil {
		return errors.Wrap(err, "deleting sub-admin")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accessApi) roleOrNotFound(ctx echo.Context) (access.Role, error) {
	id, err := intParam(ctx, "id")
	if err != nil {
		return access.Role{}, err
	}
	role, err := api.svc.GetRole(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == access.ErrRoleNotFound {
			return access.Role{}, errHttpNotFound
		}
		return access.Role{}, errors.Wrap(err, "finding role by ID")
	}
	if role.OrgID != contextOrgID(ctx) {
		return access.Role{}, errHttpNotFound
	}
	return role, nil
}

func (api *accessApi) subAdminOrNotFound(ctx echo.Context) (access.SubAdmin, error) {
	id, err := intParam(ctx, "id")
	if err != nil {
		return access.SubAdmin{}, err
	}
	sa, err := api.svc.GetSubAdmin(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == access.ErrSubAdminNotFound {
			return access.SubAdmin{}, errHttpNotFound
		}
		return access.SubAdmin{}, errors.Wrap(err, "finding sub-admin by ID")
	}
	if sa.OrgID != contextOrgID(ctx) {
		return access.SubAdmin{}, errHttpNotFound
	}
	return sa, nil
}
