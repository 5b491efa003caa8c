package access

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

var (
	ErrRoleNotFound         = errors.New("role not found")
	ErrRoleNameExists       = errors.New("a role with this name already exists in this organization")
	ErrSubAdminNotFound     = errors.New("sub-admin not found")
	ErrPermissionNotFound   = errors.New("permission not found")
	ErrPermissionUnresolved = errors.New("permission reference failed to resolve")
)

type (
	Repository interface {
		// Permissions
		QueryAllPermissions(ctx context.Context) ([]Permission, error)
		// GetPermissionsByID resolves every id or returns ErrPermissionNotFound.
		GetPermissionsByID(ctx context.Context, ids []int) ([]Permission, error)
		// SeedPermissions inserts catalog entries that do not exist yet.
		SeedPermissions(ctx context.Context, perms []Permission) error

		// Roles
		CheckRoleNameUniqueness(ctx context.Context, orgID int, name string, excludedRoles ...Role) error
		CreateRole(ctx context.Context, role Role) (Role, error)
		QueryRolesByOrg(ctx context.Context, orgID int) ([]Role, error)
		// GetRoleByID returns the role with its permission references resolved.
		GetRoleByID(ctx context.Context, id int) (Role, error)
		// UpdateRole replaces the name and permission set.
		UpdateRole(ctx context.Context, role Role) (Role, error)
		DeleteRolesByID(ctx context.Context, ids ...int) error

		// SubAdmins
		CreateSubAdmin(ctx context.Context, sa SubAdmin) (SubAdmin, error)
		QuerySubAdminsByOrg(ctx context.Context, orgID int) ([]SubAdmin, error)
		// GetSubAdminByID returns the profile with its role's permissions and
		// direct grants resolved; ErrPermissionUnresolved when any reference
		// cannot be resolved to a full permission record.
		GetSubAdminByID(ctx context.Context, id int) (SubAdmin, error)
		GetSubAdminByUserID(ctx context.Context, userID int) (SubAdmin, error)
		// UpdateSubAdmin replaces the role reference and direct grant list.
		UpdateSubAdmin(ctx context.Context, sa SubAdmin) (SubAdmin, error)
		DeleteSubAdminsByID(ctx context.Context, ids ...int) error
	}

	Service struct {
		repo   Repository
		usrSvc *user.Service
	}
)

func NewService(repo Repository, usrSvc *user.Service) *Service {
	return &Service{repo: repo, usrSvc: usrSvc}
}

// SeedPermissions loads the catalog, first validating that no two entries
// encode the same (module, action) pair.
func (svc *Service) SeedPermissions(ctx context.Context) error {
	catalog := Catalog()
	seen := make(map[string]struct{}, len(catalog))
	for _, p := range catalog {
		if _, ok := seen[p.Key()]; ok {
			return errors.Errorf("duplicate permission pair (%q, %q) in catalog", p.Module, p.Action)
		}
		seen[p.Key()] = struct{}{}
	}
	return svc.repo.SeedPermissions(ctx, catalog)
}

func (svc *Service) Permissions(ctx context.Context) ([]Permission, error) {
	return svc.repo.QueryAllPermissions(ctx)
}

func (svc *Service) CheckRoleUniqueness(orgID int, name string, exclRoles ...Role) error {
	if err := svc.repo.CheckRoleNameUniqueness(context.Background(), orgID, name, exclRoles...); err != nil {
		if errors.Cause(err) == ErrRoleNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

// resolvePermissions maps ids to full permission records; every id must
// resolve.
func (svc *Service) resolvePermissions(ctx context.Context, ids []int) ([]Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	perms, err := svc.repo.GetPermissionsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(perms) != len(ids) {
		return nil, ErrPermissionNotFound
	}
	return perms, nil
}

// CreateRole persists a new role referencing the resolved permission set.
func (svc *Service) CreateRole(ctx context.Context, nr NewRole) (Role, error) {
	perms, err := svc.resolvePermissions(ctx, nr.PermissionIDs)
	if err != nil {
		if errors.Cause(err) == ErrPermissionNotFound {
			return Role{}, core.NewValidationError(err,
				core.FieldError{Field: "permission_ids", Error: err.Error()})
		}
		return Role{}, errors.Wrap(err, "resolving permissions")
	}

	now := time.Now().UTC()
	role := Role{
		OrgID:       nr.OrgID,
		Name:        nr.Name,
		Permissions: perms,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateRole(ctx, role)
}

func (svc *Service) Roles(ctx context.Context, orgID int) ([]Role, error) {
	return svc.repo.QueryRolesByOrg(ctx, orgID)
}

func (svc *Service) GetRole(ctx context.Context, id int) (Role, error) {
	return svc.repo.GetRoleByID(ctx, id)
}

// UpdateRole replaces (never merges) the role's permission list.
func (svc *Service) UpdateRole(ctx context.Context, id int, ur UpdateRole) (Role, error) {
	role, err := svc.repo.GetRoleByID(ctx, id)
	if err != nil {
		return Role{}, err
	}

	role.Name = ur.Name
	if ur.PermissionIDs != nil {
		perms, err := svc.resolvePermissions(ctx, ur.PermissionIDs)
		if err != nil {
			if errors.Cause(err) == ErrPermissionNotFound {
				return Role{}, core.NewValidationError(err,
					core.FieldError{Field: "permission_ids", Error: err.Error()})
			}
			return Role{}, errors.Wrap(err, "resolving permissions")
		}
		role.Permissions = perms
	}
	role.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRole(ctx, role)
}

func (svc *Service) DeleteRoles(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteRolesByID(ctx, ids...)
}

// CreateSubAdmin creates the staff user account and its access profile.
func (svc *Service) CreateSubAdmin(ctx context.Context, ns NewSubAdmin) (SubAdmin, error) {
	if ns.RoleID != 0 {
		role, err := svc.repo.GetRoleByID(ctx, ns.RoleID)
		if err != nil {
			return SubAdmin{}, err
		}
		if role.OrgID != ns.OrgID {
			return SubAdmin{}, ErrRoleNotFound
		}
	}
	perms, err := svc.resolvePermissions(ctx, ns.PermissionIDs)
	if err != nil {
		if errors.Cause(err) == ErrPermissionNotFound {
			return SubAdmin{}, core.NewValidationError(err,
				core.FieldError{Field: "permission_ids", Error: err.Error()})
		}
		return SubAdmin{}, errors.Wrap(err, "resolving permissions")
	}

	usr, err := svc.usrSvc.Create(ctx, user.NewUser{
		Name:            ns.Name,
		Username:        ns.Username,
		Email:           ns.Email,
		Password:        ns.Password,
		PasswordConfirm: ns.PasswordConfirm,
		Role:            user.RoleSubAdmin,
		OrgID:           ns.OrgID,
	})
	if err != nil {
		return SubAdmin{}, errors.Wrap(err, "creating sub-admin user")
	}

	now := time.Now().UTC()
	sa := SubAdmin{
		OrgID:       ns.OrgID,
		UserID:      usr.ID,
		RoleID:      ns.RoleID,
		Permissions: perms,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateSubAdmin(ctx, sa)
}

func (svc *Service) SubAdmins(ctx context.Context, orgID int) ([]SubAdmin, error) {
	return svc.repo.QuerySubAdminsByOrg(ctx, orgID)
}

func (svc *Service) GetSubAdmin(ctx context.Context, id int) (SubAdmin, error) {
	return svc.repo.GetSubAdminByID(ctx, id)
}

func (svc *Service) GetSubAdminByUserID(ctx context.Context, userID int) (SubAdmin, error) {
	return svc.repo.GetSubAdminByUserID(ctx, userID)
}

// UpdateSubAdminAccess replaces the sub-admin's role reference and/or direct
// grant list. The effective permission set is recomputed fresh on every
// request, so there is nothing to invalidate here.
func (svc *Service) UpdateSubAdminAccess(ctx context.Context, id int, ua UpdateSubAdminAccess) (SubAdmin, error) {
	sa, err := svc.repo.GetSubAdminByID(ctx, id)
	if err != nil {
		return SubAdmin{}, err
	}

	if ua.RoleID != nil {
		if *ua.RoleID != 0 {
			role, err := svc.repo.GetRoleByID(ctx, *ua.RoleID)
			if err != nil {
				return SubAdmin{}, err
			}
			if role.OrgID != sa.OrgID {
				return SubAdmin{}, ErrRoleNotFound
			}
		}
		sa.RoleID = *ua.RoleID
		sa.Role = nil
	}
	if ua.PermissionIDs != nil {
		perms, err := svc.resolvePermissions(ctx, ua.PermissionIDs)
		if err != nil {
			if errors.Cause(err) == ErrPermissionNotFound {
				return SubAdmin{}, core.NewValidationError(err,
					core.FieldError{Field: "permission_ids", Error: err.Error()})
			}
			return SubAdmin{}, errors.Wrap(err, "resolving permissions")
		}
		sa.Permissions = perms
	}
	sa.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSubAdmin(ctx, sa)
}

func (svc *Service) DeleteSubAdmins(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteSubAdminsByID(ctx, ids...)
}

// Describe returns a human readable permission label, e.g. for audit logs.
func Describe(p Permission) string {
	return fmt.Sprintf("%s / %s", p.Module, p.Action)
}
