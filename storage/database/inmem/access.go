package inmemdb

import (
	"context"
	"sort"

	"github.com/darasahq/darasa/core/access"
)

var (
	permPkCount     int
	rolePkCount     int
	subAdminPkCount int
)

type accessRepository struct {
	db *accessTable
}

var _ access.Repository = (*accessRepository)(nil)

func NewAccessRepository(db *DB) access.Repository {
	return &accessRepository{db: db.access}
}

// ------------------------------------------------------------------ permissions

func (repo *accessRepository) queryPermissions() []access.Permission {
	perms := make([]access.Permission, 0, len(repo.db.permissions))
	for _, p := range repo.db.permissions {
		perms = append(perms, *p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].ID < perms[j].ID })
	return perms
}

func (repo *accessRepository) QueryAllPermissions(ctx context.Context) ([]access.Permission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryPermissions(), nil
}

func (repo *accessRepository) GetPermissionsByID(ctx context.Context, ids []int) ([]access.Permission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.getPermissionsByID(ids)
}

func (repo *accessRepository) getPermissionsByID(ids []int) ([]access.Permission, error) {
	perms := make([]access.Permission, 0, len(ids))
	for _, id := range ids {
		p, ok := repo.db.permissions[id]
		if !ok {
			return nil, access.ErrPermissionNotFound
		}
		perms = append(perms, *p)
	}
	return perms, nil
}

func (repo *accessRepository) SeedPermissions(ctx context.Context, perms []access.Permission) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	existing := make(map[string]struct{}, len(repo.db.permissions))
	for _, p := range repo.db.permissions {
		existing[p.Key()] = struct{}{}
	}

	for _, p := range perms {
		if _, ok := existing[p.Key()]; ok {
			continue
		}
		permPkCount++
		p.ID = permPkCount
		repo.db.permissions[p.ID] = &p
		existing[p.Key()] = struct{}{}
	}
	return nil
}

// ------------------------------------------------------------------ roles

func (repo *accessRepository) resolveRole(role access.Role) (access.Role, error) {
	ids := make([]int, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		ids = append(ids, p.ID)
	}
	perms, err := repo.getPermissionsByID(ids)
	if err != nil {
		return access.Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

func (repo *accessRepository) CheckRoleNameUniqueness(ctx context.Context, orgID int, name string, excludedRoles ...access.Role) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, role := range repo.db.roles {
		if role.OrgID != orgID || role.Name != name {
			continue
		}
		excluded := false
		for _, excl := range excludedRoles {
			if excl.ID == role.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return access.ErrRoleNameExists
		}
	}
	return nil
}

func (repo *accessRepository) CreateRole(ctx context.Context, role access.Role) (access.Role, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rolePkCount++
	role.ID = rolePkCount
	repo.db.roles[role.ID] = &role
	return role, nil
}

func (repo *accessRepository) QueryRolesByOrg(ctx context.Context, orgID int) ([]access.Role, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var roles []access.Role
	for _, role := range repo.db.roles {
		if role.OrgID != orgID {
			continue
		}
		resolved, err := repo.resolveRole(*role)
		if err != nil {
			return nil, err
		}
		roles = append(roles, resolved)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (repo *accessRepository) GetRoleByID(ctx context.Context, id int) (access.Role, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	role, ok := repo.db.roles[id]
	if !ok {
		return access.Role{}, access.ErrRoleNotFound
	}
	return repo.resolveRole(*role)
}

func (repo *accessRepository) UpdateRole(ctx context.Context, role access.Role) (access.Role, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.roles[role.ID]
	if !ok {
		return access.Role{}, access.ErrRoleNotFound
	}

	orig.Name = role.Name
	orig.Permissions = role.Permissions
	orig.UpdatedAt = role.UpdatedAt
	return repo.resolveRole(*orig)
}

func (repo *accessRepository) DeleteRolesByID(ctx context.Context, ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.roles, id)
		// detach from sub-admins referencing it
		for _, sa := range repo.db.subAdmins {
			if sa.RoleID == id {
				sa.RoleID = 0
			}
		}
	}
	return nil
}

// ------------------------------------------------------------------ sub-admins

// resolveSubAdmin re-reads the role reference and direct grants so that role
// and permission edits are visible on the next fetch.
func (repo *accessRepository) resolveSubAdmin(sa access.SubAdmin) (access.SubAdmin, error) {
	sa.Role = nil
	if sa.RoleID != 0 {
		role, ok := repo.db.roles[sa.RoleID]
		if !ok {
			return access.SubAdmin{}, access.ErrPermissionUnresolved
		}
		resolved, err := repo.resolveRole(*role)
		if err != nil {
			return access.SubAdmin{}, access.ErrPermissionUnresolved
		}
		sa.Role = &resolved
	}

	ids := make([]int, 0, len(sa.Permissions))
	for _, p := range sa.Permissions {
		ids = append(ids, p.ID)
	}
	perms, err := repo.getPermissionsByID(ids)
	if err != nil {
		return access.SubAdmin{}, access.ErrPermissionUnresolved
	}
	sa.Permissions = perms
	return sa, nil
}

func (repo *accessRepository) CreateSubAdmin(ctx context.Context, sa access.SubAdmin) (access.SubAdmin, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	subAdminPkCount++
	sa.ID = subAdminPkCount
	stored := sa
	stored.Role = nil
	repo.db.subAdmins[sa.ID] = &stored
	return repo.resolveSubAdmin(stored)
}

func (repo *accessRepository) QuerySubAdminsByOrg(ctx context.Context, orgID int) ([]access.SubAdmin, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sas []access.SubAdmin
	for _, sa := range repo.db.subAdmins {
		if sa.OrgID != orgID {
			continue
		}
		resolved, err := repo.resolveSubAdmin(*sa)
		if err != nil {
			return nil, err
		}
		sas = append(sas, resolved)
	}
	sort.Slice(sas, func(i, j int) bool { return sas[i].ID < sas[j].ID })
	return sas, nil
}

func (repo *accessRepository) GetSubAdminByID(ctx context.Context, id int) (access.SubAdmin, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sa, ok := repo.db.subAdmins[id]
	if !ok {
		return access.SubAdmin{}, access.ErrSubAdminNotFound
	}
	return repo.resolveSubAdmin(*sa)
}

func (repo *accessRepository) GetSubAdminByUserID(ctx context.Context, userID int) (access.SubAdmin, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sa := range repo.db.subAdmins {
		if sa.UserID == userID {
			return repo.resolveSubAdmin(*sa)
		}
	}
	return access.SubAdmin{}, access.ErrSubAdminNotFound
}

func (repo *accessRepository) UpdateSubAdmin(ctx context.Context, sa access.SubAdmin) (access.SubAdmin, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.subAdmins[sa.ID]
	if !ok {
		return access.SubAdmin{}, access.ErrSubAdminNotFound
	}

	orig.RoleID = sa.RoleID
	orig.Permissions = sa.Permissions
	orig.UpdatedAt = sa.UpdatedAt
	return repo.resolveSubAdmin(*orig)
}

func (repo *accessRepository) DeleteSubAdminsByID(ctx context.Context, ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.subAdmins, id)
	}
	return nil
}
