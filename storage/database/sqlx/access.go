package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/access"
)

type (
	permissionRow struct {
		ID     int    `db:"id"`
		Module string `db:"module"`
		Action string `db:"action"`
	}

	roleRow struct {
		ID        int       `db:"id"`
		OrgID     int       `db:"org_id"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	subAdminRow struct {
		ID        int       `db:"id"`
		OrgID     int       `db:"org_id"`
		UserID    int       `db:"user_id"`
		RoleID    null.Int  `db:"role_id"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

func (r permissionRow) permission() access.Permission {
	return access.Permission{ID: r.ID, Module: r.Module, Action: r.Action}
}

type accessRepository struct {
	db *sqlx.DB
}

var _ access.Repository = (*accessRepository)(nil)

func NewAccessRepository(db *sqlx.DB) *accessRepository {
	return &accessRepository{db: db}
}

// ------------------------------------------------------------------ permissions

func (repo accessRepository) QueryAllPermissions(ctx context.Context) ([]access.Permission, error) {
	var rows []permissionRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM permissions ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying permissions")
	}
	perms := make([]access.Permission, 0, len(rows))
	for _, r := range rows {
		perms = append(perms, r.permission())
	}
	return perms, nil
}

func (repo accessRepository) GetPermissionsByID(ctx context.Context, ids []int) ([]access.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM permissions WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building permissions query")
	}
	var rows []permissionRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying permissions")
	}

	found := make(map[int]access.Permission, len(rows))
	for _, r := range rows {
		found[r.ID] = r.permission()
	}
	perms := make([]access.Permission, 0, len(ids))
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			return nil, access.ErrPermissionNotFound
		}
		perms = append(perms, p)
	}
	return perms, nil
}

func (repo accessRepository) SeedPermissions(ctx context.Context, perms []access.Permission) error {
	query := `INSERT INTO permissions (module, action) VALUES ($1, $2) ON CONFLICT (module, action) DO NOTHING`
	for _, p := range perms {
		if _, err := repo.db.ExecContext(ctx, query, p.Module, p.Action); err != nil {
			return errors.Wrap(err, "seeding permissions")
		}
	}
	return nil
}

// permissionsFor loads the permission set joined through the given link table.
func (repo accessRepository) permissionsFor(ctx context.Context, linkTable, linkCol string, ownerID int) ([]access.Permission, error) {
	query := `
		SELECT p.* FROM permissions p
		JOIN ` + linkTable + ` l ON l.permission_id = p.id
		WHERE l.` + linkCol + ` = $1
		ORDER BY p.id`
	var rows []permissionRow
	if err := repo.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, errors.Wrap(err, "querying linked permissions")
	}
	perms := make([]access.Permission, 0, len(rows))
	for _, r := range rows {
		perms = append(perms, r.permission())
	}
	return perms, nil
}

// ------------------------------------------------------------------ roles

func (repo accessRepository) resolveRole(ctx context.Context, r roleRow) (access.Role, error) {
	perms, err := repo.permissionsFor(ctx, "role_permissions", "role_id", r.ID)
	if err != nil {
		return access.Role{}, err
	}
	return access.Role{
		ID:          r.ID,
		OrgID:       r.OrgID,
		Name:        r.Name,
		Permissions: perms,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func (repo accessRepository) CheckRoleNameUniqueness(ctx context.Context, orgID int, name string, excludedRoles ...access.Role) error {
	query := `SELECT EXISTS (SELECT 1 FROM roles WHERE org_id = ? AND name = ?`
	args := []interface{}{orgID, name}
	if len(excludedRoles) > 0 {
		ids := make([]int, 0, len(excludedRoles))
		for _, role := range excludedRoles {
			ids = append(ids, role.ID)
		}
		query += ` AND id NOT IN (?)`
		q, inArgs, err := sqlx.In(query+`)`, orgID, name, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query, args = q, inArgs
	} else {
		query += `)`
	}

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking role uniqueness")
	}
	if exists {
		return access.ErrRoleNameExists
	}
	return nil
}

func (repo accessRepository) setRolePermissions(ctx context.Context, tx *sqlx.Tx, roleID int, perms []access.Permission) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return errors.Wrap(err, "clearing role permissions")
	}
	for _, p := range perms {
		_, err := tx.ExecContext(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, p.ID)
		if err != nil {
			return errors.Wrap(err, "linking role permission")
		}
	}
	return nil
}

func (repo accessRepository) CreateRole(ctx context.Context, role access.Role) (access.Role, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return access.Role{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO roles (org_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err = tx.QueryRowContext(ctx, query, role.OrgID, role.Name, role.CreatedAt, role.UpdatedAt).Scan(&role.ID); err != nil {
		return access.Role{}, errors.Wrap(err, "inserting role")
	}
	if err = repo.setRolePermissions(ctx, tx, role.ID, role.Permissions); err != nil {
		return access.Role{}, err
	}
	if err = tx.Commit(); err != nil {
		return access.Role{}, errors.Wrap(err, "committing role")
	}
	return role, nil
}

func (repo accessRepository) QueryRolesByOrg(ctx context.Context, orgID int) ([]access.Role, error) {
	var rows []roleRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM roles WHERE org_id = $1 ORDER BY id`, orgID); err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}
	roles := make([]access.Role, 0, len(rows))
	for _, r := range rows {
		role, err := repo.resolveRole(ctx, r)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (repo accessRepository) GetRoleByID(ctx context.Context, id int) (access.Role, error) {
	var r roleRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM roles WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return access.Role{}, access.ErrRoleNotFound
		}
		return access.Role{}, errors.Wrap(err, "getting role")
	}
	return repo.resolveRole(ctx, r)
}

func (repo accessRepository) UpdateRole(ctx context.Context, role access.Role) (access.Role, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return access.Role{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE roles SET name = $2, updated_at = $3 WHERE id = $1`, role.ID, role.Name, role.UpdatedAt)
	if err != nil {
		return access.Role{}, errors.Wrap(err, "updating role")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return access.Role{}, access.ErrRoleNotFound
	}
	if err = repo.setRolePermissions(ctx, tx, role.ID, role.Permissions); err != nil {
		return access.Role{}, err
	}
	if err = tx.Commit(); err != nil {
		return access.Role{}, errors.Wrap(err, "committing role")
	}
	return repo.GetRoleByID(ctx, role.ID)
}

func (repo accessRepository) DeleteRolesByID(ctx context.Context, ids ...int) error {
	query, args, err := sqlx.In(`DELETE FROM roles WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting roles")
	}
	return nil
}

// ------------------------------------------------------------------ sub-admins

func (repo accessRepository) resolveSubAdmin(ctx context.Context, r subAdminRow) (access.SubAdmin, error) {
	sa := access.SubAdmin{
		ID:        r.ID,
		OrgID:     r.OrgID,
		UserID:    r.UserID,
		RoleID:    int(r.RoleID.Int),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if sa.RoleID != 0 {
		role, err := repo.GetRoleByID(ctx, sa.RoleID)
		if err != nil {
			if errors.Cause(err) == access.ErrRoleNotFound {
				return access.SubAdmin{}, access.ErrPermissionUnresolved
			}
			return access.SubAdmin{}, err
		}
		sa.Role = &role
	}

	perms, err := repo.permissionsFor(ctx, "sub_admin_permissions", "sub_admin_id", sa.ID)
	if err != nil {
		return access.SubAdmin{}, err
	}
	sa.Permissions = perms
	return sa, nil
}

func (repo accessRepository) setSubAdminPermissions(ctx context.Context, tx *sqlx.Tx, saID int, perms []access.Permission) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sub_admin_permissions WHERE sub_admin_id = $1`, saID); err != nil {
		return errors.Wrap(err, "clearing sub-admin permissions")
	}
	for _, p := range perms {
		_, err := tx.ExecContext(ctx, `INSERT INTO sub_admin_permissions (sub_admin_id, permission_id) VALUES ($1, $2)`, saID, p.ID)
		if err != nil {
			return errors.Wrap(err, "linking sub-admin permission")
		}
	}
	return nil
}

func (repo accessRepository) CreateSubAdmin(ctx context.Context, sa access.SubAdmin) (access.SubAdmin, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return access.SubAdmin{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO sub_admins (org_id, user_id, role_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	roleID := null.NewInt(sa.RoleID, sa.RoleID != 0)
	if err = tx.QueryRowContext(ctx, query, sa.OrgID, sa.UserID, roleID, sa.CreatedAt, sa.UpdatedAt).Scan(&sa.ID); err != nil {
		return access.SubAdmin{}, errors.Wrap(err, "inserting sub-admin")
	}
	if err = repo.setSubAdminPermissions(ctx, tx, sa.ID, sa.Permissions); err != nil {
		return access.SubAdmin{}, err
	}
	if err = tx.Commit(); err != nil {
		return access.SubAdmin{}, errors.Wrap(err, "committing sub-admin")
	}
	return repo.GetSubAdminByID(ctx, sa.ID)
}

func (repo accessRepository) QuerySubAdminsByOrg(ctx context.Context, orgID int) ([]access.SubAdmin, error) {
	var rows []subAdminRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM sub_admins WHERE org_id = $1 ORDER BY id`, orgID); err != nil {
		return nil, errors.Wrap(err, "querying sub-admins")
	}
	sas := make([]access.SubAdmin, 0, len(rows))
	for _, r := range rows {
		sa, err := repo.resolveSubAdmin(ctx, r)
		if err != nil {
			return nil, err
		}
		sas = append(sas, sa)
	}
	return sas, nil
}

func (repo accessRepository) GetSubAdminByID(ctx context.Context, id int) (access.SubAdmin, error) {
	var r subAdminRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM sub_admins WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return access.SubAdmin{}, access.ErrSubAdminNotFound
		}
		return access.SubAdmin{}, errors.Wrap(err, "getting sub-admin")
	}
	return repo.resolveSubAdmin(ctx, r)
}

func (repo accessRepository) GetSubAdminByUserID(ctx context.Context, userID int) (access.SubAdmin, error) {
	var r subAdminRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM sub_admins WHERE user_id = $1`, userID); err != nil {
		if err == sql.ErrNoRows {
			return access.SubAdmin{}, access.ErrSubAdminNotFound
		}
		return access.SubAdmin{}, errors.Wrap(err, "getting sub-admin")
	}
	return repo.resolveSubAdmin(ctx, r)
}

func (repo accessRepository) UpdateSubAdmin(ctx context.Context, sa access.SubAdmin) (access.SubAdmin, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return access.SubAdmin{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	roleID := null.NewInt(sa.RoleID, sa.RoleID != 0)
	res, err := tx.ExecContext(ctx, `UPDATE sub_admins SET role_id = $2, updated_at = $3 WHERE id = $1`, sa.ID, roleID, sa.UpdatedAt)
	if err != nil {
		return access.SubAdmin{}, errors.Wrap(err, "updating sub-admin")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return access.SubAdmin{}, access.ErrSubAdminNotFound
	}
	if err = repo.setSubAdminPermissions(ctx, tx, sa.ID, sa.Permissions); err != nil {
		return access.SubAdmin{}, err
	}
	if err = tx.Commit(); err != nil {
		return access.SubAdmin{}, errors.Wrap(err, "committing sub-admin")
	}
	return repo.GetSubAdminByID(ctx, sa.ID)
}

func (repo accessRepository) DeleteSubAdminsByID(ctx context.Context, ids ...int) error {
	query, args, err := sqlx.In(`DELETE FROM sub_admins WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting sub-admins")
	}
	return nil
}
