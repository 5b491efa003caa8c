package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/darasahq/darasa/core/access"
)

type (
	permissionModel struct {
		ID     int    `gorm:"column:id;primaryKey"`
		Module string `gorm:"column:module"`
		Action string `gorm:"column:action"`
	}

	roleModel struct {
		ID          int               `gorm:"column:id;primaryKey"`
		OrgID       int               `gorm:"column:org_id"`
		Name        string            `gorm:"column:name"`
		Permissions []permissionModel `gorm:"many2many:role_permissions;joinForeignKey:role_id;joinReferences:permission_id"`
		CreatedAt   time.Time         `gorm:"column:created_at"`
		UpdatedAt   time.Time         `gorm:"column:updated_at"`
	}

	subAdminModel struct {
		ID          int               `gorm:"column:id;primaryKey"`
		OrgID       int               `gorm:"column:org_id"`
		UserID      int               `gorm:"column:user_id"`
		RoleID      *int              `gorm:"column:role_id"`
		Permissions []permissionModel `gorm:"many2many:sub_admin_permissions;joinForeignKey:sub_admin_id;joinReferences:permission_id"`
		CreatedAt   time.Time         `gorm:"column:created_at"`
		UpdatedAt   time.Time         `gorm:"column:updated_at"`
	}
)

func (permissionModel) TableName() string { return "permissions" }
func (roleModel) TableName() string       { return "roles" }
func (subAdminModel) TableName() string   { return "sub_admins" }

func (m permissionModel) permission() access.Permission {
	return access.Permission{ID: m.ID, Module: m.Module, Action: m.Action}
}

func permissions(models []permissionModel) []access.Permission {
	perms := make([]access.Permission, 0, len(models))
	for _, m := range models {
		perms = append(perms, m.permission())
	}
	return perms
}

func permissionModels(perms []access.Permission) []permissionModel {
	models := make([]permissionModel, 0, len(perms))
	for _, p := range perms {
		models = append(models, permissionModel{ID: p.ID, Module: p.Module, Action: p.Action})
	}
	return models
}

func (m roleModel) role() access.Role {
	return access.Role{
		ID:          m.ID,
		OrgID:       m.OrgID,
		Name:        m.Name,
		Permissions: permissions(m.Permissions),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

type accessRepository struct {
	db *gorm.DB
}

var _ access.Repository = (*accessRepository)(nil)

func NewAccessRepository(db *gorm.DB) *accessRepository {
	return &accessRepository{db: db}
}

// ------------------------------------------------------------------ permissions

func (repo accessRepository) QueryAllPermissions(ctx context.Context) ([]access.Permission, error) {
	var rows []permissionModel
	if err := repo.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying permissions")
	}
	return permissions(rows), nil
}

func (repo accessRepository) GetPermissionsByID(ctx context.Context, ids []int) ([]access.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []permissionModel
	if err := repo.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
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
	for _, p := range perms {
		var count int64
		err := repo.db.WithContext(ctx).Model(&permissionModel{}).
			Where("module = ? AND action = ?", p.Module, p.Action).Count(&count).Error
		if err != nil {
			return errors.Wrap(err, "seeding permissions")
		}
		if count > 0 {
			continue
		}
		m := permissionModel{Module: p.Module, Action: p.Action}
		if err = repo.db.WithContext(ctx).Create(&m).Error; err != nil {
			return errors.Wrap(err, "seeding permissions")
		}
	}
	return nil
}

// ------------------------------------------------------------------ roles

func (repo accessRepository) CheckRoleNameUniqueness(ctx context.Context, orgID int, name string, excludedRoles ...access.Role) error {
	query := repo.db.WithContext(ctx).Model(&roleModel{}).Where("org_id = ? AND name = ?", orgID, name)
	if len(excludedRoles) > 0 {
		ids := make([]int, 0, len(excludedRoles))
		for _, role := range excludedRoles {
			ids = append(ids, role.ID)
		}
		query = query.Where("id NOT IN ?", ids)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return errors.Wrap(err, "checking role uniqueness")
	}
	if count > 0 {
		return access.ErrRoleNameExists
	}
	return nil
}

func (repo accessRepository) CreateRole(ctx context.Context, role access.Role) (access.Role, error) {
	m := roleModel{
		OrgID:       role.OrgID,
		Name:        role.Name,
		Permissions: permissionModels(role.Permissions),
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
	if err := repo.db.WithContext(ctx).Omit("Permissions.*").Create(&m).Error; err != nil {
		return access.Role{}, errors.Wrap(err, "inserting role")
	}
	return repo.GetRoleByID(ctx, m.ID)
}

func (repo accessRepository) QueryRolesByOrg(ctx context.Context, orgID int) ([]access.Role, error) {
	var rows []roleModel
	err := repo.db.WithContext(ctx).Preload("Permissions").Where("org_id = ?", orgID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}
	roles := make([]access.Role, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, r.role())
	}
	return roles, nil
}

func (repo accessRepository) GetRoleByID(ctx context.Context, id int) (access.Role, error) {
	var m roleModel
	err := repo.db.WithContext(ctx).Preload("Permissions").Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return access.Role{}, access.ErrRoleNotFound
		}
		return access.Role{}, errors.Wrap(err, "getting role")
	}
	return m.role(), nil
}

func (repo accessRepository) UpdateRole(ctx context.Context, role access.Role) (access.Role, error) {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&roleModel{}).Where("id = ?", role.ID).
			Updates(map[string]interface{}{"name": role.Name, "updated_at": role.UpdatedAt})
		if res.Error != nil {
			return errors.Wrap(res.Error, "updating role")
		}
		if res.RowsAffected == 0 {
			return access.ErrRoleNotFound
		}
		m := roleModel{ID: role.ID}
		perms := permissionModels(role.Permissions)
		if err := tx.Model(&m).Association("Permissions").Replace(&perms); err != nil {
			return errors.Wrap(err, "replacing role permissions")
		}
		return nil
	})
	if err != nil {
		return access.Role{}, err
	}
	return repo.GetRoleByID(ctx, role.ID)
}

func (repo accessRepository) DeleteRolesByID(ctx context.Context, ids ...int) error {
	if err := repo.db.WithContext(ctx).Delete(&roleModel{}, ids).Error; err != nil {
		return errors.Wrap(err, "deleting roles")
	}
	return nil
}

// ------------------------------------------------------------------ sub-admins

func (repo accessRepository) resolveSubAdmin(ctx context.Context, m subAdminModel) (access.SubAdmin, error) {
	sa := access.SubAdmin{
		ID:          m.ID,
		OrgID:       m.OrgID,
		UserID:      m.UserID,
		Permissions: permissions(m.Permissions),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.RoleID != nil {
		sa.RoleID = *m.RoleID
		role, err := repo.GetRoleByID(ctx, sa.RoleID)
		if err != nil {
			if errors.Cause(err) == access.ErrRoleNotFound {
				return access.SubAdmin{}, access.ErrPermissionUnresolved
			}
			return access.SubAdmin{}, err
		}
		sa.Role = &role
	}
	return sa, nil
}

func (repo accessRepository) CreateSubAdmin(ctx context.Context, sa access.SubAdmin) (access.SubAdmin, error) {
	m := subAdminModel{
		OrgID:       sa.OrgID,
		UserID:      sa.UserID,
		Permissions: permissionModels(sa.Permissions),
		CreatedAt:   sa.CreatedAt,
		UpdatedAt:   sa.UpdatedAt,
	}
	if sa.RoleID != 0 {
		roleID := sa.RoleID
		m.RoleID = &roleID
	}
	if err := repo.db.WithContext(ctx).Omit("Permissions.*").Create(&m).Error; err != nil {
		return access.SubAdmin{}, errors.Wrap(err, "inserting sub-admin")
	}
	return repo.GetSubAdminByID(ctx, m.ID)
}

func (repo accessRepository) QuerySubAdminsByOrg(ctx context.Context, orgID int) ([]access.SubAdmin, error) {
	var rows []subAdminModel
	err := repo.db.WithContext(ctx).Preload("Permissions").Where("org_id = ?", orgID).Order("id").Find(&rows).Error
	if err != nil {
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

func (repo accessRepository) getSubAdmin(ctx context.Context, cond string, arg interface{}) (access.SubAdmin, error) {
	var m subAdminModel
	err := repo.db.WithContext(ctx).Preload("Permissions").Where(cond, arg).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return access.SubAdmin{}, access.ErrSubAdminNotFound
		}
		return access.SubAdmin{}, errors.Wrap(err, "getting sub-admin")
	}
	return repo.resolveSubAdmin(ctx, m)
}

func (repo accessRepository) GetSubAdminByID(ctx context.Context, id int) (access.SubAdmin, error) {
	return repo.getSubAdmin(ctx, "id = ?", id)
}

func (repo accessRepository) GetSubAdminByUserID(ctx context.Context, userID int) (access.SubAdmin, error) {
	return repo.getSubAdmin(ctx, "user_id = ?", userID)
}

func (repo accessRepository) UpdateSubAdmin(ctx context.Context, sa access.SubAdmin) (access.SubAdmin, error) {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var roleID *int
		if sa.RoleID != 0 {
			id := sa.RoleID
			roleID = &id
		}
		res := tx.Model(&subAdminModel{}).Where("id = ?", sa.ID).
			Updates(map[string]interface{}{"role_id": roleID, "updated_at": sa.UpdatedAt})
		if res.Error != nil {
			return errors.Wrap(res.Error, "updating sub-admin")
		}
		if res.RowsAffected == 0 {
			return access.ErrSubAdminNotFound
		}
		m := subAdminModel{ID: sa.ID}
		perms := permissionModels(sa.Permissions)
		if err := tx.Model(&m).Association("Permissions").Replace(&perms); err != nil {
			return errors.Wrap(err, "replacing sub-admin permissions")
		}
		return nil
	})
	if err != nil {
		return access.SubAdmin{}, err
	}
	return repo.GetSubAdminByID(ctx, sa.ID)
}

func (repo accessRepository) DeleteSubAdminsByID(ctx context.Context, ids ...int) error {
	if err := repo.db.WithContext(ctx).Delete(&subAdminModel{}, ids).Error; err != nil {
		return errors.Wrap(err, "deleting sub-admins")
	}
	return nil
}
