package gormrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/darasahq/darasa/core/user"
)

type userModel struct {
	ID           int        `gorm:"column:id;primaryKey"`
	Name         string     `gorm:"column:name"`
	Username     string     `gorm:"column:username"`
	Email        string     `gorm:"column:email"`
	Role         string     `gorm:"column:role"`
	OrgID        int        `gorm:"column:org_id"`
	IsActive     bool       `gorm:"column:is_active"`
	PasswordHash []byte     `gorm:"column:password_hash"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
	LastLogin    *time.Time `gorm:"column:last_login"`
}

func (userModel) TableName() string { return "users" }

func (m userModel) user() user.User {
	usr := user.User{
		ID:           m.ID,
		Name:         m.Name,
		Username:     m.Username,
		Email:        m.Email,
		Role:         user.Role(m.Role),
		OrgID:        m.OrgID,
		IsActive:     m.IsActive,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.LastLogin != nil {
		usr.LastLogin = *m.LastLogin
	}
	return usr
}

func newUserModel(usr user.User) userModel {
	m := userModel{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         string(usr.Role),
		OrgID:        usr.OrgID,
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
	}
	if !usr.LastLogin.IsZero() {
		t := usr.LastLogin
		m.LastLogin = &t
	}
	return m
}

type userRepository struct {
	db *gorm.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) trapNotFoundErr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := repo.db.WithContext(ctx).Model(&userModel{}).
		Where("username = ? OR email = ?", username, email)
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query = query.Where("id NOT IN ?", ids)
	}

	var rows []userModel
	if err := query.Find(&rows).Error; err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if r.Username == username {
			return user.ErrUsernameExists
		}
		if r.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	m := newUserModel(usr)
	m.ID = 0
	if err := repo.db.WithContext(ctx).Create(&m).Error; err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return m.user(), nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userModel
	if err := repo.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo userRepository) getUser(ctx context.Context, cond string, args ...interface{}) (user.User, error) {
	var m userModel
	if err := repo.db.WithContext(ctx).Where(cond, args...).First(&m).Error; err != nil {
		return user.User{}, repo.trapNotFoundErr(err, "getting user")
	}
	return m.user(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, "id = ?", id)
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, "username = ?", username)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = ?", email)
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, "username = ? OR email = ?", username, username)
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := repo.db.WithContext(ctx).Model(&userModel{})
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?", search, search, search)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", string(filter.Role))
	}
	if filter.OrgID != 0 {
		query = query.Where("org_id = ?", filter.OrgID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		query = query.Where("created_at >= ?", filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		query = query.Where("created_at <= ?", filter.CreatedTo)
	}

	var rows []userModel
	if err := query.Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	updates := map[string]interface{}{"updated_at": usr.UpdatedAt}
	if usr.Name != "" {
		updates["name"] = usr.Name
	}
	if usr.Username != "" {
		updates["username"] = usr.Username
	}
	if usr.Email != "" {
		updates["email"] = usr.Email
	}
	if usr.Role != "" {
		updates["role"] = string(usr.Role)
	}
	if usr.PasswordHash != nil {
		updates["password_hash"] = usr.PasswordHash
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}

	res := repo.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", usr.ID).Updates(updates)
	if res.Error != nil {
		return user.User{}, errors.Wrap(res.Error, "updating user")
	}
	if res.RowsAffected == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo userRepository) SetUserLastLogin(ctx context.Context, id int, t time.Time) error {
	res := repo.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).Update("last_login", t)
	if res.Error != nil {
		return errors.Wrap(res.Error, "setting last login")
	}
	if res.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	if err := repo.db.WithContext(ctx).Delete(&userModel{}, ids).Error; err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
