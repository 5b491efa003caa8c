package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/darasahq/darasa/core/org"
)

type orgModel struct {
	ID        int       `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	Email     string    `gorm:"column:email"`
	Phone     string    `gorm:"column:phone"`
	IsActive  bool      `gorm:"column:is_active"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (orgModel) TableName() string { return "organizations" }

func (m orgModel) org() org.Organization {
	return org.Organization{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type orgRepository struct {
	db *gorm.DB
}

var _ org.Repository = (*orgRepository)(nil)

func NewOrgRepository(db *gorm.DB) *orgRepository {
	return &orgRepository{db: db}
}

func (repo orgRepository) CheckOrgNameUniqueness(ctx context.Context, name string) error {
	var count int64
	err := repo.db.WithContext(ctx).Model(&orgModel{}).Where("name = ?", name).Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "checking org uniqueness")
	}
	if count > 0 {
		return org.ErrNameExists
	}
	return nil
}

func (repo orgRepository) CreateOrg(ctx context.Context, o org.Organization) (org.Organization, error) {
	m := orgModel{
		Name:      o.Name,
		Email:     o.Email,
		Phone:     o.Phone,
		IsActive:  o.IsActive,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if err := repo.db.WithContext(ctx).Create(&m).Error; err != nil {
		return org.Organization{}, errors.Wrap(err, "inserting organization")
	}
	return m.org(), nil
}

func (repo orgRepository) QueryAllOrgs(ctx context.Context) ([]org.Organization, error) {
	var rows []orgModel
	if err := repo.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying organizations")
	}
	orgs := make([]org.Organization, 0, len(rows))
	for _, r := range rows {
		orgs = append(orgs, r.org())
	}
	return orgs, nil
}

func (repo orgRepository) GetOrgByID(ctx context.Context, id int) (org.Organization, error) {
	var m orgModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return org.Organization{}, org.ErrNotFound
		}
		return org.Organization{}, errors.Wrap(err, "getting organization")
	}
	return m.org(), nil
}

func (repo orgRepository) UpdateOrg(ctx context.Context, o org.Organization, isActive *bool) (org.Organization, error) {
	updates := map[string]interface{}{"updated_at": o.UpdatedAt}
	if o.Name != "" {
		updates["name"] = o.Name
	}
	if o.Email != "" {
		updates["email"] = o.Email
	}
	if o.Phone != "" {
		updates["phone"] = o.Phone
	}
	if isActive != nil {
		updates["is_active"] = *isActive
	}

	res := repo.db.WithContext(ctx).Model(&orgModel{}).Where("id = ?", o.ID).Updates(updates)
	if res.Error != nil {
		return org.Organization{}, errors.Wrap(res.Error, "updating organization")
	}
	if res.RowsAffected == 0 {
		return org.Organization{}, org.ErrNotFound
	}
	return repo.GetOrgByID(ctx, o.ID)
}

func (repo orgRepository) DeleteOrgsByID(ctx context.Context, ids ...int) error {
	if err := repo.db.WithContext(ctx).Delete(&orgModel{}, ids).Error; err != nil {
		return errors.Wrap(err, "deleting organizations")
	}
	return nil
}
