package org

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var (
	ErrNotFound   = errors.New("organization not found")
	ErrNameExists = errors.New("an organization with this name already exists")
)

type (
	Repository interface {
		CheckOrgNameUniqueness(ctx context.Context, name string) error
		CreateOrg(ctx context.Context, o Organization) (Organization, error)
		QueryAllOrgs(ctx context.Context) ([]Organization, error)
		GetOrgByID(ctx context.Context, id int) (Organization, error)
		UpdateOrg(ctx context.Context, o Organization, isActive *bool) (Organization, error)
		DeleteOrgsByID(ctx context.Context, ids ...int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckUniqueness(name string) error {
	if err := svc.repo.CheckOrgNameUniqueness(context.Background(), name); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, no NewOrganization) (Organization, error) {
	now := time.Now().UTC()
	o := Organization{
		Name:      no.Name,
		Email:     no.Email,
		Phone:     no.Phone,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateOrg(ctx, o)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Organization, error) {
	return svc.repo.QueryAllOrgs(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Organization, error) {
	return svc.repo.GetOrgByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id int, uo UpdateOrganization) (Organization, error) {
	o := Organization{
		ID:        id,
		Name:      uo.Name,
		Email:     uo.Email,
		Phone:     uo.Phone,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateOrg(ctx, o, uo.IsActive)
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteOrgsByID(ctx, ids...)
}
