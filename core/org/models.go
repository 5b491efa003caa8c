package org

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Organization is a tenant. Admin accounts, sub-admins, courses, billing and
// bookings all hang off exactly one organization.
type Organization struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewOrganization contains information needed to onboard an Organization.
type NewOrganization struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty"`
}

func (no *NewOrganization) Validate(validate *validator.Validate, svc *Service) error {
	no.Name = core.CleanString(no.Name)
	no.Email = core.CleanString(no.Email, true /* lower */)
	no.Phone = core.CleanString(no.Phone)

	if err := validate.Struct(no); err != nil {
		return err
	}
	return svc.CheckUniqueness(no.Name)
}

// UpdateOrganization defines what may be modified on an existing Organization.
type UpdateOrganization struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	IsActive *bool  `json:"is_active"`
}

func (uo *UpdateOrganization) Validate(validate *validator.Validate, orig Organization, svc *Service) error {
	if name := core.CleanString(uo.Name); name != "" {
		uo.Name = name
	} else {
		uo.Name = orig.Name
	}
	if email := core.CleanString(uo.Email, true /* lower */); email != "" {
		uo.Email = email
	} else {
		uo.Email = orig.Email
	}
	uo.Phone = core.CleanString(uo.Phone)

	if err := validate.Struct(uo); err != nil {
		return err
	}
	if uo.Name != orig.Name {
		return svc.CheckUniqueness(uo.Name)
	}
	return nil
}
