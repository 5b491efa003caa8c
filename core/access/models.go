package access

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Permission modules. Matching is exact and case-sensitive; the seed catalog
// is the single source of these strings.
const (
	ModuleUserManagement        = "User Management"
	ModuleCourseManagement      = "Course Management"
	ModuleAssessmentManagement  = "Assessment Management"
	ModuleBillingManagement     = "Billing Management"
	ModuleBookingManagement     = "Booking Management"
	ModuleCertificateManagement = "Certificate Management"
)

// Permission is an atomic (module, action) capability. Reference data: seeded
// once, shared by many roles and sub-admins, never duplicated.
type Permission struct {
	ID     int    `json:"id"`
	Module string `json:"module"`
	Action string `json:"action"`
}

// Matches reports whether the permission grants the required pair.
func (p Permission) Matches(module, action string) bool {
	return p.Module == module && p.Action == action
}

// Key identifies a permission by its pair, for uniqueness checks.
func (p Permission) Key() string {
	return p.Module + "\x00" + p.Action
}

// Catalog returns the full permission seed set. SeedPermissions validates
// that no two entries encode the same (module, action) pair.
func Catalog() []Permission {
	return []Permission{
		{Module: ModuleUserManagement, Action: "Add User"},
		{Module: ModuleUserManagement, Action: "View Users"},
		{Module: ModuleUserManagement, Action: "Update User"},
		{Module: ModuleUserManagement, Action: "Delete User"},

		{Module: ModuleCourseManagement, Action: "Create Course"},
		{Module: ModuleCourseManagement, Action: "View Courses"},
		{Module: ModuleCourseManagement, Action: "Update Course"},
		{Module: ModuleCourseManagement, Action: "Delete Course"},
		{Module: ModuleCourseManagement, Action: "Manage Lessons"},
		{Module: ModuleCourseManagement, Action: "Enroll Learner"},

		{Module: ModuleAssessmentManagement, Action: "Create Assessment"},
		{Module: ModuleAssessmentManagement, Action: "View Assessments"},
		{Module: ModuleAssessmentManagement, Action: "Grade Submission"},
		{Module: ModuleAssessmentManagement, Action: "Delete Assessment"},

		{Module: ModuleBillingManagement, Action: "View Invoices"},
		{Module: ModuleBillingManagement, Action: "Initiate Payment"},

		{Module: ModuleBookingManagement, Action: "Create Booking"},
		{Module: ModuleBookingManagement, Action: "View Bookings"},
		{Module: ModuleBookingManagement, Action: "Cancel Booking"},

		{Module: ModuleCertificateManagement, Action: "Issue Certificate"},
		{Module: ModuleCertificateManagement, Action: "View Certificates"},
	}
}

// Role is a named, organization-scoped bundle of permissions assignable to
// sub-admins. Names are unique per organization.
type Role struct {
	ID          int          `json:"id"`
	OrgID       int          `json:"org_id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
}

// SubAdmin is an organization-scoped staff profile with delegated access:
// zero-or-one role reference plus ad-hoc direct grants. The effective set is
// the union of both, never an override.
type SubAdmin struct {
	ID          int          `json:"id"`
	OrgID       int          `json:"org_id"`
	UserID      int          `json:"user_id"`
	RoleID      int          `json:"role_id,omitempty"` // 0 = no role assigned
	Role        *Role        `json:"role,omitempty"`    // resolved reference
	Permissions []Permission `json:"permissions"`       // resolved direct grants
	CreatedAt   time.Time    `json:"created_at"`        // UTC
	UpdatedAt   time.Time    `json:"updated_at"`        // UTC
}

// EffectivePermissions returns the deduplicated union of role-derived
// permissions and direct grants.
func (sa SubAdmin) EffectivePermissions() []Permission {
	seen := make(map[string]struct{})
	var perms []Permission
	add := func(list []Permission) {
		for _, p := range list {
			if _, ok := seen[p.Key()]; ok {
				continue
			}
			seen[p.Key()] = struct{}{}
			perms = append(perms, p)
		}
	}
	if sa.Role != nil {
		add(sa.Role.Permissions)
	}
	add(sa.Permissions)
	return perms
}

// NewRole contains information needed to create a Role.
type NewRole struct {
	Name          string `json:"name" validate:"required"`
	PermissionIDs []int  `json:"permission_ids" validate:"required,min=1"`
	OrgID         int    `json:"-"`
}

func (nr *NewRole) Validate(validate *validator.Validate, svc *Service) error {
	nr.Name = core.CleanString(nr.Name)
	if err := validate.Struct(nr); err != nil {
		return err
	}
	return svc.CheckRoleUniqueness(nr.OrgID, nr.Name)
}

// UpdateRole replaces a Role's name and/or permission list.
type UpdateRole struct {
	Name          string `json:"name"`
	PermissionIDs []int  `json:"permission_ids"`
}

func (ur *UpdateRole) Validate(validate *validator.Validate, orig Role, svc *Service) error {
	if name := core.CleanString(ur.Name); name != "" {
		ur.Name = name
	} else {
		ur.Name = orig.Name
	}
	if err := validate.Struct(ur); err != nil {
		return err
	}
	if ur.Name != orig.Name {
		return svc.CheckRoleUniqueness(orig.OrgID, ur.Name)
	}
	return nil
}

// NewSubAdmin creates the staff account and its access profile together.
type NewSubAdmin struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	RoleID          int    `json:"role_id"`
	PermissionIDs   []int  `json:"permission_ids"`
	OrgID           int    `json:"-"`
}

func (ns *NewSubAdmin) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

// UpdateSubAdminAccess replaces (never merges) the role reference and/or the
// direct permission list of a sub-admin.
type UpdateSubAdminAccess struct {
	RoleID        *int  `json:"role_id"`
	PermissionIDs []int `json:"permission_ids"`
}
