package access_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/user"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

func newTestService(t *testing.T) *access.Service {
	t.Helper()
	db := inmemdb.NewDB()
	usrSvc := user.NewService(&core.Config{}, inmemdb.NewUserRepository(db), nil)
	svc := access.NewService(inmemdb.NewAccessRepository(db), usrSvc)
	require.NoError(t, svc.SeedPermissions(context.Background()))
	return svc
}

func permIDs(t *testing.T, svc *access.Service, pairs ...[2]string) []int {
	t.Helper()
	perms, err := svc.Permissions(context.Background())
	require.NoError(t, err)

	var ids []int
	for _, pair := range pairs {
		var found bool
		for _, p := range perms {
			if p.Matches(pair[0], pair[1]) {
				ids = append(ids, p.ID)
				found = true
				break
			}
		}
		require.True(t, found, "permission (%s, %s) not seeded", pair[0], pair[1])
	}
	return ids
}

func TestService_SeedPermissions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	perms, err := svc.Permissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, len(access.Catalog()))

	// re-seeding inserts nothing new
	require.NoError(t, svc.SeedPermissions(ctx))
	perms, err = svc.Permissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, len(access.Catalog()))

	// ids are stable references
	seen := make(map[int]struct{}, len(perms))
	for _, p := range perms {
		require.NotZero(t, p.ID)
		_, dup := seen[p.ID]
		require.False(t, dup)
		seen[p.ID] = struct{}{}
	}
}

func TestSubAdmin_EffectivePermissions(t *testing.T) {
	a := access.Permission{ID: 1, Module: access.ModuleCourseManagement, Action: "Create Course"}
	b := access.Permission{ID: 2, Module: access.ModuleCourseManagement, Action: "View Courses"}
	c := access.Permission{ID: 3, Module: access.ModuleUserManagement, Action: "Add User"}

	tests := []struct {
		name string
		sa   access.SubAdmin
		want []access.Permission
	}{
		{name: "no role, no grants", sa: access.SubAdmin{}, want: nil},
		{name: "role only", sa: access.SubAdmin{Role: &access.Role{Permissions: []access.Permission{a, b}}},
			want: []access.Permission{a, b}},
		{name: "grants only", sa: access.SubAdmin{Permissions: []access.Permission{c}},
			want: []access.Permission{c}},
		{name: "union with overlap deduplicated", sa: access.SubAdmin{
			Role:        &access.Role{Permissions: []access.Permission{a, b}},
			Permissions: []access.Permission{b, c},
		}, want: []access.Permission{a, b, c}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sa.EffectivePermissions())
		})
	}
}

func TestService_CreateRole(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	role, err := svc.CreateRole(ctx, access.NewRole{
		Name:          "Editors",
		PermissionIDs: permIDs(t, svc, [2]string{access.ModuleCourseManagement, "Update Course"}),
		OrgID:         1,
	})
	require.NoError(t, err)
	require.Len(t, role.Permissions, 1)
	assert.True(t, role.Permissions[0].Matches(access.ModuleCourseManagement, "Update Course"))

	t.Run("name unique per org", func(t *testing.T) {
		err := svc.CheckRoleUniqueness(1, "Editors")
		_, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want *core.ValidationError, got %v", err)

		assert.NoError(t, svc.CheckRoleUniqueness(2, "Editors"))
		assert.NoError(t, svc.CheckRoleUniqueness(1, "Editors", role)) // self excluded
	})

	t.Run("unknown permission id", func(t *testing.T) {
		_, err := svc.CreateRole(ctx, access.NewRole{Name: "Bogus", PermissionIDs: []int{99999}, OrgID: 1})
		_, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want *core.ValidationError, got %v", err)
	})
}

// The effective set is resolved from storage on every read; role edits and
// deletions are visible immediately.
func TestService_GetSubAdmin_liveResolution(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	role, err := svc.CreateRole(ctx, access.NewRole{
		Name:          "Clerks",
		PermissionIDs: permIDs(t, svc, [2]string{access.ModuleBillingManagement, "View Invoices"}),
		OrgID:         1,
	})
	require.NoError(t, err)

	sa, err := svc.CreateSubAdmin(ctx, access.NewSubAdmin{
		Name:            "Clerk",
		Email:           "clerk@test.cd",
		Password:        "G0od#Pass!",
		PasswordConfirm: "G0od#Pass!",
		RoleID:          role.ID,
		PermissionIDs:   permIDs(t, svc, [2]string{access.ModuleBillingManagement, "Initiate Payment"}),
		OrgID:           1,
	})
	require.NoError(t, err)
	require.Len(t, sa.EffectivePermissions(), 2)

	// widen the role
	_, err = svc.UpdateRole(ctx, role.ID, access.UpdateRole{
		Name: role.Name,
		PermissionIDs: permIDs(t, svc,
			[2]string{access.ModuleBillingManagement, "View Invoices"},
			[2]string{access.ModuleBookingManagement, "View Bookings"},
		),
	})
	require.NoError(t, err)

	got, err := svc.GetSubAdmin(ctx, sa.ID)
	require.NoError(t, err)
	assert.Len(t, got.EffectivePermissions(), 3)

	// a deleted role leaves the reference dangling; resolution must fail
	// loudly rather than silently shrink the set
	require.NoError(t, svc.DeleteRoles(ctx, role.ID))
	_, err = svc.GetSubAdmin(ctx, sa.ID)
	assert.Equal(t, access.ErrPermissionUnresolved, errors.Cause(err))
}

func TestService_CreateSubAdmin_roleScoping(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	role, err := svc.CreateRole(ctx, access.NewRole{
		Name:          "Clerks",
		PermissionIDs: permIDs(t, svc, [2]string{access.ModuleBillingManagement, "View Invoices"}),
		OrgID:         1,
	})
	require.NoError(t, err)

	// another org cannot reference it
	_, err = svc.CreateSubAdmin(ctx, access.NewSubAdmin{
		Name:            "Intruder",
		Email:           "intruder@test.cd",
		Password:        "G0od#Pass!",
		PasswordConfirm: "G0od#Pass!",
		RoleID:          role.ID,
		OrgID:           2,
	})
	assert.Equal(t, access.ErrRoleNotFound, errors.Cause(err))
}
