package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/user"
)

func Test_accessApi_queryPermissions(t *testing.T) {
	env := setup(t)
	o := env.createOrg(t, "acme")
	admin := env.createUser(t, "Admin", "admine", "admin@test.cd", user.RoleAdmin, o.ID)

	rec := env.do(httpTest{path: "/v1/access/permissions", token: env.getToken(t, admin, 0)})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var perms []access.Permission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &perms))
	require.Len(t, perms, len(access.Catalog()))

	// pair uniqueness holds in the seeded catalog
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		_, dup := seen[p.Key()]
		assert.False(t, dup, "duplicate pair (%s, %s)", p.Module, p.Action)
		seen[p.Key()] = struct{}{}
	}
}

func Test_accessApi_roles(t *testing.T) {
	env := setup(t)
	o := env.createOrg(t, "acme")
	o2 := env.createOrg(t, "globex")
	admin := env.createUser(t, "Admin", "admine", "admin@test.cd", user.RoleAdmin, o.ID)
	admin2 := env.createUser(t, "Other", "otherr", "other@test.cd", user.RoleAdmin, o2.ID)

	token := env.getToken(t, admin, 0)
	permIDs := env.permissionIDs(t,
		[2]string{access.ModuleCourseManagement, "Create Course"},
		[2]string{access.ModuleCourseManagement, "View Courses"},
	)

	var created access.Role
	t.Run("create", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPost, path: "/v1/access/roles", token: token,
			body: marshalObj(t, access.NewRole{Name: "Course Editors", PermissionIDs: permIDs}),
		})
		require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, o.ID, created.OrgID)
		assert.Len(t, created.Permissions, 2)
	})

	t.Run("duplicate name within org", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPost, path: "/v1/access/roles", token: token,
			body: marshalObj(t, access.NewRole{Name: "Course Editors", PermissionIDs: permIDs}),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", rec.Body.String())

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body, "name")
	})

	t.Run("same name allowed in another org", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPost, path: "/v1/access/roles", token: env.getToken(t, admin2, 0),
			body: marshalObj(t, access.NewRole{Name: "Course Editors", PermissionIDs: permIDs}),
		})
		assert.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	})

	t.Run("unknown permission id", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPost, path: "/v1/access/roles", token: token,
			body: marshalObj(t, access.NewRole{Name: "Bogus", PermissionIDs: []int{99999}}),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", rec.Body.String())

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body, "permission_ids")
	})

	t.Run("empty permission list rejected", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPost, path: "/v1/access/roles", token: token,
			body: marshalObj(t, access.NewRole{Name: "Empty"}),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", rec.Body.String())
	})

	t.Run("hidden from other orgs", func(t *testing.T) {
		checkError(t, httpTest{wantCode: http.StatusNotFound, wantErr: "not found"},
			env.do(httpTest{path: fmt.Sprintf("/v1/access/roles/%d", created.ID), token: env.getToken(t, admin2, 0)}))
	})

	t.Run("update replaces permissions", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPut, path: fmt.Sprintf("/v1/access/roles/%d", created.ID), token: token,
			body: marshalObj(t, access.UpdateRole{
				Name:          "Course Admins",
				PermissionIDs: env.permissionIDs(t, [2]string{access.ModuleCourseManagement, "Delete Course"}),
			}),
		})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		var got access.Role
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "Course Admins", got.Name)
		require.Len(t, got.Permissions, 1)
		assert.True(t, got.Permissions[0].Matches(access.ModuleCourseManagement, "Delete Course"))
	})

	t.Run("destroy", func(t *testing.T) {
		rec := env.do(httpTest{method: http.MethodDelete, path: fmt.Sprintf("/v1/access/roles/%d", created.ID), token: token})
		require.Equal(t, http.StatusNoContent, rec.Code, "body: %s", rec.Body.String())

		checkError(t, httpTest{wantCode: http.StatusNotFound, wantErr: "not found"},
			env.do(httpTest{path: fmt.Sprintf("/v1/access/roles/%d", created.ID), token: token}))
	})
}

func Test_accessApi_subAdmins(t *testing.T) {
	env := setup(t)
	o := env.createOrg(t, "acme")
	o2 := env.createOrg(t, "globex")
	admin := env.createUser(t, "Admin", "admine", "admin@test.cd", user.RoleAdmin, o.ID)
	admin2 := env.createUser(t, "Other", "otherr", "other@test.cd", user.RoleAdmin, o2.ID)

	token := env.getToken(t, admin, 0)

	role, err := env.accessSvc.CreateRole(context.Background(), access.NewRole{
		Name:          "Billing Clerks",
		PermissionIDs: env.permissionIDs(t, [2]string{access.ModuleBillingManagement, "View Invoices"}),
		OrgID:         o.ID,
	})
	require.NoError(t, err)

	foreignRole, err := env.accessSvc.CreateRole(context.Background(), access.NewRole{
		Name:          "Billing Clerks",
		PermissionIDs: env.permissionIDs(t, [2]string{access.ModuleBillingManagement, "View Invoices"}),
		OrgID:         o2.ID,
	})
	require.NoError(t, err)

	newSubAdmin := func(email string, roleID int, permIDs []int) []byte {
		return marshalObj(t, access.NewSubAdmin{
			Name:            "Clerk",
			Email:           email,
			Password:        "G0od#Pass!",
			PasswordConfirm: "G0od#Pass!",
			RoleID:          roleID,
			PermissionIDs:   permIDs,
		})
	}

	var created access.SubAdmin
	t.Run("create with role and direct grant", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPost, path: "/v1/access/sub-admins", token: token,
			body: newSubAdmin("clerk@test.cd", role.ID,
				env.permissionIDs(t, [2]string{access.ModuleBillingManagement, "Initiate Payment"})),
		})
		require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, o.ID, created.OrgID)
		assert.NotZero(t, created.UserID)
		assert.Equal(t, role.ID, created.RoleID)
		assert.Len(t, created.EffectivePermissions(), 2)

		// the backing account was created alongside
		usr, err := env.usrSvc.GetByID(context.Background(), created.UserID)
		require.NoError(t, err)
		assert.Equal(t, user.RoleSubAdmin, usr.Role)
	})

	t.Run("unknown role id", func(t *testing.T) {
		checkError(t, httpTest{wantCode: http.StatusBadRequest, wantErr: "role not found"},
			env.do(httpTest{
				method: http.MethodPost, path: "/v1/access/sub-admins", token: token,
				body: newSubAdmin("clerk2@test.cd", 99999, nil),
			}))
	})

	t.Run("role from another org", func(t *testing.T) {
		checkError(t, httpTest{wantCode: http.StatusBadRequest, wantErr: "role not found"},
			env.do(httpTest{
				method: http.MethodPost, path: "/v1/access/sub-admins", token: token,
				body: newSubAdmin("clerk3@test.cd", foreignRole.ID, nil),
			}))
	})

	t.Run("hidden from other orgs", func(t *testing.T) {
		checkError(t, httpTest{wantCode: http.StatusNotFound, wantErr: "not found"},
			env.do(httpTest{path: fmt.Sprintf("/v1/access/sub-admins/%d", created.ID), token: env.getToken(t, admin2, 0)}))
	})

	t.Run("replace direct grants", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPut, path: fmt.Sprintf("/v1/access/sub-admins/%d", created.ID), token: token,
			body: marshalObj(t, access.UpdateSubAdminAccess{
				PermissionIDs: env.permissionIDs(t,
					[2]string{access.ModuleBookingManagement, "View Bookings"},
					[2]string{access.ModuleBookingManagement, "Cancel Booking"},
				),
			}),
		})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		var got access.SubAdmin
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got.Permissions, 2)
		assert.Equal(t, role.ID, got.RoleID) // role untouched
	})

	t.Run("clear role reference", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPut, path: fmt.Sprintf("/v1/access/sub-admins/%d", created.ID), token: token,
			body: marshalObj(t, access.UpdateSubAdminAccess{RoleID: new(int)}),
		})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		var got access.SubAdmin
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Zero(t, got.RoleID)
		assert.Nil(t, got.Role)
	})

	t.Run("query", func(t *testing.T) {
		rec := env.do(httpTest{path: "/v1/access/sub-admins", token: token})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		var sas []access.SubAdmin
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sas))
		assert.Len(t, sas, 1)
	})

	t.Run("destroy", func(t *testing.T) {
		rec := env.do(httpTest{method: http.MethodDelete, path: fmt.Sprintf("/v1/access/sub-admins/%d", created.ID), token: token})
		require.Equal(t, http.StatusNoContent, rec.Code, "body: %s", rec.Body.String())
	})
}
