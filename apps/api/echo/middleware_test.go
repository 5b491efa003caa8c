package echoapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/org"
	"github.com/darasahq/darasa/core/user"
)

// staffCtx holds a provisioned sub-admin: role-derived permission
// (Course Management, Create Course) plus direct grant
// (User Management, Add User).
type staffCtx struct {
	org      int
	role     access.Role
	subAdmin access.SubAdmin
	token    string
}

func provisionStaff(t *testing.T, env *testEnv) staffCtx {
	t.Helper()
	ctx := context.Background()

	o := env.createOrg(t, "acme")

	role, err := env.accessSvc.CreateRole(ctx, access.NewRole{
		Name:          "Course Editors",
		PermissionIDs: env.permissionIDs(t, [2]string{access.ModuleCourseManagement, "Create Course"}),
		OrgID:         o.ID,
	})
	require.NoError(t, err)

	sa, err := env.accessSvc.CreateSubAdmin(ctx, access.NewSubAdmin{
		Name:            "Staff One",
		Email:           "staff1@test.cd",
		Password:        "G0od#Pass!",
		PasswordConfirm: "G0od#Pass!",
		RoleID:          role.ID,
		PermissionIDs:   env.permissionIDs(t, [2]string{access.ModuleUserManagement, "Add User"}),
		OrgID:           o.ID,
	})
	require.NoError(t, err)

	usr, err := env.usrSvc.GetByID(ctx, sa.UserID)
	require.NoError(t, err)

	return staffCtx{
		org:      o.ID,
		role:     role,
		subAdmin: sa,
		token:    env.getToken(t, usr, sa.ID),
	}
}

func Test_gate_authenticationRequired(t *testing.T) {
	env := setup(t)

	badKeyAuth := newJWTAuth(testConfig())
	badKeyAuth.config.SigningKey = []byte("not-the-signing-key")
	admin := user.User{ID: 1, Role: user.RoleAdmin, OrgID: 1}
	forged, err := badKeyAuth.generateToken(badKeyAuth.claimsFor(admin, 0))
	require.NoError(t, err)

	tests := []httpTest{
		{
			name: "no token", path: "/v1/users",
			wantCode: http.StatusUnauthorized, wantErr: "missing or malformed jwt", wantKind: codeUnauthenticated,
		},
		{
			name: "garbage token", path: "/v1/users", token: "lol.o.lol",
			wantCode: http.StatusUnauthorized, wantKind: codeUnauthenticated,
		},
		{
			name: "wrong signing key", path: "/v1/users", token: forged,
			wantCode: http.StatusUnauthorized, wantKind: codeUnauthenticated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkError(t, tt, env.do(tt))
		})
	}
}

func Test_gate_roleAllowList(t *testing.T) {
	env := setup(t)
	o := env.createOrg(t, "acme")

	superAdmin := env.createUser(t, "Root", "rooter", "root@test.cd", user.RoleSuperAdmin, 0)
	admin := env.createUser(t, "Admin", "admine", "admin@test.cd", user.RoleAdmin, o.ID)
	learner := env.createUser(t, "Learner", "learner", "learner@test.cd", user.RoleUser, o.ID)

	// /v1/users allows {admin, superAdmin} only
	tests := []httpTest{
		{name: "user rejected", path: "/v1/users", token: env.getToken(t, learner, 0),
			wantCode: http.StatusForbidden, wantErr: "role not allowed", wantKind: codeRoleNotAllowed},
		{name: "admin allowed", path: "/v1/users", token: env.getToken(t, admin, 0), wantCode: http.StatusOK},
		{name: "superAdmin allowed", path: "/v1/users", token: env.getToken(t, superAdmin, 0), wantCode: http.StatusOK},
		{name: "no role claim rejected", path: "/v1/users", token: env.getToken(t, user.User{ID: learner.ID}, 0),
			wantCode: http.StatusForbidden, wantKind: codeRoleNotAllowed},
		// staff routes allow subadmin only
		{name: "admin rejected from staff route", path: "/v1/staff/courses", token: env.getToken(t, admin, 0),
			wantCode: http.StatusForbidden, wantKind: codeRoleNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkError(t, tt, env.do(tt))
		})
	}
}

func Test_gate_permissionUnion(t *testing.T) {
	env := setup(t)
	staff := provisionStaff(t, env)

	// role-derived grant
	rec := env.do(httpTest{
		method: http.MethodPost, path: "/v1/staff/courses", token: staff.token,
		body: marshalObj(t, map[string]string{"title": "Intro to Go"}),
	})
	assert.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	// direct grant
	rec = env.do(httpTest{
		method: http.MethodPost, path: "/v1/staff/users", token: staff.token,
		body: marshalObj(t, map[string]string{
			"name":             "New Learner",
			"email":            "newlearner@test.cd",
			"password":         "G0od#Pass!",
			"password_confirm": "G0od#Pass!",
		}),
	})
	assert.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	// any third pair fails
	checkError(t,
		httpTest{wantCode: http.StatusForbidden, wantErr: "permission denied", wantKind: codePermissionDenied},
		env.do(httpTest{method: http.MethodDelete, path: "/v1/staff/courses/1", token: staff.token}))
}

func Test_gate_enrichmentMissing(t *testing.T) {
	env := setup(t)
	staff := provisionStaff(t, env)

	// backing records gone but tokens still valid
	ghostAdmin := env.getToken(t, user.User{ID: 7001, Role: user.RoleAdmin, OrgID: 9999}, 0)
	ghostSuper := env.getToken(t, user.User{ID: 9999, Role: user.RoleSuperAdmin}, 0)
	ghostStaff := env.getToken(t, user.User{ID: 7002, Role: user.RoleSubAdmin, OrgID: staff.org}, 9999)

	tests := []httpTest{
		{name: "Admin not found", path: "/v1/courses", token: ghostAdmin,
			wantCode: http.StatusForbidden, wantErr: "Admin not found", wantKind: codeEnrichmentMissing},
		{name: "SuperAdmin not found", path: "/v1/orgs", token: ghostSuper,
			wantCode: http.StatusForbidden, wantErr: "SuperAdmin not found", wantKind: codeEnrichmentMissing},
		{name: "SubAdmin not found", path: "/v1/staff/courses", token: ghostStaff,
			wantCode: http.StatusForbidden, wantErr: "SubAdmin not found", wantKind: codeEnrichmentMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkError(t, tt, env.do(tt))
		})
	}
}

// A token stays cryptographically valid after its backing account is
// deactivated; enrichment is where the deactivation must bite.
func Test_gate_deactivatedAccountRejected(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	deactivated := httpTest{
		wantCode: http.StatusForbidden, wantErr: "account deactivated", wantKind: codeEnrichmentMissing,
	}

	t.Run("admin", func(t *testing.T) {
		o := env.createOrg(t, "deact-adm")
		admin := env.createUser(t, "Deact Admin", "deactadm", "deactadm@test.cd", user.RoleAdmin, o.ID)
		token := env.getToken(t, admin, 0)

		get := httpTest{path: "/v1/users", token: token}
		require.Equal(t, http.StatusOK, env.do(get).Code)

		_, err := env.usrSvc.Update(ctx, admin.ID, user.UpdateUser{IsActive: new(bool)})
		require.NoError(t, err)
		checkError(t, deactivated, env.do(get))
	})

	t.Run("admin of a deactivated org", func(t *testing.T) {
		o := env.createOrg(t, "deact-org")
		admin := env.createUser(t, "Org Admin", "orgadm", "orgadm@test.cd", user.RoleAdmin, o.ID)
		token := env.getToken(t, admin, 0)

		get := httpTest{path: "/v1/users", token: token}
		require.Equal(t, http.StatusOK, env.do(get).Code)

		inactive := false
		_, err := env.orgSvc.Update(ctx, o.ID, org.UpdateOrganization{IsActive: &inactive})
		require.NoError(t, err)
		checkError(t, deactivated, env.do(get))
	})

	t.Run("superAdmin", func(t *testing.T) {
		root := env.createUser(t, "Deact Root", "deactroot", "deactroot@test.cd", user.RoleSuperAdmin, 0)
		token := env.getToken(t, root, 0)

		get := httpTest{path: "/v1/orgs", token: token}
		require.Equal(t, http.StatusOK, env.do(get).Code)

		_, err := env.usrSvc.Update(ctx, root.ID, user.UpdateUser{IsActive: new(bool)})
		require.NoError(t, err)
		checkError(t, deactivated, env.do(get))
	})

	t.Run("subAdmin", func(t *testing.T) {
		staff := provisionStaff(t, env)

		get := httpTest{path: "/v1/staff/courses", token: staff.token}

		_, err := env.usrSvc.Update(ctx, staff.subAdmin.UserID, user.UpdateUser{IsActive: new(bool)})
		require.NoError(t, err)
		checkError(t, deactivated, env.do(get))
	})
}

// A permission revoked between two requests takes effect on the second one;
// nothing is cached across requests.
func Test_gate_revocationVisibleOnNextRequest(t *testing.T) {
	env := setup(t)
	staff := provisionStaff(t, env)

	post := httpTest{
		method: http.MethodPost, path: "/v1/staff/courses", token: staff.token,
		body: marshalObj(t, map[string]string{"title": "Lifecycle of a Grant"}),
	}
	rec := env.do(post)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	// swap Create Course out of the role
	_, err := env.accessSvc.UpdateRole(context.Background(), staff.role.ID, access.UpdateRole{
		Name:          staff.role.Name,
		PermissionIDs: env.permissionIDs(t, [2]string{access.ModuleCourseManagement, "View Courses"}),
	})
	require.NoError(t, err)

	post.body = marshalObj(t, map[string]string{"title": "After the Revocation"})
	checkError(t,
		httpTest{wantCode: http.StatusForbidden, wantKind: codePermissionDenied},
		env.do(post))
}

// CheckPermission never passes a principal that is not a sub-admin, whatever
// the context holds.
func Test_gate_permissionCheckSubAdminExclusive(t *testing.T) {
	env := setup(t)
	gate := newGate(env.usrSvc, env.orgSvc, env.accessSvc)

	next := func(ctx echo.Context) error { return ctx.NoContent(http.StatusOK) }
	handler := gate.requirePermission(access.ModuleCourseManagement, "Create Course")(next)

	for _, role := range []user.Role{user.RoleUser, user.RoleAdmin, user.RoleSuperAdmin} {
		t.Run(string(role), func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			ctx := e.NewContext(req, httptest.NewRecorder())
			ctx.Set("userToken", &jwt.Token{Claims: &Claims{Role: role}})
			// even with a permission list planted in the context
			ctx.Set(contextPermsKey, []access.Permission{{Module: access.ModuleCourseManagement, Action: "Create Course"}})

			err := handler(ctx)
			assert.Equal(t, errPermissionDenied, err)
		})
	}
}
