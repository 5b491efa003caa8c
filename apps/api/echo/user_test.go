package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core/user"
)

func parseClaims(t *testing.T, env *testEnv, token string) *Claims {
	t.Helper()
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return env.conf.SecretKey, nil
	})
	require.NoError(t, err)
	return claims
}

func loginToken(t *testing.T, env *testEnv, rec interface{ Result() *http.Response }) string {
	t.Helper()
	var resp LoginResponse
	require.NoError(t, json.NewDecoder(rec.Result().Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	o := env.createOrg(t, "acme")
	admin := env.createUser(t, "Admin", "admine", "admin@test.cd", user.RoleAdmin, o.ID)

	ghost := env.createUser(t, "Ghost", "ghosty", "ghost@test.cd", user.RoleUser, o.ID)
	_, err := env.usrSvc.Update(context.Background(), ghost.ID, user.UpdateUser{IsActive: new(bool)})
	require.NoError(t, err)

	loginBody := func(uname, pwd string) []byte {
		return marshalObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{name: "empty credentials", body: loginBody("", ""), wantCode: http.StatusBadRequest},
		{name: "unknown user", body: loginBody("whodis", "G0od#Pass!"),
			wantCode: http.StatusBadRequest, wantErr: "authentication failed"},
		{name: "wrong password", body: loginBody("admine", "B@d#Pass!"),
			wantCode: http.StatusBadRequest, wantErr: "authentication failed"},
		{name: "deactivated account", body: loginBody("ghosty", "G0od#Pass!"),
			wantCode: http.StatusForbidden, wantErr: "account deactivated"},
		{name: "by username", body: loginBody("admine", "G0od#Pass!"), wantCode: http.StatusOK},
		{name: "by email, case-insensitive", body: loginBody("Admin@Test.CD", "G0od#Pass!"), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt)
			if tt.wantCode != http.StatusOK {
				checkError(t, tt, rec)
				return
			}
			require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
			claims := parseClaims(t, env, loginToken(t, env, rec))
			assert.Equal(t, fmt.Sprint(admin.ID), claims.Subject)
			assert.Equal(t, user.RoleAdmin, claims.Role)
			assert.Equal(t, o.ID, claims.OrgID)
			assert.Zero(t, claims.SubAdminID)
		})
	}
}

// A sub-admin's token carries their profile id, resolved at login.
func Test_userApi_login_subAdminProfile(t *testing.T) {
	env := setup(t)
	staff := provisionStaff(t, env)

	rec := env.do(httpTest{
		method: http.MethodPost, path: "/v1/users/login",
		body: marshalObj(t, LoginRequest{Username: "staff1@test.cd", Password: "G0od#Pass!"}),
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	claims := parseClaims(t, env, loginToken(t, env, rec))
	assert.Equal(t, user.RoleSubAdmin, claims.Role)
	assert.Equal(t, staff.subAdmin.ID, claims.SubAdminID)
	assert.Equal(t, staff.org, claims.OrgID)
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)
	o := env.createOrg(t, "acme")
	usr := env.createUser(t, "Learner", "learner", "learner@test.cd", user.RoleUser, o.ID)

	refresh := func(token string) httpTest {
		return httpTest{method: http.MethodPost, path: "/v1/users/token-refresh", token: token}
	}

	t.Run("ok", func(t *testing.T) {
		oriat := time.Now().Add(-30 * time.Minute).Unix()
		token, err := env.auth.generateToken(env.auth.claimsFor(usr, 0, oriat))
		require.NoError(t, err)

		rec := env.do(refresh(token))
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		// the original issue time survives the refresh
		claims := parseClaims(t, env, loginToken(t, env, rec))
		assert.Equal(t, oriat, claims.OrigIssuedAt)
	})

	t.Run("refresh window expired", func(t *testing.T) {
		oriat := time.Now().Add(-env.conf.Server.JWTRefreshExpirationDelta - time.Minute).Unix()
		token, err := env.auth.generateToken(env.auth.claimsFor(usr, 0, oriat))
		require.NoError(t, err)

		checkError(t, httpTest{wantCode: http.StatusForbidden, wantErr: "refresh has expired"}, env.do(refresh(token)))
	})

	t.Run("deactivated since issuance", func(t *testing.T) {
		token := env.getToken(t, usr, 0)
		_, err := env.usrSvc.Update(context.Background(), usr.ID, user.UpdateUser{IsActive: new(bool)})
		require.NoError(t, err)

		checkError(t, httpTest{wantCode: http.StatusForbidden, wantErr: "account deactivated"}, env.do(refresh(token)))
	})
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)
	o := env.createOrg(t, "acme")
	usr := env.createUser(t, "Learner", "learner", "learner@test.cd", user.RoleUser, o.ID)

	rec := env.do(httpTest{path: "/v1/users/me", token: env.getToken(t, usr, 0)})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var got user.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, usr.ID, got.ID)
	assert.Equal(t, usr.Email, got.Email)
}

func Test_userApi_register(t *testing.T) {
	env := setup(t)
	o1 := env.createOrg(t, "acme")
	o2 := env.createOrg(t, "globex")
	superAdmin := env.createUser(t, "Root", "rooter", "root@test.cd", user.RoleSuperAdmin, 0)
	admin := env.createUser(t, "Admin", "admine", "admin@test.cd", user.RoleAdmin, o1.ID)

	newUserBody := func(email string, role user.Role, orgID int) []byte {
		return marshalObj(t, user.NewUser{
			Name:            "New Person",
			Email:           email,
			Password:        "G0od#Pass!",
			PasswordConfirm: "G0od#Pass!",
			Role:            role,
			OrgID:           orgID,
		})
	}

	t.Run("admin pinned to own org", func(t *testing.T) {
		// org_id in the payload is ignored for admins
		rec := env.do(httpTest{
			method: http.MethodPost, path: "/v1/users/register", token: env.getToken(t, admin, 0),
			body: newUserBody("pinned@test.cd", user.RoleUser, o2.ID),
		})
		require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

		var got user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, o1.ID, got.OrgID)
		assert.True(t, got.IsActive)
	})

	t.Run("admin cannot mint super admins", func(t *testing.T) {
		checkError(t, httpTest{wantCode: http.StatusForbidden, wantErr: "permission denied"},
			env.do(httpTest{
				method: http.MethodPost, path: "/v1/users/register", token: env.getToken(t, admin, 0),
				body: newUserBody("root2@test.cd", user.RoleSuperAdmin, 0),
			}))
	})

	t.Run("super admin picks the org", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPost, path: "/v1/users/register", token: env.getToken(t, superAdmin, 0),
			body: newUserBody("globexadmin@test.cd", user.RoleAdmin, o2.ID),
		})
		require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

		var got user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, o2.ID, got.OrgID)
		assert.Equal(t, user.RoleAdmin, got.Role)
	})

	t.Run("password policy enforced", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPost, path: "/v1/users/register", token: env.getToken(t, admin, 0),
			body: marshalObj(t, user.NewUser{
				Name: "Weak", Email: "weak@test.cd",
				Password: "1234", PasswordConfirm: "1234",
			}),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", rec.Body.String())
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPost, path: "/v1/users/register", token: env.getToken(t, admin, 0),
			body: newUserBody(admin.Email, user.RoleUser, 0),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", rec.Body.String())
	})
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)
	o1 := env.createOrg(t, "acme")
	o2 := env.createOrg(t, "globex")
	superAdmin := env.createUser(t, "Root", "rooter", "root@test.cd", user.RoleSuperAdmin, 0)
	admin := env.createUser(t, "Admin", "admine", "admin@test.cd", user.RoleAdmin, o1.ID)
	env.createUser(t, "Ben", "benben", "ben@test.cd", user.RoleUser, o1.ID)
	env.createUser(t, "Abe", "abeabe", "abe@test.cd", user.RoleUser, o1.ID)
	env.createUser(t, "Cat", "catcat", "cat@test.cd", user.RoleUser, o2.ID)

	queryUsers := func(t *testing.T, path, token string) []user.User {
		t.Helper()
		rec := env.do(httpTest{path: path, token: token})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
		var users []user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
		return users
	}

	t.Run("admin sees own org only", func(t *testing.T) {
		users := queryUsers(t, "/v1/users", env.getToken(t, admin, 0))
		require.Len(t, users, 3) // admin + 2 learners
		for _, u := range users {
			assert.Equal(t, o1.ID, u.OrgID)
		}
	})

	t.Run("super admin sees all", func(t *testing.T) {
		users := queryUsers(t, "/v1/users", env.getToken(t, superAdmin, 0))
		assert.Len(t, users, 5)
	})

	t.Run("role filter", func(t *testing.T) {
		users := queryUsers(t, "/v1/users?role=user", env.getToken(t, admin, 0))
		require.Len(t, users, 2)
		for _, u := range users {
			assert.Equal(t, user.RoleUser, u.Role)
		}
	})

	t.Run("descending name ordering", func(t *testing.T) {
		users := queryUsers(t, "/v1/users?role=user&ordering=-name", env.getToken(t, admin, 0))
		require.Len(t, users, 2)
		assert.Equal(t, "Ben", users[0].Name)
		assert.Equal(t, "Abe", users[1].Name)
	})
}

func Test_userApi_retrieveUpdateDestroy(t *testing.T) {
	env := setup(t)
	o1 := env.createOrg(t, "acme")
	o2 := env.createOrg(t, "globex")
	admin := env.createUser(t, "Admin", "admine", "admin@test.cd", user.RoleAdmin, o1.ID)
	learner := env.createUser(t, "Learner", "learner", "learner@test.cd", user.RoleUser, o1.ID)
	outsider := env.createUser(t, "Outsider", "outsider", "outsider@test.cd", user.RoleUser, o2.ID)

	token := env.getToken(t, admin, 0)

	t.Run("retrieve", func(t *testing.T) {
		rec := env.do(httpTest{path: fmt.Sprintf("/v1/users/%d", learner.ID), token: token})
		assert.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	})

	t.Run("other org hidden", func(t *testing.T) {
		checkError(t, httpTest{wantCode: http.StatusNotFound, wantErr: "not found"},
			env.do(httpTest{path: fmt.Sprintf("/v1/users/%d", outsider.ID), token: token}))
	})

	t.Run("bad id param", func(t *testing.T) {
		rec := env.do(httpTest{path: "/v1/users/nope", token: token})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update name", func(t *testing.T) {
		rec := env.do(httpTest{
			method: http.MethodPut, path: fmt.Sprintf("/v1/users/%d", learner.ID), token: token,
			body: marshalObj(t, map[string]string{"name": "Renamed Learner"}),
		})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		var got user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "Renamed Learner", got.Name)
		assert.Equal(t, learner.Email, got.Email)
	})

	t.Run("admin cannot promote to super admin", func(t *testing.T) {
		checkError(t, httpTest{wantCode: http.StatusForbidden, wantErr: "permission denied"},
			env.do(httpTest{
				method: http.MethodPut, path: fmt.Sprintf("/v1/users/%d", learner.ID), token: token,
				body: marshalObj(t, map[string]string{"role": string(user.RoleSuperAdmin)}),
			}))
	})

	t.Run("no self delete", func(t *testing.T) {
		checkError(t, httpTest{wantCode: http.StatusForbidden, wantErr: "permission denied"},
			env.do(httpTest{method: http.MethodDelete, path: fmt.Sprintf("/v1/users/%d", admin.ID), token: token}))
		checkError(t, httpTest{wantCode: http.StatusForbidden, wantErr: "permission denied"},
			env.do(httpTest{method: http.MethodDelete, path: fmt.Sprintf("/v1/users?id=%d&id=%d", learner.ID, admin.ID), token: token}))
	})

	t.Run("destroy", func(t *testing.T) {
		rec := env.do(httpTest{method: http.MethodDelete, path: fmt.Sprintf("/v1/users/%d", learner.ID), token: token})
		require.Equal(t, http.StatusNoContent, rec.Code, "body: %s", rec.Body.String())

		checkError(t, httpTest{wantCode: http.StatusNotFound, wantErr: "not found"},
			env.do(httpTest{path: fmt.Sprintf("/v1/users/%d", learner.ID), token: token}))
	})
}
