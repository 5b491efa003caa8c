package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/assessment"
	"github.com/darasahq/darasa/core/billing"
	"github.com/darasahq/darasa/core/booking"
	"github.com/darasahq/darasa/core/certificate"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/org"
	"github.com/darasahq/darasa/core/user"
	calendarsvc "github.com/darasahq/darasa/services/calendar"
	emailsvc "github.com/darasahq/darasa/services/email"
	logsvc "github.com/darasahq/darasa/services/logger"
	paymentsvc "github.com/darasahq/darasa/services/payment"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

type testEnv struct {
	server Server
	auth   *jwtAuth
	conf   *core.Config

	usrSvc         *user.Service
	orgSvc         *org.Service
	accessSvc      *access.Service
	courseSvc      *course.Service
	assessmentSvc  *assessment.Service
	billingSvc     *billing.Service
	certificateSvc *certificate.Service
	bookingSvc     *booking.Service
	gateway        *paymentsvc.DummyGateway
}

func testConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Darasa",
		SecretKey:                 []byte("test-secret"),
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			Addr:                      ":0",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := testConfig()
	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	gateway := paymentsvc.NewDummyGateway()

	usrSvc := user.NewService(conf, inmemdb.NewUserRepository(db), mailSvc)
	orgSvc := org.NewService(inmemdb.NewOrgRepository(db))
	accessSvc := access.NewService(inmemdb.NewAccessRepository(db), usrSvc)
	courseSvc := course.NewService(inmemdb.NewCourseRepository(db))
	assessmentSvc := assessment.NewService(inmemdb.NewAssessmentRepository(db))
	billingSvc := billing.NewService(inmemdb.NewBillingRepository(db), gateway)
	certificateSvc := certificate.NewService(conf, inmemdb.NewCertificateRepository(db), courseSvc, usrSvc, mailSvc)
	bookingSvc := booking.NewService(inmemdb.NewBookingRepository(db))

	validate, translator := core.NewValidation()
	user.RegisterValidators(validate, translator)
	assessment.RegisterValidators(validate, translator)

	require.NoError(t, accessSvc.SeedPermissions(context.Background()))

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logsvc.NewStdLogger(nil),
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		OrgSvc:         orgSvc,
		AccessSvc:      accessSvc,
		CourseSvc:      courseSvc,
		AssessmentSvc:  assessmentSvc,
		BillingSvc:     billingSvc,
		CertificateSvc: certificateSvc,
		BookingSvc:     bookingSvc,
		CalendarTokens: calendarsvc.NewTokenStore(),
		DisableReqLogs: true,
	})

	return &testEnv{
		server:         server,
		auth:           newJWTAuth(conf),
		conf:           conf,
		usrSvc:         usrSvc,
		orgSvc:         orgSvc,
		accessSvc:      accessSvc,
		courseSvc:      courseSvc,
		assessmentSvc:  assessmentSvc,
		billingSvc:     billingSvc,
		certificateSvc: certificateSvc,
		bookingSvc:     bookingSvc,
		gateway:        gateway,
	}
}

func (env *testEnv) createOrg(t *testing.T, name string) org.Organization {
	t.Helper()
	o, err := env.orgSvc.Create(context.Background(), org.NewOrganization{Name: name, Email: name + "@test.cd"})
	require.NoError(t, err)
	return o
}

func (env *testEnv) createUser(t *testing.T, name, uname, email string, role user.Role, orgID int) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(context.Background(), user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        "G0od#Pass!",
		PasswordConfirm: "G0od#Pass!",
		Role:            role,
		OrgID:           orgID,
	})
	require.NoError(t, err)
	return usr
}

// permissionIDs resolves catalog pairs to their seeded ids.
func (env *testEnv) permissionIDs(t *testing.T, pairs ...[2]string) []int {
	t.Helper()
	perms, err := env.accessSvc.Permissions(context.Background())
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

func (env *testEnv) getToken(t *testing.T, usr user.User, subAdminID int) string {
	t.Helper()
	token, err := env.auth.generateToken(env.auth.claimsFor(usr, subAdminID))
	require.NoError(t, err)
	return token
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantErr  string
	wantKind string // machine-readable "code" field
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func (env *testEnv) do(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	env.server.ServeHTTP(rec, req)
	return rec
}

func checkError(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())

	if tt.wantErr == "" && tt.wantKind == "" {
		return
	}
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	if tt.wantErr != "" {
		require.Equal(t, tt.wantErr, body["error"])
	}
	if tt.wantKind != "" {
		require.Equal(t, tt.wantKind, body["code"])
	}
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}
