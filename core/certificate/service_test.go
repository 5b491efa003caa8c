package certificate_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/certificate"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

type testEnv struct {
	svc       *certificate.Service
	courseSvc *course.Service
	usrSvc    *user.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := &core.Config{SecretKey: []byte("test-secret"), FrontendBaseURL: "https://app.test.cd"}
	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	courseSvc := course.NewService(inmemdb.NewCourseRepository(db))
	usrSvc := user.NewService(conf, inmemdb.NewUserRepository(db), mailSvc)
	svc := certificate.NewService(conf, inmemdb.NewCertificateRepository(db), courseSvc, usrSvc, mailSvc)
	emailsvc.ClearSentMessages()
	return &testEnv{svc: svc, courseSvc: courseSvc, usrSvc: usrSvc}
}

// completedEnrollment creates a learner enrolled in a one-lesson published
// course with the lesson completed.
func completedEnrollment(t *testing.T, env *testEnv) (course.Course, user.User) {
	t.Helper()
	ctx := context.Background()

	usr, err := env.usrSvc.Create(ctx, user.NewUser{
		Name:            "Learner",
		Email:           "learner@test.cd",
		Password:        "G0od#Pass!",
		PasswordConfirm: "G0od#Pass!",
		Role:            user.RoleUser,
		OrgID:           1,
	})
	require.NoError(t, err)

	c, err := env.courseSvc.Create(ctx, course.NewCourse{Title: "Intro to Go", OrgID: 1})
	require.NoError(t, err)
	lesson, err := env.courseSvc.AddLesson(ctx, c.ID, course.NewLesson{Title: "Basics"})
	require.NoError(t, err)

	published := true
	_, err = env.courseSvc.Update(ctx, c.ID, course.UpdateCourse{IsPublished: &published})
	require.NoError(t, err)

	_, err = env.courseSvc.Enroll(ctx, c.ID, usr.ID)
	require.NoError(t, err)
	enr, err := env.courseSvc.CompleteLesson(ctx, c.ID, usr.ID, lesson.ID)
	require.NoError(t, err)
	require.True(t, enr.IsComplete())

	return c, usr
}

func TestService_Issue(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	c, usr := completedEnrollment(t, env)

	cert, err := env.svc.Issue(ctx, c.ID, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, c.OrgID, cert.OrgID)
	assert.NotEmpty(t, cert.Serial)
	assert.NotEmpty(t, cert.Code)

	// the learner is notified
	require.Len(t, emailsvc.SentMessages, 1)
	assert.Equal(t, usr.Email, emailsvc.SentMessages[0].To[0].Address)
	assert.Contains(t, emailsvc.SentMessages[0].TextContent, cert.Serial)

	t.Run("issuing twice", func(t *testing.T) {
		_, err := env.svc.Issue(ctx, c.ID, usr.ID)
		assert.Equal(t, certificate.ErrAlreadyIssued, errors.Cause(err))
	})

	t.Run("incomplete enrollment", func(t *testing.T) {
		c2, err := env.courseSvc.Create(ctx, course.NewCourse{Title: "Advanced Go", OrgID: 1})
		require.NoError(t, err)
		_, err = env.courseSvc.AddLesson(ctx, c2.ID, course.NewLesson{Title: "Generics"})
		require.NoError(t, err)
		published := true
		_, err = env.courseSvc.Update(ctx, c2.ID, course.UpdateCourse{IsPublished: &published})
		require.NoError(t, err)
		_, err = env.courseSvc.Enroll(ctx, c2.ID, usr.ID)
		require.NoError(t, err)

		_, err = env.svc.Issue(ctx, c2.ID, usr.ID)
		assert.Equal(t, certificate.ErrNotCompleted, errors.Cause(err))
	})

	t.Run("not enrolled", func(t *testing.T) {
		_, err := env.svc.Issue(ctx, c.ID, 99999)
		assert.Equal(t, course.ErrNotEnrolled, errors.Cause(err))
	})
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	c, usr := completedEnrollment(t, env)

	cert, err := env.svc.Issue(ctx, c.ID, usr.ID)
	require.NoError(t, err)

	got, err := env.svc.Verify(ctx, cert.Serial, cert.Code)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, got.ID)

	t.Run("tampered code", func(t *testing.T) {
		_, err := env.svc.Verify(ctx, cert.Serial, "forged-code")
		assert.Equal(t, certificate.ErrInvalidCode, errors.Cause(err))
	})

	t.Run("unknown serial", func(t *testing.T) {
		_, err := env.svc.Verify(ctx, "no-such-serial", cert.Code)
		assert.Equal(t, certificate.ErrNotFound, errors.Cause(err))
	})
}
