package course_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core/course"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

func newTestService(t *testing.T) *course.Service {
	t.Helper()
	return course.NewService(inmemdb.NewCourseRepository(inmemdb.NewDB()))
}

func publishedCourse(t *testing.T, svc *course.Service, lessons int) course.Course {
	t.Helper()
	ctx := context.Background()

	c, err := svc.Create(ctx, course.NewCourse{Title: "Intro to Go", OrgID: 1})
	require.NoError(t, err)
	for i := 0; i < lessons; i++ {
		_, err := svc.AddLesson(ctx, c.ID, course.NewLesson{Title: "Lesson"})
		require.NoError(t, err)
	}

	published := true
	c, err = svc.Update(ctx, c.ID, course.UpdateCourse{IsPublished: &published})
	require.NoError(t, err)

	c, err = svc.GetByID(ctx, c.ID)
	require.NoError(t, err)
	return c
}

func TestService_AddLesson(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	c, err := svc.Create(ctx, course.NewCourse{Title: "Intro to Go", OrgID: 1})
	require.NoError(t, err)

	first, err := svc.AddLesson(ctx, c.ID, course.NewLesson{Title: "Basics"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Position)

	// appended lessons go last
	second, err := svc.AddLesson(ctx, c.ID, course.NewLesson{Title: "Structs"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Position)

	// explicit position wins
	pinned, err := svc.AddLesson(ctx, c.ID, course.NewLesson{Title: "Preface", Position: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, pinned.Position)

	_, err = svc.AddLesson(ctx, 99999, course.NewLesson{Title: "Orphan"})
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
}

func TestService_Enroll(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	c := publishedCourse(t, svc, 1)

	e, err := svc.Enroll(ctx, c.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, c.ID, e.CourseID)
	assert.Equal(t, 10, e.UserID)
	assert.False(t, e.IsComplete())

	t.Run("twice", func(t *testing.T) {
		_, err := svc.Enroll(ctx, c.ID, 10)
		assert.Equal(t, course.ErrAlreadyEnrolled, errors.Cause(err))
	})

	t.Run("unpublished course", func(t *testing.T) {
		draft, err := svc.Create(ctx, course.NewCourse{Title: "Draft", OrgID: 1})
		require.NoError(t, err)

		_, err = svc.Enroll(ctx, draft.ID, 10)
		assert.Equal(t, course.ErrNotPublished, errors.Cause(err))
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := svc.Enroll(ctx, 99999, 10)
		assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	})
}

func TestService_CompleteLesson(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	c := publishedCourse(t, svc, 2)
	require.Len(t, c.Lessons, 2)

	_, err := svc.Enroll(ctx, c.ID, 10)
	require.NoError(t, err)

	e, err := svc.CompleteLesson(ctx, c.ID, 10, c.Lessons[0].ID)
	require.NoError(t, err)
	assert.Len(t, e.CompletedLessons, 1)
	assert.False(t, e.IsComplete())

	// repeat completion does not double-count
	e, err = svc.CompleteLesson(ctx, c.ID, 10, c.Lessons[0].ID)
	require.NoError(t, err)
	assert.Len(t, e.CompletedLessons, 1)

	// the last lesson completes the enrollment
	e, err = svc.CompleteLesson(ctx, c.ID, 10, c.Lessons[1].ID)
	require.NoError(t, err)
	assert.True(t, e.IsComplete())

	t.Run("lesson outside course", func(t *testing.T) {
		_, err := svc.CompleteLesson(ctx, c.ID, 10, 99999)
		assert.Equal(t, course.ErrLessonNotFound, errors.Cause(err))
	})

	t.Run("not enrolled", func(t *testing.T) {
		_, err := svc.CompleteLesson(ctx, c.ID, 11, c.Lessons[0].ID)
		assert.Equal(t, course.ErrNotEnrolled, errors.Cause(err))
	})
}
