package course

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound        = errors.New("course not found")
	ErrLessonNotFound  = errors.New("lesson not found")
	ErrAlreadyEnrolled = errors.New("learner is already enrolled in this course")
	ErrNotEnrolled     = errors.New("learner is not enrolled in this course")
	ErrNotPublished    = errors.New("course is not published")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		QueryCoursesByOrg(ctx context.Context, orgID int) ([]Course, error)
		// GetCourseByID returns the course with its lessons ordered by position.
		GetCourseByID(ctx context.Context, id int) (Course, error)
		UpdateCourse(ctx context.Context, c Course, isPublished *bool) (Course, error)
		DeleteCoursesByID(ctx context.Context, ids ...int) error

		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		GetLessonByID(ctx context.Context, id int) (Lesson, error)
		DeleteLessonsByID(ctx context.Context, ids ...int) error

		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, courseID, userID int) (Enrollment, error)
		QueryEnrollmentsByUser(ctx context.Context, userID int) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	c := Course{
		OrgID:       nc.OrgID,
		Title:       nc.Title,
		Description: nc.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *Service) QueryByOrg(ctx context.Context, orgID int) ([]Course, error) {
	return svc.repo.QueryCoursesByOrg(ctx, orgID)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id int, uc UpdateCourse) (Course, error) {
	c := Course{
		ID:          id,
		Title:       uc.Title,
		Description: uc.Description,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateCourse(ctx, c, uc.IsPublished)
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteCoursesByID(ctx, ids...)
}

// AddLesson appends a lesson; when no position is given, the lesson goes last.
func (svc *Service) AddLesson(ctx context.Context, courseID int, nl NewLesson) (Lesson, error) {
	c, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Lesson{}, err
	}

	pos := nl.Position
	if pos == 0 {
		pos = len(c.Lessons) + 1
	}
	now := time.Now().UTC()
	l := Lesson{
		CourseID:  courseID,
		Title:     nl.Title,
		Content:   nl.Content,
		Position:  pos,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateLesson(ctx, l)
}

func (svc *Service) DeleteLessons(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteLessonsByID(ctx, ids...)
}

// Enroll registers a learner on a published course.
func (svc *Service) Enroll(ctx context.Context, courseID, userID int) (Enrollment, error) {
	c, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !c.IsPublished {
		return Enrollment{}, ErrNotPublished
	}
	if _, err := svc.repo.GetEnrollment(ctx, courseID, userID); err == nil {
		return Enrollment{}, ErrAlreadyEnrolled
	} else if errors.Cause(err) != ErrNotEnrolled {
		return Enrollment{}, err
	}

	e := Enrollment{
		CourseID:  courseID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateEnrollment(ctx, e)
}

func (svc *Service) GetEnrollment(ctx context.Context, courseID, userID int) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, courseID, userID)
}

func (svc *Service) EnrollmentsByUser(ctx context.Context, userID int) ([]Enrollment, error) {
	return svc.repo.QueryEnrollmentsByUser(ctx, userID)
}

// CompleteLesson records lesson completion; completing the last outstanding
// lesson completes the enrollment.
func (svc *Service) CompleteLesson(ctx context.Context, courseID, userID, lessonID int) (Enrollment, error) {
	c, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	var found bool
	for _, l := range c.Lessons {
		if l.ID == lessonID {
			found = true
			break
		}
	}
	if !found {
		return Enrollment{}, ErrLessonNotFound
	}

	e, err := svc.repo.GetEnrollment(ctx, courseID, userID)
	if err != nil {
		return Enrollment{}, err
	}

	for _, id := range e.CompletedLessons {
		if id == lessonID {
			return e, nil // already recorded
		}
	}
	e.CompletedLessons = append(e.CompletedLessons, lessonID)
	if len(e.CompletedLessons) == len(c.Lessons) {
		e.CompletedAt = time.Now().UTC()
	}
	return svc.repo.UpdateEnrollment(ctx, e)
}
