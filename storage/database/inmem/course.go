package inmemdb

import (
	"context"
	"sort"

	"github.com/darasahq/darasa/core/course"
)

var (
	coursePkCount     int
	lessonPkCount     int
	enrollmentPkCount int
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) lessonsFor(courseID int) []course.Lesson {
	var lessons []course.Lesson
	for _, l := range repo.db.lessons {
		if l.CourseID == courseID {
			lessons = append(lessons, *l)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Position < lessons[j].Position })
	return lessons
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	coursePkCount++
	c.ID = coursePkCount
	stored := c
	stored.Lessons = nil
	repo.db.courses[c.ID] = &stored
	return c, nil
}

func (repo *courseRepository) QueryCoursesByOrg(ctx context.Context, orgID int) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var courses []course.Course
	for _, c := range repo.db.courses {
		if c.OrgID != orgID {
			continue
		}
		cc := *c
		cc.Lessons = repo.lessonsFor(c.ID)
		courses = append(courses, cc)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id int) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	c, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	cc := *c
	cc.Lessons = repo.lessonsFor(id)
	return cc, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course, isPublished *bool) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[c.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}

	if c.Title != "" {
		orig.Title = c.Title
	}
	if c.Description != "" {
		orig.Description = c.Description
	}
	if isPublished != nil {
		orig.IsPublished = *isPublished
	}
	orig.UpdatedAt = c.UpdatedAt

	cc := *orig
	cc.Lessons = repo.lessonsFor(c.ID)
	return cc, nil
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.courses, id)
		for lid, l := range repo.db.lessons {
			if l.CourseID == id {
				delete(repo.db.lessons, lid)
			}
		}
		for eid, e := range repo.db.enrollments {
			if e.CourseID == id {
				delete(repo.db.enrollments, eid)
			}
		}
	}
	return nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, l course.Lesson) (course.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	lessonPkCount++
	l.ID = lessonPkCount
	repo.db.lessons[l.ID] = &l
	return l, nil
}

func (repo *courseRepository) GetLessonByID(ctx context.Context, id int) (course.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if l, ok := repo.db.lessons[id]; ok {
		return *l, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) DeleteLessonsByID(ctx context.Context, ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.lessons, id)
	}
	return nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	enrollmentPkCount++
	e.ID = enrollmentPkCount
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, courseID, userID int) (course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.CourseID == courseID && e.UserID == userID {
			return *e, nil
		}
	}
	return course.Enrollment{}, course.ErrNotEnrolled
}

func (repo *courseRepository) QueryEnrollmentsByUser(ctx context.Context, userID int) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var enrs []course.Enrollment
	for _, e := range repo.db.enrollments {
		if e.UserID == userID {
			enrs = append(enrs, *e)
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].ID < enrs[j].ID })
	return enrs, nil
}

func (repo *courseRepository) UpdateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.enrollments[e.ID]
	if !ok {
		return course.Enrollment{}, course.ErrNotEnrolled
	}
	orig.CompletedLessons = e.CompletedLessons
	orig.CompletedAt = e.CompletedAt
	return *orig, nil
}
