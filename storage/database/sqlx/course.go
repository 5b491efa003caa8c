package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/course"
)

type (
	courseRow struct {
		ID          int       `db:"id"`
		OrgID       int       `db:"org_id"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		IsPublished bool      `db:"is_published"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	lessonRow struct {
		ID        int       `db:"id"`
		CourseID  int       `db:"course_id"`
		Title     string    `db:"title"`
		Content   string    `db:"content"`
		Position  int       `db:"position"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	enrollmentRow struct {
		ID               int           `db:"id"`
		CourseID         int           `db:"course_id"`
		UserID           int           `db:"user_id"`
		CompletedLessons pq.Int64Array `db:"completed_lessons"`
		CompletedAt      null.Time     `db:"completed_at"`
		CreatedAt        time.Time     `db:"created_at"`
	}
)

func (r courseRow) course() course.Course {
	return course.Course{
		ID:          r.ID,
		OrgID:       r.OrgID,
		Title:       r.Title,
		Description: r.Description,
		IsPublished: r.IsPublished,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r lessonRow) lesson() course.Lesson {
	return course.Lesson{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Title:     r.Title,
		Content:   r.Content,
		Position:  r.Position,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r enrollmentRow) enrollment() course.Enrollment {
	done := make([]int, 0, len(r.CompletedLessons))
	for _, id := range r.CompletedLessons {
		done = append(done, int(id))
	}
	return course.Enrollment{
		ID:               r.ID,
		CourseID:         r.CourseID,
		UserID:           r.UserID,
		CompletedLessons: done,
		CompletedAt:      r.CompletedAt.Time,
		CreatedAt:        r.CreatedAt,
	}
}

func lessonIDsArray(ids []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, int64(id))
	}
	return arr
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) lessonsFor(ctx context.Context, courseID int) ([]course.Lesson, error) {
	var rows []lessonRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM lessons WHERE course_id = $1 ORDER BY position`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, r := range rows {
		lessons = append(lessons, r.lesson())
	}
	return lessons, nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	query := `
		INSERT INTO courses (org_id, title, description, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		c.OrgID, c.Title, c.Description, c.IsPublished, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo courseRepository) QueryCoursesByOrg(ctx context.Context, orgID int) ([]course.Course, error) {
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM courses WHERE org_id = $1 ORDER BY id`, orgID); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		c := r.course()
		lessons, err := repo.lessonsFor(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.Lessons = lessons
		courses = append(courses, c)
	}
	return courses, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id int) (course.Course, error) {
	var r courseRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM courses WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	c := r.course()
	lessons, err := repo.lessonsFor(ctx, id)
	if err != nil {
		return course.Course{}, err
	}
	c.Lessons = lessons
	return c, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, isPublished *bool) (course.Course, error) {
	query := `
		UPDATE courses SET
			title = COALESCE(NULLIF($2, ''), title),
			description = COALESCE(NULLIF($3, ''), description),
			is_published = COALESCE($4, is_published),
			updated_at = $5
		WHERE id = $1
		RETURNING *`
	var r courseRow
	err := repo.db.GetContext(ctx, &r, query, c.ID, c.Title, c.Description, null.BoolFromPtr(isPublished), c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	cc := r.course()
	lessons, err := repo.lessonsFor(ctx, cc.ID)
	if err != nil {
		return course.Course{}, err
	}
	cc.Lessons = lessons
	return cc, nil
}

func (repo courseRepository) DeleteCoursesByID(ctx context.Context, ids ...int) error {
	query, args, err := sqlx.In(`DELETE FROM courses WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting courses")
	}
	return nil
}

func (repo courseRepository) CreateLesson(ctx context.Context, l course.Lesson) (course.Lesson, error) {
	query := `
		INSERT INTO lessons (course_id, title, content, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		l.CourseID, l.Title, l.Content, l.Position, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return l, nil
}

func (repo courseRepository) GetLessonByID(ctx context.Context, id int) (course.Lesson, error) {
	var r lessonRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM lessons WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return course.Lesson{}, course.ErrLessonNotFound
		}
		return course.Lesson{}, errors.Wrap(err, "getting lesson")
	}
	return r.lesson(), nil
}

func (repo courseRepository) DeleteLessonsByID(ctx context.Context, ids ...int) error {
	query, args, err := sqlx.In(`DELETE FROM lessons WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting lessons")
	}
	return nil
}

func (repo courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	query := `
		INSERT INTO enrollments (course_id, user_id, completed_lessons, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		e.CourseID, e.UserID, lessonIDsArray(e.CompletedLessons), e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo courseRepository) GetEnrollment(ctx context.Context, courseID, userID int) (course.Enrollment, error) {
	var r enrollmentRow
	err := repo.db.GetContext(ctx, &r, `SELECT * FROM enrollments WHERE course_id = $1 AND user_id = $2`, courseID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Enrollment{}, course.ErrNotEnrolled
		}
		return course.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return r.enrollment(), nil
}

func (repo courseRepository) QueryEnrollmentsByUser(ctx context.Context, userID int) ([]course.Enrollment, error) {
	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM enrollments WHERE user_id = $1 ORDER BY id`, userID); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]course.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrs = append(enrs, r.enrollment())
	}
	return enrs, nil
}

func (repo courseRepository) UpdateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	query := `
		UPDATE enrollments SET completed_lessons = $2, completed_at = $3
		WHERE id = $1
		RETURNING *`
	completedAt := null.NewTime(e.CompletedAt, !e.CompletedAt.IsZero())
	var r enrollmentRow
	err := repo.db.GetContext(ctx, &r, query, e.ID, lessonIDsArray(e.CompletedLessons), completedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Enrollment{}, course.ErrNotEnrolled
		}
		return course.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	return r.enrollment(), nil
}
