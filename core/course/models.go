package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

type Course struct {
	ID          int       `json:"id"`
	OrgID       int       `json:"org_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsPublished bool      `json:"is_published"`
	Lessons     []Lesson  `json:"lessons,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Lesson belongs to exactly one course; Position orders lessons within it.
type Lesson struct {
	ID        int       `json:"id"`
	CourseID  int       `json:"course_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Enrollment links a learner to a course; unique per (user, course).
type Enrollment struct {
	ID               int       `json:"id"`
	CourseID         int       `json:"course_id"`
	UserID           int       `json:"user_id"`
	CompletedLessons []int     `json:"completed_lessons,omitempty"`
	CompletedAt      time.Time `json:"completed_at,omitempty"` // zero until done
	CreatedAt        time.Time `json:"created_at"`             // UTC
}

// IsComplete reports whether the enrollment covers every lesson given.
func (e Enrollment) IsComplete() bool {
	return !e.CompletedAt.IsZero()
}

type NewCourse struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	OrgID       int    `json:"-"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublished *bool  `json:"is_published"`
}

type NewLesson struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content"`
	Position int    `json:"position" validate:"omitempty,min=1"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	return validate.Struct(nl)
}
