package assessment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Kind is the closed set of assessment types.
type Kind string

const (
	KindObjective Kind = "objective" // auto-scored choice questions
	KindTheory    Kind = "theory"    // free text, graded by staff
)

func (k Kind) Valid() bool {
	return k == KindObjective || k == KindTheory
}

type Assessment struct {
	ID        int        `json:"id"`
	CourseID  int        `json:"course_id"`
	Title     string     `json:"title"`
	Kind      Kind       `json:"kind"`
	Questions []Question `json:"questions,omitempty"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

type Question struct {
	ID           int      `json:"id"`
	AssessmentID int      `json:"assessment_id"`
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices,omitempty"` // objective only
	CorrectIdx   int      `json:"-"`                 // objective only; never serialized
	Marks        int      `json:"marks"`
}

// Submission is a learner's answer sheet; one per learner per assessment.
type Submission struct {
	ID           int       `json:"id"`
	AssessmentID int       `json:"assessment_id"`
	UserID       int       `json:"user_id"`
	Answers      []Answer  `json:"answers"`
	Score        int       `json:"score"`
	MaxScore     int       `json:"max_score"`
	Graded       bool      `json:"graded"`
	GradedBy     int       `json:"graded_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type Answer struct {
	QuestionID int    `json:"question_id"`
	ChoiceIdx  *int   `json:"choice_idx,omitempty"` // objective
	Text       string `json:"text,omitempty"`       // theory
	Awarded    int    `json:"awarded"`
}

type NewAssessment struct {
	Title     string        `json:"title" validate:"required"`
	Kind      Kind          `json:"kind" validate:"required,assessmentkind"`
	Questions []NewQuestion `json:"questions" validate:"required,min=1,dive"`
	CourseID  int           `json:"-"`
}

type NewQuestion struct {
	Prompt     string   `json:"prompt" validate:"required"`
	Choices    []string `json:"choices"`
	CorrectIdx int      `json:"correct_idx"`
	Marks      int      `json:"marks" validate:"required,min=1"`
}

func (na *NewAssessment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	if err := validate.Struct(na); err != nil {
		return err
	}
	if na.Kind == KindObjective {
		for _, q := range na.Questions {
			if len(q.Choices) < 2 || q.CorrectIdx < 0 || q.CorrectIdx >= len(q.Choices) {
				return core.NewValidationError(nil, core.FieldError{
					Field: "questions",
					Error: "objective questions need at least 2 choices and a valid correct_idx",
				})
			}
		}
	}
	return nil
}

type NewSubmission struct {
	Answers []Answer `json:"answers" validate:"required,min=1,dive"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}

// GradeSubmission awards marks to theory answers, keyed by question id.
type GradeSubmission struct {
	Awards map[int]int `json:"awards" validate:"required,min=1"`
}
