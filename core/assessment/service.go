package assessment

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var (
	ErrNotFound           = errors.New("assessment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadySubmitted   = errors.New("a submission already exists for this assessment")
	ErrNotTheory          = errors.New("only theory submissions are graded manually")

	assessmentKindTag  = "assessmentkind"
	assessmentKindText = "invalid assessment kind"
)

// RegisterValidators wires this package's custom validation tags into the
// app validator instance.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(assessmentKindTag, func(fl validator.FieldLevel) bool {
		return Kind(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, assessmentKindTag, assessmentKindText)
}

type (
	Repository interface {
		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		QueryAssessmentsByCourse(ctx context.Context, courseID int) ([]Assessment, error)
		// GetAssessmentByID returns the assessment with its questions.
		GetAssessmentByID(ctx context.Context, id int) (Assessment, error)
		DeleteAssessmentsByID(ctx context.Context, ids ...int) error

		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, assessmentID, userID int) (Submission, error)
		GetSubmissionByID(ctx context.Context, id int) (Submission, error)
		QuerySubmissionsByAssessment(ctx context.Context, assessmentID int) ([]Submission, error)
		UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, na NewAssessment) (Assessment, error) {
	now := time.Now().UTC()
	a := Assessment{
		CourseID:  na.CourseID,
		Title:     na.Title,
		Kind:      na.Kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, nq := range na.Questions {
		a.Questions = append(a.Questions, Question{
			Prompt:     nq.Prompt,
			Choices:    nq.Choices,
			CorrectIdx: nq.CorrectIdx,
			Marks:      nq.Marks,
		})
	}
	return svc.repo.CreateAssessment(ctx, a)
}

func (svc *Service) QueryByCourse(ctx context.Context, courseID int) ([]Assessment, error) {
	return svc.repo.QueryAssessmentsByCourse(ctx, courseID)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Assessment, error) {
	return svc.repo.GetAssessmentByID(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteAssessmentsByID(ctx, ids...)
}

// Submit records a learner's answers. Objective assessments are scored on the
// spot; theory submissions wait for manual grading.
func (svc *Service) Submit(ctx context.Context, assessmentID, userID int, ns NewSubmission) (Submission, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, assessmentID)
	if err != nil {
		return Submission{}, err
	}
	if _, err := svc.repo.GetSubmission(ctx, assessmentID, userID); err == nil {
		return Submission{}, ErrAlreadySubmitted
	} else if errors.Cause(err) != ErrSubmissionNotFound {
		return Submission{}, err
	}

	questions := make(map[int]Question, len(a.Questions))
	var maxScore int
	for _, q := range a.Questions {
		questions[q.ID] = q
		maxScore += q.Marks
	}

	now := time.Now().UTC()
	sub := Submission{
		AssessmentID: assessmentID,
		UserID:       userID,
		MaxScore:     maxScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, ans := range ns.Answers {
		q, ok := questions[ans.QuestionID]
		if !ok {
			return Submission{}, core.NewValidationError(nil, core.FieldError{
				Field: "answers", Error: "answer references an unknown question",
			})
		}
		ans.Awarded = 0
		if a.Kind == KindObjective && ans.ChoiceIdx != nil && *ans.ChoiceIdx == q.CorrectIdx {
			ans.Awarded = q.Marks
		}
		sub.Answers = append(sub.Answers, ans)
		sub.Score += ans.Awarded
	}

	if a.Kind == KindObjective {
		sub.Graded = true
	}
	return svc.repo.CreateSubmission(ctx, sub)
}

func (svc *Service) GetSubmission(ctx context.Context, assessmentID, userID int) (Submission, error) {
	return svc.repo.GetSubmission(ctx, assessmentID, userID)
}

func (svc *Service) SubmissionsByAssessment(ctx context.Context, assessmentID int) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByAssessment(ctx, assessmentID)
}

// Grade awards marks to a theory submission's answers.
func (svc *Service) Grade(ctx context.Context, submissionID, graderID int, gs GradeSubmission) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	a, err := svc.repo.GetAssessmentByID(ctx, sub.AssessmentID)
	if err != nil {
		return Submission{}, err
	}
	if a.Kind != KindTheory {
		return Submission{}, ErrNotTheory
	}

	marks := make(map[int]int, len(a.Questions))
	for _, q := range a.Questions {
		marks[q.ID] = q.Marks
	}

	sub.Score = 0
	for i, ans := range sub.Answers {
		if award, ok := gs.Awards[ans.QuestionID]; ok {
			max := marks[ans.QuestionID]
			if award < 0 || award > max {
				return Submission{}, core.NewValidationError(nil, core.FieldError{
					Field: "awards", Error: "award exceeds the question's marks",
				})
			}
			sub.Answers[i].Awarded = award
		}
		sub.Score += sub.Answers[i].Awarded
	}
	sub.Graded = true
	sub.GradedBy = graderID
	sub.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSubmission(ctx, sub)
}
