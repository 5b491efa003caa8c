package assessment_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/assessment"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

func newTestService(t *testing.T) *assessment.Service {
	t.Helper()
	return assessment.NewService(inmemdb.NewAssessmentRepository(inmemdb.NewDB()))
}

func intPtr(i int) *int { return &i }

func objectiveAssessment(t *testing.T, svc *assessment.Service) assessment.Assessment {
	t.Helper()
	a, err := svc.Create(context.Background(), assessment.NewAssessment{
		Title:    "Go Quiz",
		Kind:     assessment.KindObjective,
		CourseID: 1,
		Questions: []assessment.NewQuestion{
			{Prompt: "Zero value of a pointer?", Choices: []string{"0", "nil", `""`}, CorrectIdx: 1, Marks: 2},
			{Prompt: "Keyword for constants?", Choices: []string{"let", "const"}, CorrectIdx: 1, Marks: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, a.Questions, 2)
	return a
}

func theoryAssessment(t *testing.T, svc *assessment.Service) assessment.Assessment {
	t.Helper()
	a, err := svc.Create(context.Background(), assessment.NewAssessment{
		Title:    "Essay",
		Kind:     assessment.KindTheory,
		CourseID: 1,
		Questions: []assessment.NewQuestion{
			{Prompt: "Explain interfaces.", Marks: 10},
			{Prompt: "Explain goroutines.", Marks: 5},
		},
	})
	require.NoError(t, err)
	require.Len(t, a.Questions, 2)
	return a
}

func TestService_Submit_objective(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	a := objectiveAssessment(t, svc)

	sub, err := svc.Submit(ctx, a.ID, 10, assessment.NewSubmission{
		Answers: []assessment.Answer{
			{QuestionID: a.Questions[0].ID, ChoiceIdx: intPtr(1)}, // right, 2 marks
			{QuestionID: a.Questions[1].ID, ChoiceIdx: intPtr(0)}, // wrong
		},
	})
	require.NoError(t, err)

	// scored on the spot
	assert.True(t, sub.Graded)
	assert.Equal(t, 2, sub.Score)
	assert.Equal(t, 5, sub.MaxScore)

	t.Run("one submission per learner", func(t *testing.T) {
		_, err := svc.Submit(ctx, a.ID, 10, assessment.NewSubmission{
			Answers: []assessment.Answer{{QuestionID: a.Questions[0].ID, ChoiceIdx: intPtr(1)}},
		})
		assert.Equal(t, assessment.ErrAlreadySubmitted, errors.Cause(err))
	})

	t.Run("submitted marks are ignored", func(t *testing.T) {
		// a learner cannot award themselves marks in the payload
		sub, err := svc.Submit(ctx, a.ID, 11, assessment.NewSubmission{
			Answers: []assessment.Answer{{QuestionID: a.Questions[1].ID, ChoiceIdx: intPtr(0), Awarded: 100}},
		})
		require.NoError(t, err)
		assert.Zero(t, sub.Score)
	})

	t.Run("unknown question reference", func(t *testing.T) {
		_, err := svc.Submit(ctx, a.ID, 12, assessment.NewSubmission{
			Answers: []assessment.Answer{{QuestionID: 99999, ChoiceIdx: intPtr(0)}},
		})
		_, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want *core.ValidationError, got %v", err)
	})
}

func TestService_Grade_theory(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	a := theoryAssessment(t, svc)

	sub, err := svc.Submit(ctx, a.ID, 10, assessment.NewSubmission{
		Answers: []assessment.Answer{
			{QuestionID: a.Questions[0].ID, Text: "They describe behavior."},
			{QuestionID: a.Questions[1].ID, Text: "Cheap concurrent functions."},
		},
	})
	require.NoError(t, err)

	// theory waits for manual grading
	assert.False(t, sub.Graded)
	assert.Zero(t, sub.Score)
	assert.Equal(t, 15, sub.MaxScore)

	graded, err := svc.Grade(ctx, sub.ID, 99, assessment.GradeSubmission{
		Awards: map[int]int{
			a.Questions[0].ID: 8,
			a.Questions[1].ID: 5,
		},
	})
	require.NoError(t, err)
	assert.True(t, graded.Graded)
	assert.Equal(t, 13, graded.Score)
	assert.Equal(t, 99, graded.GradedBy)

	t.Run("award above question marks", func(t *testing.T) {
		_, err := svc.Grade(ctx, sub.ID, 99, assessment.GradeSubmission{
			Awards: map[int]int{a.Questions[0].ID: 11},
		})
		_, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want *core.ValidationError, got %v", err)
	})

	t.Run("regrade replaces awards", func(t *testing.T) {
		regraded, err := svc.Grade(ctx, sub.ID, 100, assessment.GradeSubmission{
			Awards: map[int]int{a.Questions[0].ID: 2},
		})
		require.NoError(t, err)
		// question 2 keeps its previous award
		assert.Equal(t, 7, regraded.Score)
		assert.Equal(t, 100, regraded.GradedBy)
	})

	t.Run("unknown submission", func(t *testing.T) {
		_, err := svc.Grade(ctx, 99999, 99, assessment.GradeSubmission{Awards: map[int]int{1: 1}})
		assert.Equal(t, assessment.ErrSubmissionNotFound, errors.Cause(err))
	})
}

func TestService_Grade_objectiveRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	a := objectiveAssessment(t, svc)

	sub, err := svc.Submit(ctx, a.ID, 10, assessment.NewSubmission{
		Answers: []assessment.Answer{{QuestionID: a.Questions[0].ID, ChoiceIdx: intPtr(1)}},
	})
	require.NoError(t, err)

	_, err = svc.Grade(ctx, sub.ID, 99, assessment.GradeSubmission{
		Awards: map[int]int{a.Questions[0].ID: 1},
	})
	assert.Equal(t, assessment.ErrNotTheory, errors.Cause(err))
}
