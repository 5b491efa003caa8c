package inmemdb

import (
	"context"
	"sort"

	"github.com/darasahq/darasa/core/assessment"
)

var (
	assessmentPkCount int
	submissionPkCount int
)

type assessmentRepository struct {
	db *assessmentTable
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *DB) assessment.Repository {
	return &assessmentRepository{db: db.assessment}
}

func (repo *assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	assessmentPkCount++
	a.ID = assessmentPkCount
	for i := range a.Questions {
		a.Questions[i].ID = i + 1
		a.Questions[i].AssessmentID = a.ID
	}
	repo.db.assessments[a.ID] = &a
	return a, nil
}

func (repo *assessmentRepository) QueryAssessmentsByCourse(ctx context.Context, courseID int) ([]assessment.Assessment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var assessments []assessment.Assessment
	for _, a := range repo.db.assessments {
		if a.CourseID == courseID {
			assessments = append(assessments, *a)
		}
	}
	sort.Slice(assessments, func(i, j int) bool { return assessments[i].ID < assessments[j].ID })
	return assessments, nil
}

func (repo *assessmentRepository) GetAssessmentByID(ctx context.Context, id int) (assessment.Assessment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assessments[id]; ok {
		return *a, nil
	}
	return assessment.Assessment{}, assessment.ErrNotFound
}

func (repo *assessmentRepository) DeleteAssessmentsByID(ctx context.Context, ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.assessments, id)
		for sid, s := range repo.db.submissions {
			if s.AssessmentID == id {
				delete(repo.db.submissions, sid)
			}
		}
	}
	return nil
}

func (repo *assessmentRepository) CreateSubmission(ctx context.Context, s assessment.Submission) (assessment.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	submissionPkCount++
	s.ID = submissionPkCount
	repo.db.submissions[s.ID] = &s
	return s, nil
}

func (repo *assessmentRepository) GetSubmission(ctx context.Context, assessmentID, userID int) (assessment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.submissions {
		if s.AssessmentID == assessmentID && s.UserID == userID {
			return *s, nil
		}
	}
	return assessment.Submission{}, assessment.ErrSubmissionNotFound
}

func (repo *assessmentRepository) GetSubmissionByID(ctx context.Context, id int) (assessment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return *s, nil
	}
	return assessment.Submission{}, assessment.ErrSubmissionNotFound
}

func (repo *assessmentRepository) QuerySubmissionsByAssessment(ctx context.Context, assessmentID int) ([]assessment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var subs []assessment.Submission
	for _, s := range repo.db.submissions {
		if s.AssessmentID == assessmentID {
			subs = append(subs, *s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (repo *assessmentRepository) UpdateSubmission(ctx context.Context, s assessment.Submission) (assessment.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.submissions[s.ID]
	if !ok {
		return assessment.Submission{}, assessment.ErrSubmissionNotFound
	}
	orig.Answers = s.Answers
	orig.Score = s.Score
	orig.Graded = s.Graded
	orig.GradedBy = s.GradedBy
	orig.UpdatedAt = s.UpdatedAt
	return *orig, nil
}
