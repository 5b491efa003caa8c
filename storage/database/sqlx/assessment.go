package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/assessment"
)

type (
	assessmentRow struct {
		ID        int       `db:"id"`
		CourseID  int       `db:"course_id"`
		Title     string    `db:"title"`
		Kind      string    `db:"kind"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	questionRow struct {
		ID           int            `db:"id"`
		AssessmentID int            `db:"assessment_id"`
		Prompt       string         `db:"prompt"`
		Choices      pq.StringArray `db:"choices"`
		CorrectIdx   int            `db:"correct_idx"`
		Marks        int            `db:"marks"`
	}

	submissionRow struct {
		ID           int       `db:"id"`
		AssessmentID int       `db:"assessment_id"`
		UserID       int       `db:"user_id"`
		Score        int       `db:"score"`
		MaxScore     int       `db:"max_score"`
		Graded       bool      `db:"graded"`
		GradedBy     int       `db:"graded_by"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	answerRow struct {
		ID           int      `db:"id"`
		SubmissionID int      `db:"submission_id"`
		QuestionID   int      `db:"question_id"`
		ChoiceIdx    null.Int `db:"choice_idx"`
		Text         string   `db:"text"`
		Awarded      int      `db:"awarded"`
	}
)

func (r assessmentRow) assessment() assessment.Assessment {
	return assessment.Assessment{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Title:     r.Title,
		Kind:      assessment.Kind(r.Kind),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r questionRow) question() assessment.Question {
	return assessment.Question{
		ID:           r.ID,
		AssessmentID: r.AssessmentID,
		Prompt:       r.Prompt,
		Choices:      r.Choices,
		CorrectIdx:   r.CorrectIdx,
		Marks:        r.Marks,
	}
}

func (r submissionRow) submission() assessment.Submission {
	return assessment.Submission{
		ID:           r.ID,
		AssessmentID: r.AssessmentID,
		UserID:       r.UserID,
		Score:        r.Score,
		MaxScore:     r.MaxScore,
		Graded:       r.Graded,
		GradedBy:     r.GradedBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r answerRow) answer() assessment.Answer {
	a := assessment.Answer{
		QuestionID: r.QuestionID,
		Text:       r.Text,
		Awarded:    r.Awarded,
	}
	if r.ChoiceIdx.Valid {
		idx := int(r.ChoiceIdx.Int)
		a.ChoiceIdx = &idx
	}
	return a
}

type assessmentRepository struct {
	db *sqlx.DB
}

var _ assessment.Repository = (*assessmentRepository)(nil)

func NewAssessmentRepository(db *sqlx.DB) *assessmentRepository {
	return &assessmentRepository{db: db}
}

func (repo assessmentRepository) questionsFor(ctx context.Context, assessmentID int) ([]assessment.Question, error) {
	var rows []questionRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM questions WHERE assessment_id = $1 ORDER BY id`, assessmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	questions := make([]assessment.Question, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, r.question())
	}
	return questions, nil
}

func (repo assessmentRepository) answersFor(ctx context.Context, submissionID int) ([]assessment.Answer, error) {
	var rows []answerRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM answers WHERE submission_id = $1 ORDER BY id`, submissionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	answers := make([]assessment.Answer, 0, len(rows))
	for _, r := range rows {
		answers = append(answers, r.answer())
	}
	return answers, nil
}

func (repo assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO assessments (course_id, title, kind, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err = tx.QueryRowContext(ctx, query, a.CourseID, a.Title, a.Kind, a.CreatedAt, a.UpdatedAt).Scan(&a.ID); err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "inserting assessment")
	}

	qQuery := `
		INSERT INTO questions (assessment_id, prompt, choices, correct_idx, marks)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	for i := range a.Questions {
		q := &a.Questions[i]
		q.AssessmentID = a.ID
		err = tx.QueryRowContext(ctx, qQuery, a.ID, q.Prompt, pq.StringArray(q.Choices), q.CorrectIdx, q.Marks).Scan(&q.ID)
		if err != nil {
			return assessment.Assessment{}, errors.Wrap(err, "inserting question")
		}
	}

	if err = tx.Commit(); err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "committing assessment")
	}
	return a, nil
}

func (repo assessmentRepository) QueryAssessmentsByCourse(ctx context.Context, courseID int) ([]assessment.Assessment, error) {
	var rows []assessmentRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM assessments WHERE course_id = $1 ORDER BY id`, courseID); err != nil {
		return nil, errors.Wrap(err, "querying assessments")
	}
	assessments := make([]assessment.Assessment, 0, len(rows))
	for _, r := range rows {
		assessments = append(assessments, r.assessment())
	}
	return assessments, nil
}

func (repo assessmentRepository) GetAssessmentByID(ctx context.Context, id int) (assessment.Assessment, error) {
	var r assessmentRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM assessments WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return assessment.Assessment{}, assessment.ErrNotFound
		}
		return assessment.Assessment{}, errors.Wrap(err, "getting assessment")
	}
	a := r.assessment()
	questions, err := repo.questionsFor(ctx, id)
	if err != nil {
		return assessment.Assessment{}, err
	}
	a.Questions = questions
	return a, nil
}

func (repo assessmentRepository) DeleteAssessmentsByID(ctx context.Context, ids ...int) error {
	query, args, err := sqlx.In(`DELETE FROM assessments WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting assessments")
	}
	return nil
}

func (repo assessmentRepository) saveAnswers(ctx context.Context, tx *sqlx.Tx, submissionID int, answers []assessment.Answer) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE submission_id = $1`, submissionID); err != nil {
		return errors.Wrap(err, "clearing answers")
	}
	query := `
		INSERT INTO answers (submission_id, question_id, choice_idx, text, awarded)
		VALUES ($1, $2, $3, $4, $5)`
	for _, a := range answers {
		choiceIdx := null.IntFromPtr(a.ChoiceIdx)
		if _, err := tx.ExecContext(ctx, query, submissionID, a.QuestionID, choiceIdx, a.Text, a.Awarded); err != nil {
			return errors.Wrap(err, "inserting answer")
		}
	}
	return nil
}

func (repo assessmentRepository) CreateSubmission(ctx context.Context, s assessment.Submission) (assessment.Submission, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return assessment.Submission{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO submissions (assessment_id, user_id, score, max_score, graded, graded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err = tx.QueryRowContext(ctx, query,
		s.AssessmentID, s.UserID, s.Score, s.MaxScore, s.Graded, s.GradedBy, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		return assessment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	if err = repo.saveAnswers(ctx, tx, s.ID, s.Answers); err != nil {
		return assessment.Submission{}, err
	}
	if err = tx.Commit(); err != nil {
		return assessment.Submission{}, errors.Wrap(err, "committing submission")
	}
	return s, nil
}

func (repo assessmentRepository) getSubmission(ctx context.Context, query string, args ...interface{}) (assessment.Submission, error) {
	var r submissionRow
	if err := repo.db.GetContext(ctx, &r, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return assessment.Submission{}, assessment.ErrSubmissionNotFound
		}
		return assessment.Submission{}, errors.Wrap(err, "getting submission")
	}
	s := r.submission()
	answers, err := repo.answersFor(ctx, s.ID)
	if err != nil {
		return assessment.Submission{}, err
	}
	s.Answers = answers
	return s, nil
}

func (repo assessmentRepository) GetSubmission(ctx context.Context, assessmentID, userID int) (assessment.Submission, error) {
	return repo.getSubmission(ctx, `SELECT * FROM submissions WHERE assessment_id = $1 AND user_id = $2`, assessmentID, userID)
}

func (repo assessmentRepository) GetSubmissionByID(ctx context.Context, id int) (assessment.Submission, error) {
	return repo.getSubmission(ctx, `SELECT * FROM submissions WHERE id = $1`, id)
}

func (repo assessmentRepository) QuerySubmissionsByAssessment(ctx context.Context, assessmentID int) ([]assessment.Submission, error) {
	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM submissions WHERE assessment_id = $1 ORDER BY id`, assessmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]assessment.Submission, 0, len(rows))
	for _, r := range rows {
		s := r.submission()
		answers, err := repo.answersFor(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Answers = answers
		subs = append(subs, s)
	}
	return subs, nil
}

func (repo assessmentRepository) UpdateSubmission(ctx context.Context, s assessment.Submission) (assessment.Submission, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return assessment.Submission{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE submissions SET score = $2, graded = $3, graded_by = $4, updated_at = $5
		WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, s.ID, s.Score, s.Graded, s.GradedBy, s.UpdatedAt)
	if err != nil {
		return assessment.Submission{}, errors.Wrap(err, "updating submission")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assessment.Submission{}, assessment.ErrSubmissionNotFound
	}
	if err = repo.saveAnswers(ctx, tx, s.ID, s.Answers); err != nil {
		return assessment.Submission{}, err
	}
	if err = tx.Commit(); err != nil {
		return assessment.Submission{}, errors.Wrap(err, "committing submission")
	}
	return s, nil
}
