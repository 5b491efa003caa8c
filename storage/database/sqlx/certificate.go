package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/certificate"
)

type certificateRow struct {
	ID       int       `db:"id"`
	OrgID    int       `db:"org_id"`
	CourseID int       `db:"course_id"`
	UserID   int       `db:"user_id"`
	Serial   string    `db:"serial"`
	Code     string    `db:"code"`
	IssuedAt time.Time `db:"issued_at"`
}

func (r certificateRow) certificate() certificate.Certificate {
	return certificate.Certificate{
		ID:       r.ID,
		OrgID:    r.OrgID,
		CourseID: r.CourseID,
		UserID:   r.UserID,
		Serial:   r.Serial,
		Code:     r.Code,
		IssuedAt: r.IssuedAt,
	}
}

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *sqlx.DB) *certificateRepository {
	return &certificateRepository{db: db}
}

func (repo certificateRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return certificate.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo certificateRepository) CreateCertificate(ctx context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	query := `
		INSERT INTO certificates (org_id, course_id, user_id, serial, code, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		c.OrgID, c.CourseID, c.UserID, c.Serial, c.Code, c.IssuedAt,
	).Scan(&c.ID)
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	return c, nil
}

func (repo certificateRepository) GetCertificateBySerial(ctx context.Context, serial string) (certificate.Certificate, error) {
	var r certificateRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM certificates WHERE serial = $1`, serial); err != nil {
		return certificate.Certificate{}, repo.trapNoRowsErr(err, "getting certificate")
	}
	return r.certificate(), nil
}

func (repo certificateRepository) GetCertificateByEnrollment(ctx context.Context, courseID, userID int) (certificate.Certificate, error) {
	var r certificateRow
	err := repo.db.GetContext(ctx, &r, `SELECT * FROM certificates WHERE course_id = $1 AND user_id = $2`, courseID, userID)
	if err != nil {
		return certificate.Certificate{}, repo.trapNoRowsErr(err, "getting certificate")
	}
	return r.certificate(), nil
}

func (repo certificateRepository) QueryCertificatesByUser(ctx context.Context, userID int) ([]certificate.Certificate, error) {
	var rows []certificateRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM certificates WHERE user_id = $1 ORDER BY id`, userID); err != nil {
		return nil, errors.Wrap(err, "querying certificates")
	}
	certs := make([]certificate.Certificate, 0, len(rows))
	for _, r := range rows {
		certs = append(certs, r.certificate())
	}
	return certs, nil
}
