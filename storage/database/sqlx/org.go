package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/org"
)

type orgRow struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r orgRow) org() org.Organization {
	return org.Organization{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type orgRepository struct {
	db *sqlx.DB
}

var _ org.Repository = (*orgRepository)(nil)

func NewOrgRepository(db *sqlx.DB) *orgRepository {
	return &orgRepository{db: db}
}

func (repo orgRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return org.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo orgRepository) CheckOrgNameUniqueness(ctx context.Context, name string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM organizations WHERE name = $1)`, name)
	if err != nil {
		return errors.Wrap(err, "checking org uniqueness")
	}
	if exists {
		return org.ErrNameExists
	}
	return nil
}

func (repo orgRepository) CreateOrg(ctx context.Context, o org.Organization) (org.Organization, error) {
	query := `
		INSERT INTO organizations (name, email, phone, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		o.Name, o.Email, o.Phone, o.IsActive, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return org.Organization{}, errors.Wrap(err, "inserting organization")
	}
	return o, nil
}

func (repo orgRepository) QueryAllOrgs(ctx context.Context) ([]org.Organization, error) {
	var rows []orgRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM organizations ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying organizations")
	}
	orgs := make([]org.Organization, 0, len(rows))
	for _, r := range rows {
		orgs = append(orgs, r.org())
	}
	return orgs, nil
}

func (repo orgRepository) GetOrgByID(ctx context.Context, id int) (org.Organization, error) {
	var r orgRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM organizations WHERE id = $1`, id); err != nil {
		return org.Organization{}, repo.trapNoRowsErr(err, "getting organization")
	}
	return r.org(), nil
}

func (repo orgRepository) UpdateOrg(ctx context.Context, o org.Organization, isActive *bool) (org.Organization, error) {
	query := `
		UPDATE organizations SET
			name = COALESCE(NULLIF($2, ''), name),
			email = COALESCE(NULLIF($3, ''), email),
			phone = COALESCE(NULLIF($4, ''), phone),
			is_active = COALESCE($5, is_active),
			updated_at = $6
		WHERE id = $1
		RETURNING *`
	var r orgRow
	err := repo.db.GetContext(ctx, &r, query, o.ID, o.Name, o.Email, o.Phone, null.BoolFromPtr(isActive), o.UpdatedAt)
	if err != nil {
		return org.Organization{}, repo.trapNoRowsErr(err, "updating organization")
	}
	return r.org(), nil
}

func (repo orgRepository) DeleteOrgsByID(ctx context.Context, ids ...int) error {
	query, args, err := sqlx.In(`DELETE FROM organizations WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting organizations")
	}
	return nil
}
