package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/billing"
)

type invoiceRow struct {
	ID          int       `db:"id"`
	OrgID       int       `db:"org_id"`
	Reference   string    `db:"reference"`
	Description string    `db:"description"`
	Amount      int64     `db:"amount"`
	Currency    string    `db:"currency"`
	Status      string    `db:"status"`
	PaidAt      null.Time `db:"paid_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r invoiceRow) invoice() billing.Invoice {
	return billing.Invoice{
		ID:          r.ID,
		OrgID:       r.OrgID,
		Reference:   r.Reference,
		Description: r.Description,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Status:      billing.InvoiceStatus(r.Status),
		PaidAt:      r.PaidAt.Time,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type billingRepository struct {
	db *sqlx.DB
}

var _ billing.Repository = (*billingRepository)(nil)

func NewBillingRepository(db *sqlx.DB) *billingRepository {
	return &billingRepository{db: db}
}

func (repo billingRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return billing.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo billingRepository) CreateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	query := `
		INSERT INTO invoices (org_id, reference, description, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		inv.OrgID, inv.Reference, inv.Description, inv.Amount, inv.Currency, inv.Status, inv.CreatedAt, inv.UpdatedAt,
	).Scan(&inv.ID)
	if err != nil {
		return billing.Invoice{}, errors.Wrap(err, "inserting invoice")
	}
	return inv, nil
}

func (repo billingRepository) QueryInvoicesByOrg(ctx context.Context, orgID int) ([]billing.Invoice, error) {
	var rows []invoiceRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM invoices WHERE org_id = $1 ORDER BY id`, orgID); err != nil {
		return nil, errors.Wrap(err, "querying invoices")
	}
	invs := make([]billing.Invoice, 0, len(rows))
	for _, r := range rows {
		invs = append(invs, r.invoice())
	}
	return invs, nil
}

func (repo billingRepository) GetInvoiceByID(ctx context.Context, id int) (billing.Invoice, error) {
	var r invoiceRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM invoices WHERE id = $1`, id); err != nil {
		return billing.Invoice{}, repo.trapNoRowsErr(err, "getting invoice")
	}
	return r.invoice(), nil
}

func (repo billingRepository) GetInvoiceByReference(ctx context.Context, ref string) (billing.Invoice, error) {
	var r invoiceRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM invoices WHERE reference = $1`, ref); err != nil {
		return billing.Invoice{}, repo.trapNoRowsErr(err, "getting invoice")
	}
	return r.invoice(), nil
}

func (repo billingRepository) UpdateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	query := `
		UPDATE invoices SET status = $2, paid_at = $3, updated_at = $4
		WHERE id = $1
		RETURNING *`
	paidAt := null.NewTime(inv.PaidAt, !inv.PaidAt.IsZero())
	var r invoiceRow
	if err := repo.db.GetContext(ctx, &r, query, inv.ID, inv.Status, paidAt, inv.UpdatedAt); err != nil {
		return billing.Invoice{}, repo.trapNoRowsErr(err, "updating invoice")
	}
	return r.invoice(), nil
}
