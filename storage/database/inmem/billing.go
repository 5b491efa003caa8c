package inmemdb

import (
	"context"
	"sort"

	"github.com/darasahq/darasa/core/billing"
)

var invoicePkCount int

type billingRepository struct {
	db *billingTable
}

var _ billing.Repository = (*billingRepository)(nil)

func NewBillingRepository(db *DB) billing.Repository {
	return &billingRepository{db: db.billing}
}

func (repo *billingRepository) CreateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	invoicePkCount++
	inv.ID = invoicePkCount
	repo.db.table[inv.ID] = &inv
	return inv, nil
}

func (repo *billingRepository) QueryInvoicesByOrg(ctx context.Context, orgID int) ([]billing.Invoice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var invs []billing.Invoice
	for _, inv := range repo.db.table {
		if inv.OrgID == orgID {
			invs = append(invs, *inv)
		}
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].ID < invs[j].ID })
	return invs, nil
}

func (repo *billingRepository) GetInvoiceByID(ctx context.Context, id int) (billing.Invoice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inv, ok := repo.db.table[id]; ok {
		return *inv, nil
	}
	return billing.Invoice{}, billing.ErrNotFound
}

func (repo *billingRepository) GetInvoiceByReference(ctx context.Context, ref string) (billing.Invoice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, inv := range repo.db.table {
		if inv.Reference == ref {
			return *inv, nil
		}
	}
	return billing.Invoice{}, billing.ErrNotFound
}

func (repo *billingRepository) UpdateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[inv.ID]
	if !ok {
		return billing.Invoice{}, billing.ErrNotFound
	}
	orig.Status = inv.Status
	orig.PaidAt = inv.PaidAt
	orig.UpdatedAt = inv.UpdatedAt
	return *orig, nil
}
