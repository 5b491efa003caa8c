package inmemdb

import (
	"context"
	"sort"

	"github.com/darasahq/darasa/core/org"
)

var orgPkCount int

type orgRepository struct {
	db *orgTable
}

var _ org.Repository = (*orgRepository)(nil)

func NewOrgRepository(db *DB) org.Repository {
	return &orgRepository{db: db.org}
}

func (repo *orgRepository) query() []org.Organization {
	orgs := make([]org.Organization, 0, len(repo.db.table))
	for _, o := range repo.db.table {
		orgs = append(orgs, *o)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].ID < orgs[j].ID })
	return orgs
}

func (repo *orgRepository) CheckOrgNameUniqueness(ctx context.Context, name string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, o := range repo.query() {
		if o.Name == name {
			return org.ErrNameExists
		}
	}
	return nil
}

func (repo *orgRepository) CreateOrg(ctx context.Context, o org.Organization) (org.Organization, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orgPkCount++
	o.ID = orgPkCount
	repo.db.table[o.ID] = &o
	return o, nil
}

func (repo *orgRepository) QueryAllOrgs(ctx context.Context) ([]org.Organization, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *orgRepository) GetOrgByID(ctx context.Context, id int) (org.Organization, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if o, ok := repo.db.table[id]; ok {
		return *o, nil
	}
	return org.Organization{}, org.ErrNotFound
}

func (repo *orgRepository) UpdateOrg(ctx context.Context, o org.Organization, isActive *bool) (org.Organization, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[o.ID]
	if !ok {
		return org.Organization{}, org.ErrNotFound
	}

	if o.Name != "" {
		orig.Name = o.Name
	}
	if o.Email != "" {
		orig.Email = o.Email
	}
	if o.Phone != "" {
		orig.Phone = o.Phone
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.UpdatedAt = o.UpdatedAt
	return *orig, nil
}

func (repo *orgRepository) DeleteOrgsByID(ctx context.Context, ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
