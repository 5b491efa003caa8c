package inmemdb

import (
	"context"
	"sort"

	"github.com/darasahq/darasa/core/certificate"
)

var certificatePkCount int

type certificateRepository struct {
	db *certificateTable
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db.certificate}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	certificatePkCount++
	c.ID = certificatePkCount
	repo.db.table[c.ID] = &c
	return c, nil
}

func (repo *certificateRepository) GetCertificateBySerial(ctx context.Context, serial string) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, c := range repo.db.table {
		if c.Serial == serial {
			return *c, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetCertificateByEnrollment(ctx context.Context, courseID, userID int) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, c := range repo.db.table {
		if c.CourseID == courseID && c.UserID == userID {
			return *c, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) QueryCertificatesByUser(ctx context.Context, userID int) ([]certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var certs []certificate.Certificate
	for _, c := range repo.db.table {
		if c.UserID == userID {
			certs = append(certs, *c)
		}
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].ID < certs[j].ID })
	return certs, nil
}
