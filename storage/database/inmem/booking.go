package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/darasahq/darasa/core/booking"
)

var bookingPkCount int

type bookingRepository struct {
	db *bookingTable
}

var _ booking.Repository = (*bookingRepository)(nil)

func NewBookingRepository(db *DB) booking.Repository {
	return &bookingRepository{db: db.booking}
}

func (repo *bookingRepository) CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	bookingPkCount++
	b.ID = bookingPkCount
	repo.db.table[b.ID] = &b
	return b, nil
}

func (repo *bookingRepository) GetBookingByID(ctx context.Context, id int) (booking.Booking, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if b, ok := repo.db.table[id]; ok {
		return *b, nil
	}
	return booking.Booking{}, booking.ErrNotFound
}

func (repo *bookingRepository) QueryBookingsByOrg(ctx context.Context, orgID int) ([]booking.Booking, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var bookings []booking.Booking
	for _, b := range repo.db.table {
		if b.OrgID == orgID {
			bookings = append(bookings, *b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
	return bookings, nil
}

func (repo *bookingRepository) QueryHostBookings(ctx context.Context, hostID int, from time.Time) ([]booking.Booking, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var bookings []booking.Booking
	for _, b := range repo.db.table {
		if b.HostID == hostID && b.Status == booking.StatusConfirmed && b.EndsAt.After(from) {
			bookings = append(bookings, *b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].StartsAt.Before(bookings[j].StartsAt) })
	return bookings, nil
}

func (repo *bookingRepository) UpdateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[b.ID]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	orig.Status = b.Status
	orig.UpdatedAt = b.UpdatedAt
	return *orig, nil
}
