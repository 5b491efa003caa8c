package booking

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound  = errors.New("booking not found")
	ErrOverlap   = errors.New("the host already has a booking in this time range")
	ErrPast      = errors.New("bookings cannot start in the past")
	ErrCancelled = errors.New("booking is already cancelled")
)

type (
	Repository interface {
		CreateBooking(ctx context.Context, b Booking) (Booking, error)
		GetBookingByID(ctx context.Context, id int) (Booking, error)
		QueryBookingsByOrg(ctx context.Context, orgID int) ([]Booking, error)
		// QueryHostBookings returns confirmed bookings for a host that end
		// after `from`.
		QueryHostBookings(ctx context.Context, hostID int, from time.Time) ([]Booking, error)
		UpdateBooking(ctx context.Context, b Booking) (Booking, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create books a session, rejecting time-range overlaps for the same host.
func (svc *Service) Create(ctx context.Context, nb NewBooking) (Booking, error) {
	now := time.Now().UTC()
	if nb.StartsAt.Before(now) {
		return Booking{}, ErrPast
	}

	b := Booking{
		OrgID:     nb.OrgID,
		HostID:    nb.HostID,
		LearnerID: nb.LearnerID,
		Topic:     nb.Topic,
		StartsAt:  nb.StartsAt.UTC(),
		EndsAt:    nb.EndsAt.UTC(),
		Status:    StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := svc.repo.QueryHostBookings(ctx, nb.HostID, now)
	if err != nil {
		return Booking{}, errors.Wrap(err, "querying host bookings")
	}
	for _, other := range existing {
		if b.Overlaps(other) {
			return Booking{}, ErrOverlap
		}
	}

	return svc.repo.CreateBooking(ctx, b)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Booking, error) {
	return svc.repo.GetBookingByID(ctx, id)
}

func (svc *Service) QueryByOrg(ctx context.Context, orgID int) ([]Booking, error) {
	return svc.repo.QueryBookingsByOrg(ctx, orgID)
}

// Cancel marks a booking cancelled; cancelling twice fails.
func (svc *Service) Cancel(ctx context.Context, id int) (Booking, error) {
	b, err := svc.repo.GetBookingByID(ctx, id)
	if err != nil {
		return Booking{}, err
	}
	if b.Status == StatusCancelled {
		return Booking{}, ErrCancelled
	}
	b.Status = StatusCancelled
	b.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateBooking(ctx, b)
}
