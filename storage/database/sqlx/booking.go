package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/booking"
)

type bookingRow struct {
	ID        int       `db:"id"`
	OrgID     int       `db:"org_id"`
	HostID    int       `db:"host_id"`
	LearnerID int       `db:"learner_id"`
	Topic     string    `db:"topic"`
	StartsAt  time.Time `db:"starts_at"`
	EndsAt    time.Time `db:"ends_at"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r bookingRow) booking() booking.Booking {
	return booking.Booking{
		ID:        r.ID,
		OrgID:     r.OrgID,
		HostID:    r.HostID,
		LearnerID: r.LearnerID,
		Topic:     r.Topic,
		StartsAt:  r.StartsAt,
		EndsAt:    r.EndsAt,
		Status:    booking.BookingStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type bookingRepository struct {
	db *sqlx.DB
}

var _ booking.Repository = (*bookingRepository)(nil)

func NewBookingRepository(db *sqlx.DB) *bookingRepository {
	return &bookingRepository{db: db}
}

func (repo bookingRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return booking.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo bookingRepository) CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	query := `
		INSERT INTO bookings (org_id, host_id, learner_id, topic, starts_at, ends_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		b.OrgID, b.HostID, b.LearnerID, b.Topic, b.StartsAt, b.EndsAt, b.Status, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "inserting booking")
	}
	return b, nil
}

func (repo bookingRepository) GetBookingByID(ctx context.Context, id int) (booking.Booking, error) {
	var r bookingRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM bookings WHERE id = $1`, id); err != nil {
		return booking.Booking{}, repo.trapNoRowsErr(err, "getting booking")
	}
	return r.booking(), nil
}

func (repo bookingRepository) QueryBookingsByOrg(ctx context.Context, orgID int) ([]booking.Booking, error) {
	var rows []bookingRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM bookings WHERE org_id = $1 ORDER BY id`, orgID); err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, r.booking())
	}
	return bookings, nil
}

func (repo bookingRepository) QueryHostBookings(ctx context.Context, hostID int, from time.Time) ([]booking.Booking, error) {
	query := `
		SELECT * FROM bookings
		WHERE host_id = $1 AND status = $2 AND ends_at > $3
		ORDER BY starts_at`
	var rows []bookingRow
	if err := repo.db.SelectContext(ctx, &rows, query, hostID, booking.StatusConfirmed, from); err != nil {
		return nil, errors.Wrap(err, "querying host bookings")
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, r.booking())
	}
	return bookings, nil
}

func (repo bookingRepository) UpdateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	query := `
		UPDATE bookings SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING *`
	var r bookingRow
	if err := repo.db.GetContext(ctx, &r, query, b.ID, b.Status, b.UpdatedAt); err != nil {
		return booking.Booking{}, repo.trapNoRowsErr(err, "updating booking")
	}
	return r.booking(), nil
}
