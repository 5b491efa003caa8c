package booking

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// BookingStatus is the closed set of booking states.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// Booking schedules a session between a host (staff) and a learner.
type Booking struct {
	ID        int           `json:"id"`
	OrgID     int           `json:"org_id"`
	HostID    int           `json:"host_id"`
	LearnerID int           `json:"learner_id"`
	Topic     string        `json:"topic"`
	StartsAt  time.Time     `json:"starts_at"` // UTC
	EndsAt    time.Time     `json:"ends_at"`   // UTC
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"` // UTC
	UpdatedAt time.Time     `json:"updated_at"` // UTC
}

// Overlaps reports whether two half-open intervals [StartsAt, EndsAt) collide.
func (b Booking) Overlaps(other Booking) bool {
	return b.StartsAt.Before(other.EndsAt) && other.StartsAt.Before(b.EndsAt)
}

type NewBooking struct {
	HostID    int       `json:"host_id" validate:"required"`
	LearnerID int       `json:"learner_id" validate:"required"`
	Topic     string    `json:"topic" validate:"required"`
	StartsAt  time.Time `json:"starts_at" validate:"required"`
	EndsAt    time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	OrgID     int       `json:"-"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.Topic = core.CleanString(nb.Topic)
	return validate.Struct(nb)
}
