package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core/booking"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

func newTestService(t *testing.T) *booking.Service {
	t.Helper()
	return booking.NewService(inmemdb.NewBookingRepository(inmemdb.NewDB()))
}

func newBooking(hostID int, startsIn, length time.Duration) booking.NewBooking {
	start := time.Now().Add(startsIn).UTC()
	return booking.NewBooking{
		HostID:    hostID,
		LearnerID: 10,
		Topic:     "Office hours",
		StartsAt:  start,
		EndsAt:    start.Add(length),
		OrgID:     1,
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	b, err := svc.Create(ctx, newBooking(1, time.Hour, 30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)

	t.Run("in the past", func(t *testing.T) {
		_, err := svc.Create(ctx, newBooking(1, -time.Hour, 30*time.Minute))
		assert.Equal(t, booking.ErrPast, errors.Cause(err))
	})

	t.Run("overlap for the same host", func(t *testing.T) {
		// starts inside the existing range
		_, err := svc.Create(ctx, newBooking(1, 70*time.Minute, 30*time.Minute))
		assert.Equal(t, booking.ErrOverlap, errors.Cause(err))
	})

	t.Run("another host in the same range", func(t *testing.T) {
		_, err := svc.Create(ctx, newBooking(2, 70*time.Minute, 30*time.Minute))
		assert.NoError(t, err)
	})

	t.Run("back to back slots do not collide", func(t *testing.T) {
		// [start, end) intervals: the next slot may begin exactly at the
		// previous one's end
		_, err := svc.Create(ctx, newBooking(1, 90*time.Minute, 30*time.Minute))
		assert.NoError(t, err)
	})
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	b, err := svc.Create(ctx, newBooking(1, time.Hour, 30*time.Minute))
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)

	t.Run("twice", func(t *testing.T) {
		_, err := svc.Cancel(ctx, b.ID)
		assert.Equal(t, booking.ErrCancelled, errors.Cause(err))
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := svc.Cancel(ctx, 99999)
		assert.Equal(t, booking.ErrNotFound, errors.Cause(err))
	})

	t.Run("cancelled slot frees the range", func(t *testing.T) {
		_, err := svc.Create(ctx, newBooking(1, time.Hour, 30*time.Minute))
		assert.NoError(t, err)
	})
}
