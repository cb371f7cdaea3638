package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/pkg/cache"
)

type failingStore struct{ cache.Store }

func (failingStore) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func orderLoader(orders map[uint]*models.Order) func(uint) (*models.Order, error) {
	return func(id uint) (*models.Order, error) {
		if o, ok := orders[id]; ok {
			return o, nil
		}
		return nil, ErrNotFound
	}
}

func TestIdempotencyReplay(t *testing.T) {
	ctx := context.Background()
	idem := NewIdempotency(cache.NewMemoryStore(), time.Hour)
	placed := &models.Order{}
	placed.ID = 7
	calls := 0
	place := func() (*models.Order, error) { calls++; return placed, nil }
	load := orderLoader(map[uint]*models.Order{7: placed})

	o, replayed, err := idem.Do(ctx, 1, "k", place, load)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Same(t, placed, o)

	o, replayed, err = idem.Do(ctx, 1, "k", place, load)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, uint(7), o.ID)
	assert.Equal(t, 1, calls)

	// Keys are scoped per user.
	_, replayed, err = idem.Do(ctx, 2, "k", place, load)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyInFlightDuplicate(t *testing.T) {
	ctx := context.Background()
	idem := NewIdempotency(cache.NewMemoryStore(), time.Hour)
	load := orderLoader(nil)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, _, err := idem.Do(ctx, 1, "k", func() (*models.Order, error) {
			close(started)
			<-release
			return &models.Order{}, nil
		}, load)
		done <- err
	}()

	<-started
	_, _, err := idem.Do(ctx, 1, "k", func() (*models.Order, error) {
		t.Fatal("second request must not run")
		return nil, nil
	}, load)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	close(release)
	assert.NoError(t, <-done)
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	ctx := context.Background()
	idem := NewIdempotency(cache.NewMemoryStore(), time.Hour)
	load := orderLoader(nil)

	_, _, err := idem.Do(ctx, 1, "k", func() (*models.Order, error) { return nil, ErrEmptyCart }, load)
	assert.ErrorIs(t, err, ErrEmptyCart)

	o, replayed, err := idem.Do(ctx, 1, "k", func() (*models.Order, error) { return &models.Order{}, nil }, load)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotNil(t, o)
}

func TestIdempotencyKeyTooLong(t *testing.T) {
	idem := NewIdempotency(cache.NewMemoryStore(), time.Hour)
	_, _, err := idem.Do(context.Background(), 1, strings.Repeat("x", 129), func() (*models.Order, error) {
		t.Fatal("must not run")
		return nil, nil
	}, orderLoader(nil))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "Idempotency-Key")
}

func TestIdempotencyFailsOpen(t *testing.T) {
	idem := NewIdempotency(failingStore{cache.NewMemoryStore()}, time.Hour)
	calls := 0
	for i := 0; i < 2; i++ {
		_, replayed, err := idem.Do(context.Background(), 1, "k", func() (*models.Order, error) {
			calls++
			return &models.Order{}, nil
		}, orderLoader(nil))
		require.NoError(t, err)
		assert.False(t, replayed)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyNilAndEmptyKey(t *testing.T) {
	var idem *Idempotency
	o, replayed, err := idem.Do(context.Background(), 1, "k", func() (*models.Order, error) { return &models.Order{}, nil }, nil)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotNil(t, o)
}
