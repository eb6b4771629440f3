package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monobot/internal/models"
)

func TestGetLoadsOnceAndCaches(t *testing.T) {
	var calls int64
	c := NewCache(func(ctx context.Context, id int64) (*models.User, error) {
		atomic.AddInt64(&calls, 1)
		return &models.User{TelegramID: id, Username: "olena"}, nil
	})

	u, err := c.Get(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "olena", u.Username)

	u2, err := c.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Same(t, u, u2)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestGetMissingUserNotCached(t *testing.T) {
	var calls int64
	c := NewCache(func(ctx context.Context, id int64) (*models.User, error) {
		atomic.AddInt64(&calls, 1)
		return nil, nil
	})

	u, err := c.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = c.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls), "absent users must be re-checked")
	assert.Equal(t, 0, c.Len())
}

func TestGetLoadErrorNotCached(t *testing.T) {
	boom := errors.New("db down")
	c := NewCache(func(ctx context.Context, id int64) (*models.User, error) {
		return nil, boom
	})

	_, err := c.Get(context.Background(), 1)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentMissesCollapse(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int64
	c := NewCache(func(ctx context.Context, id int64) (*models.User, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return &models.User{TelegramID: id}, nil
	})

	const n = 8
	var wg sync.WaitGroup
	results := make([]*models.User, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := c.Get(context.Background(), 99)
			assert.NoError(t, err)
			results[i] = u
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
	for _, u := range results {
		require.NotNil(t, u)
		assert.EqualValues(t, 99, u.TelegramID)
	}
}

func TestPutInvalidatePurge(t *testing.T) {
	c := NewCache(func(ctx context.Context, id int64) (*models.User, error) {
		t.Fatal("loader must not run")
		return nil, nil
	})

	c.Put(&models.User{TelegramID: 1})
	c.Put(&models.User{TelegramID: 2})
	assert.Equal(t, 2, c.Len())
	assert.Len(t, c.Snapshot(), 2)

	c.Invalidate(1)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}
