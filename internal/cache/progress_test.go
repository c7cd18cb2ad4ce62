package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/driving_booking/internal/model"
)

func TestProgressKey(t *testing.T) {
	assert.Equal(t, "progress:42", ProgressKey(42))
	assert.Equal(t, "progress:gen:42", ProgressGenKey(42))
}

func TestMemoryProgress(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	c := NewMemoryProgress(time.Minute)
	c.now = func() time.Time { return now }

	got, err := c.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, &model.StudentProgress{StudentID: 7, TotalLessons: 3}, 0))

	got, err = c.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.TotalLessons)

	now = now.Add(2 * time.Minute)
	got, err = c.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry")

	require.NoError(t, c.Set(ctx, &model.StudentProgress{StudentID: 7}, 0))
	require.NoError(t, c.Invalidate(ctx, 7))
	got, err = c.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryProgressStaleGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryProgress(time.Hour)

	gen, err := c.Generation(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, 7))

	require.NoError(t, c.Set(ctx, &model.StudentProgress{StudentID: 7, TotalLessons: 1}, gen))
	got, err := c.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got, "summary computed before invalidation must not be stored")

	fresh, err := c.Generation(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, gen+1, fresh)

	require.NoError(t, c.Set(ctx, &model.StudentProgress{StudentID: 7, TotalLessons: 2}, fresh))
	got, err = c.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.TotalLessons)
}
