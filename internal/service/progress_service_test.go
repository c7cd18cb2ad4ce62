package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/cache"
	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/progress"
	"github.com/Freeeeeet/driving_booking/internal/repository/memory"
	"github.com/Freeeeeet/driving_booking/internal/service"
)

// pausingBookings останавливает первое чтение завершённых записей после того,
// как данные уже прочитаны, и ждёт сигнала продолжить
type pausingBookings struct {
	service.BookingStore
	paused atomic.Bool
	read   chan struct{}
	resume chan struct{}
}

func (b *pausingBookings) ListCompletedByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	out, err := b.BookingStore.ListCompletedByStudent(ctx, studentID)
	if b.paused.CompareAndSwap(false, true) {
		close(b.read)
		<-b.resume
	}
	return out, err
}

func TestSummarizeDoesNotCacheSummaryInvalidatedMidRead(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	booking := &model.Booking{
		StudentID:  1,
		ScheduleID: 10,
		TeacherID:  2,
		LessonType: model.LessonTypePractical,
		Date:       "2026-03-02",
		StartTime:  "10:00",
		EndTime:    "11:00",
		Status:     model.BookingStatusConfirmed,
	}
	require.NoError(t, store.Bookings().Create(ctx, booking))

	bookings := &pausingBookings{
		BookingStore: store.Bookings(),
		read:         make(chan struct{}),
		resume:       make(chan struct{}),
	}
	progressCache := cache.NewMemoryProgress(time.Hour)
	svc := service.NewProgressService(bookings, progressCache, progress.Thresholds{MinHours: 1, MinRating: 3}, zap.NewNop())

	type result struct {
		sp  *model.StudentProgress
		err error
	}
	done := make(chan result, 1)
	go func() {
		sp, err := svc.Summarize(ctx, 1)
		done <- result{sp, err}
	}()

	<-bookings.read
	// занятие завершается, пока сводка ещё считается по старым данным
	require.NoError(t, store.Bookings().MarkCompleted(ctx, booking.ID, model.Completion{
		HoursCompleted:    1.5,
		PerformanceRating: 4,
	}, time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)))
	svc.Invalidate(ctx, 1)
	close(bookings.resume)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 0, res.sp.TotalLessons)

	cached, err := progressCache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, cached, "stale summary must not outlive the invalidation")

	fresh, err := svc.Summarize(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TotalLessons)
	assert.InDelta(t, 1.5, fresh.TotalHours, 1e-9)

	cached, err = progressCache.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 1, cached.TotalLessons)
}

func TestSummarizeServesCachedSummary(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	progressCache := cache.NewMemoryProgress(time.Hour)
	svc := service.NewProgressService(store.Bookings(), progressCache, progress.Thresholds{}, zap.NewNop())

	require.NoError(t, progressCache.Set(ctx, &model.StudentProgress{StudentID: 5, TotalLessons: 9}, 0))

	sp, err := svc.Summarize(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 9, sp.TotalLessons)

	svc.Invalidate(ctx, 5)
	sp, err = svc.Summarize(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, sp.TotalLessons)
}
