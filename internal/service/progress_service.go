package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/progress"
)

// ProgressService кэшируемое представление прогресса студента.
// Источник истины всегда завершённые записи, кэш только ускоряет чтение.
type ProgressService struct {
	bookings   BookingStore
	cache      ProgressCache
	thresholds progress.Thresholds
	logger     *zap.Logger
}

func NewProgressService(bookings BookingStore, cache ProgressCache, th progress.Thresholds, logger *zap.Logger) *ProgressService {
	return &ProgressService{
		bookings:   bookings,
		cache:      cache,
		thresholds: th,
		logger:     logger,
	}
}

// Summarize возвращает сводку из кэша или пересчитывает её
func (s *ProgressService) Summarize(ctx context.Context, studentID int64) (*model.StudentProgress, error) {
	// поколение читается до запроса к БД: если завершение успеет инвалидировать
	// кэш, пока мы считаем, посчитанная сводка в кэш не попадёт
	cacheable := false
	var gen int64
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, studentID)
		if err != nil {
			s.logger.Warn("Progress cache read failed", zap.Int64("student_id", studentID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}

		if gen, err = s.cache.Generation(ctx, studentID); err != nil {
			s.logger.Warn("Progress cache generation read failed", zap.Int64("student_id", studentID), zap.Error(err))
		} else {
			cacheable = true
		}
	}

	completed, err := s.bookings.ListCompletedByStudent(ctx, studentID)
	if err != nil {
		return nil, storeErr("progress.Summarize", err)
	}

	summary := progress.Summarize(studentID, completed, s.thresholds)

	if cacheable {
		if err := s.cache.Set(ctx, &summary, gen); err != nil {
			s.logger.Warn("Progress cache write failed", zap.Int64("student_id", studentID), zap.Error(err))
		}
	}

	return &summary, nil
}

// Invalidate сбрасывает сводку после завершения или отмены записи
func (s *ProgressService) Invalidate(ctx context.Context, studentID int64) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, studentID); err != nil {
		s.logger.Error("Progress cache invalidation failed", zap.Int64("student_id", studentID), zap.Error(err))
	}
}
