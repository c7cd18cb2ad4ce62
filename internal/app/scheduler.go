package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FormCloser закрывает формы записи на экзамен с прошедшей датой
type FormCloser interface {
	CloseExpiredForms(ctx context.Context) (int64, error)
}

// FormCloserFunc адаптер функции к FormCloser
type FormCloserFunc func(ctx context.Context) (int64, error)

func (f FormCloserFunc) CloseExpiredForms(ctx context.Context) (int64, error) {
	return f(ctx)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	forms    FormCloser
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(forms FormCloser, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		forms:    forms,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("form_close_interval", s.interval))

	s.done.Add(1)
	go s.runFormCloseTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.done.Wait()
}

// runFormCloseTask периодически закрывает просроченные формы
func (s *Scheduler) runFormCloseTask(ctx context.Context) {
	defer s.done.Done()

	// Первый запуск сразу при старте
	s.closeExpiredForms(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.closeExpiredForms(ctx)
		case <-s.stopChan:
			s.logger.Info("Form close task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Form close task cancelled")
			return
		}
	}
}

func (s *Scheduler) closeExpiredForms(ctx context.Context) {
	closed, err := s.forms.CloseExpiredForms(ctx)
	if err != nil {
		s.logger.Error("Failed to close expired exam forms", zap.Error(err))
		return
	}

	if closed > 0 {
		s.logger.Info("Expired exam forms closed", zap.Int64("count", closed))
	}
}
