package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/events"
	"github.com/Freeeeeet/driving_booking/internal/metrics"
	"github.com/Freeeeeet/driving_booking/internal/progress"
	"github.com/Freeeeeet/driving_booking/internal/repository"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
	"github.com/Freeeeeet/driving_booking/internal/repository/memory"
	"github.com/Freeeeeet/driving_booking/internal/service"
)

// Stores набор хранилищ, на которых собирается движок
type Stores struct {
	Tx       service.Transactor
	Slots    service.SlotStore
	Bookings service.BookingStore
	Forms    service.ExamFormStore
	Requests service.ExamRequestStore
	Groups   service.GroupDirectory
}

// PostgresStores хранилища поверх общего базового репозитория
func PostgresStores(b *base.Repository) Stores {
	return Stores{
		Tx:       b,
		Slots:    repository.NewSlotRepository(b),
		Bookings: repository.NewBookingRepository(b),
		Forms:    repository.NewExamFormRepository(b),
		Requests: repository.NewExamRequestRepository(b),
		Groups:   repository.NewUserRepository(b),
	}
}

// MemoryStores хранилища в памяти процесса
func MemoryStores(s *memory.Store) Stores {
	return Stores{
		Tx:       s,
		Slots:    s.Slots(),
		Bookings: s.Bookings(),
		Forms:    s.ExamForms(),
		Requests: s.ExamRequests(),
		Groups:   s,
	}
}

// Options настройки бизнес-правил и побочных эффектов
type Options struct {
	Now              func() time.Time
	Location         *time.Location
	LeadTime         time.Duration
	Thresholds       progress.Thresholds
	RequireReadiness bool
	ProgressCache    service.ProgressCache
	Publisher        events.Publisher
	Metrics          *metrics.Metrics
}

// Build собирает сервисы и движок
func Build(st Stores, opts Options, logger *zap.Logger) *Engine {
	clock := service.NewClock(opts.Now, opts.Location)
	notifier := service.NewNotifier(opts.Publisher, opts.Metrics, logger)

	slots := service.NewSlotService(st.Tx, st.Slots, st.Groups, clock, logger)
	progressSvc := service.NewProgressService(st.Bookings, opts.ProgressCache, opts.Thresholds, logger)
	bookings := service.NewBookingService(st.Tx, slots, st.Slots, st.Bookings, st.Groups, progressSvc, notifier, clock, opts.LeadTime, logger)
	exams := service.NewExamService(st.Tx, st.Forms, st.Requests, st.Groups, progressSvc, notifier, clock, opts.RequireReadiness, logger)

	return New(slots, bookings, progressSvc, exams, opts.Metrics, logger)
}
