package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
)

type BookingRepository struct {
	s *Store
}

// Create создаёт бронирование. Вторая активная запись студента на тот же слот запрещена.
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	defer r.s.lock(ctx)()

	for _, b := range r.s.d.bookings {
		if b.StudentID == booking.StudentID && b.ScheduleID == booking.ScheduleID && b.IsActive() {
			return fmt.Errorf("create booking: %w", base.ErrUniqueViolation)
		}
	}

	booking.ID = r.s.nextID()
	booking.BookedAt = r.s.now()
	if booking.SkillsImproved == nil {
		booking.SkillsImproved = []string{}
	}
	r.s.d.bookings[booking.ID] = *booking
	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	defer r.s.lock(ctx)()

	b, ok := r.s.d.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// FindActive получает не отменённую запись студента на слот
func (r *BookingRepository) FindActive(ctx context.Context, studentID, scheduleID int64) (*model.Booking, error) {
	defer r.s.lock(ctx)()

	for _, b := range r.s.d.bookings {
		if b.StudentID == studentID && b.ScheduleID == scheduleID && b.IsActive() {
			return &b, nil
		}
	}
	return nil, nil
}

// ListByStudent получает все бронирования студента
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	return r.list(ctx, func(b *model.Booking) bool { return b.StudentID == studentID }), nil
}

// ListByTeacher получает все бронирования учителя
func (r *BookingRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error) {
	return r.list(ctx, func(b *model.Booking) bool { return b.TeacherID == teacherID }), nil
}

// ListCompletedByStudent получает проведённые занятия студента
func (r *BookingRepository) ListCompletedByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	return r.list(ctx, func(b *model.Booking) bool {
		return b.StudentID == studentID && b.Status == model.BookingStatusCompleted
	}), nil
}

// MarkCancelled отменяет подтверждённое бронирование
func (r *BookingRepository) MarkCancelled(ctx context.Context, id, cancelledBy int64, reason *string, at time.Time) error {
	defer r.s.lock(ctx)()

	b, ok := r.s.d.bookings[id]
	if !ok || b.Status != model.BookingStatusConfirmed {
		return fmt.Errorf("cancel booking %d: %w", id, base.ErrStaleState)
	}

	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &at
	b.CancelledBy = &cancelledBy
	b.CancellationReason = reason
	r.s.d.bookings[id] = b
	return nil
}

// MarkCompleted сохраняет итоги занятия
func (r *BookingRepository) MarkCompleted(ctx context.Context, id int64, c model.Completion, at time.Time) error {
	defer r.s.lock(ctx)()

	b, ok := r.s.d.bookings[id]
	if !ok || b.Status != model.BookingStatusConfirmed {
		return fmt.Errorf("complete booking %d: %w", id, base.ErrStaleState)
	}

	hours := c.HoursCompleted
	rating := c.PerformanceRating
	ready := c.ReadyForNextLevel

	b.Status = model.BookingStatusCompleted
	b.CompletedAt = &at
	b.HoursCompleted = &hours
	b.PerformanceRating = &rating
	b.SkillsImproved = slices.Clone(c.SkillsImproved)
	if b.SkillsImproved == nil {
		b.SkillsImproved = []string{}
	}
	b.AreasToImprove = nil
	if c.AreasToImprove != "" {
		areas := c.AreasToImprove
		b.AreasToImprove = &areas
	}
	b.ReadyForNextLevel = &ready
	r.s.d.bookings[id] = b
	return nil
}

func (r *BookingRepository) list(ctx context.Context, keep func(b *model.Booking) bool) []*model.Booking {
	defer r.s.lock(ctx)()

	var out []*model.Booking
	for _, b := range r.s.d.bookings {
		if keep(&b) {
			out = append(out, &b)
		}
	}

	slices.SortFunc(out, func(a, b *model.Booking) int {
		if c := cmp.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		if c := cmp.Compare(a.StartTime, b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
