package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/auth"
	"github.com/Freeeeeet/driving_booking/internal/events"
	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
)

// Пределы данных о проведённом занятии
const (
	MaxLessonHours = 12
	MinRating      = 1
	MaxRating      = 5
)

// BookingService журнал записей студентов на слоты
type BookingService struct {
	tx       Transactor
	slots    *SlotService
	slotRepo SlotStore
	bookings BookingStore
	groups   GroupDirectory
	progress *ProgressService
	notifier *Notifier
	clock    Clock
	leadTime time.Duration
	logger   *zap.Logger
}

func NewBookingService(
	tx Transactor,
	slots *SlotService,
	slotRepo SlotStore,
	bookings BookingStore,
	groups GroupDirectory,
	progress *ProgressService,
	notifier *Notifier,
	clock Clock,
	leadTime time.Duration,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		tx:       tx,
		slots:    slots,
		slotRepo: slotRepo,
		bookings: bookings,
		groups:   groups,
		progress: progress,
		notifier: notifier,
		clock:    clock,
		leadTime: leadTime,
		logger:   logger,
	}
}

// CreateBooking записывает студента на слот.
// Проверка дубля, занятие места и создание записи выполняются в одной транзакции.
func (s *BookingService) CreateBooking(ctx context.Context, actor model.Actor, studentID, slotID int64, notes *string) (*model.Booking, error) {
	const op = "booking.Create"

	if err := auth.Authorize(actor, auth.OpCreateBooking, studentID); err != nil {
		return nil, err
	}

	var booking *model.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		slot, err := s.slotRepo.GetByID(ctx, slotID)
		if err != nil {
			return storeErr(op, err)
		}
		if slot == nil {
			return apperr.Newf(apperr.KindNotFound, op, "slot %d not found", slotID)
		}

		startsAt, err := slot.StartsAt(s.clock.Location())
		if err != nil {
			return storeErr(op, err)
		}
		if startsAt.Sub(s.clock.Now()) < s.leadTime {
			return apperr.Newf(apperr.KindTooLate, op, "booking closes %s before the lesson", s.leadTime)
		}

		existing, err := s.bookings.FindActive(ctx, studentID, slotID)
		if err != nil {
			return storeErr(op, err)
		}
		if existing != nil {
			return apperr.Newf(apperr.KindAlreadyBooked, op, "already booked as #%d", existing.ID)
		}

		if err := s.slots.ReserveCapacity(ctx, slotID); err != nil {
			if errors.Is(err, apperr.ErrCapacityExceeded) {
				return apperr.Wrap(apperr.KindSlotFull, op, "slot is full, try another one", err)
			}
			return err
		}

		booking = model.NewBookingFromSlot(studentID, slot, optional(notes))
		if err := s.bookings.Create(ctx, booking); err != nil {
			if errors.Is(err, base.ErrUniqueViolation) {
				return apperr.Wrap(apperr.KindAlreadyBooked, op, "already booked", err)
			}
			return storeErr(op, err)
		}
		return nil
	})
	if err != nil {
		logRejection(s.logger, "Booking rejected", err,
			zap.Int64("student_id", studentID),
			zap.Int64("slot_id", slotID),
		)
		return nil, err
	}

	s.logger.Info("Slot booked",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("slot_id", slotID),
		zap.String("date", booking.Date),
		zap.String("start", booking.StartTime),
	)

	payload := bookingPayload(booking)
	s.notifier.emit(ctx,
		newEvent(events.BookingConfirmed, booking.StudentID, s.clock.Now(), payload),
		newEvent(events.BookingConfirmed, booking.TeacherID, s.clock.Now(), payload),
	)

	return booking, nil
}

// CancelBooking отменяет запись и возвращает место в слот
func (s *BookingService) CancelBooking(ctx context.Context, actor model.Actor, bookingID int64, reason *string) (*model.Booking, error) {
	const op = "booking.Cancel"

	var booking *model.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return storeErr(op, err)
		}
		if b == nil {
			return apperr.Newf(apperr.KindNotFound, op, "booking %d not found", bookingID)
		}

		if err := auth.Authorize(actor, auth.OpCancelBooking, b.StudentID, b.TeacherID); err != nil {
			return err
		}

		switch b.Status {
		case model.BookingStatusCancelled:
			return apperr.New(apperr.KindAlreadyCancelled, op, "booking is already cancelled")
		case model.BookingStatusCompleted:
			return apperr.New(apperr.KindInvalidTransition, op, "completed booking cannot be cancelled")
		}

		if err := s.bookings.MarkCancelled(ctx, b.ID, actor.UserID, optional(reason), s.clock.Now()); err != nil {
			if errors.Is(err, base.ErrStaleState) {
				return apperr.Wrap(apperr.KindInvalidTransition, op, "booking changed concurrently", err)
			}
			return storeErr(op, err)
		}

		if err := s.slots.ReleaseCapacity(ctx, b.ScheduleID); err != nil {
			return err
		}

		booking, err = s.bookings.GetByID(ctx, b.ID)
		return storeErrOrNil(op, err)
	})
	if err != nil {
		logRejection(s.logger, "Cancellation rejected", err,
			zap.Int64("booking_id", bookingID),
			zap.Int64("actor_id", actor.UserID),
		)
		return nil, err
	}

	s.logger.Info("Booking cancelled",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("cancelled_by", actor.UserID),
		zap.Int64("slot_id", booking.ScheduleID),
	)

	s.progress.Invalidate(ctx, booking.StudentID)

	payload := bookingPayload(booking)
	if booking.CancellationReason != nil {
		payload["reason"] = *booking.CancellationReason
	}
	payload["cancelled_by"] = actor.UserID
	s.notifier.emit(ctx,
		newEvent(events.BookingCancelled, booking.StudentID, s.clock.Now(), payload),
		newEvent(events.BookingCancelled, booking.TeacherID, s.clock.Now(), payload),
	)

	return booking, nil
}

// CompleteBooking сохраняет итоги проведённого занятия. Повторный вызов не меняет данные.
func (s *BookingService) CompleteBooking(ctx context.Context, actor model.Actor, bookingID int64, c model.Completion) (*model.Booking, error) {
	const op = "booking.Complete"

	if c.HoursCompleted <= 0 || c.HoursCompleted > MaxLessonHours {
		return nil, apperr.Newf(apperr.KindValidation, op, "hours must be in (0, %d]", MaxLessonHours)
	}
	if c.PerformanceRating < MinRating || c.PerformanceRating > MaxRating {
		return nil, apperr.Newf(apperr.KindValidation, op, "rating must be between %d and %d", MinRating, MaxRating)
	}
	c.SkillsImproved = cleanSkills(c.SkillsImproved)
	c.AreasToImprove = strings.TrimSpace(c.AreasToImprove)

	var booking *model.Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return storeErr(op, err)
		}
		if b == nil {
			return apperr.Newf(apperr.KindNotFound, op, "booking %d not found", bookingID)
		}

		if err := auth.Authorize(actor, auth.OpCompleteBooking, b.TeacherID); err != nil {
			return err
		}

		switch b.Status {
		case model.BookingStatusCompleted:
			return apperr.New(apperr.KindAlreadyCompleted, op, "booking is already completed")
		case model.BookingStatusCancelled:
			return apperr.New(apperr.KindInvalidTransition, op, "cancelled booking cannot be completed")
		}

		startsAt, err := b.StartsAt(s.clock.Location())
		if err != nil {
			return storeErr(op, err)
		}
		if startsAt.After(s.clock.Now()) {
			return apperr.New(apperr.KindNotYetOccurred, op, "lesson has not started yet")
		}

		if err := s.bookings.MarkCompleted(ctx, b.ID, c, s.clock.Now()); err != nil {
			if errors.Is(err, base.ErrStaleState) {
				return apperr.Wrap(apperr.KindAlreadyCompleted, op, "booking changed concurrently", err)
			}
			return storeErr(op, err)
		}

		booking, err = s.bookings.GetByID(ctx, b.ID)
		return storeErrOrNil(op, err)
	})
	if err != nil {
		logRejection(s.logger, "Completion rejected", err,
			zap.Int64("booking_id", bookingID),
			zap.Int64("actor_id", actor.UserID),
		)
		return nil, err
	}

	s.logger.Info("Lesson completed",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("student_id", booking.StudentID),
		zap.Float64("hours", c.HoursCompleted),
		zap.Int("rating", c.PerformanceRating),
		zap.Bool("ready_for_next_level", c.ReadyForNextLevel),
	)

	s.progress.Invalidate(ctx, booking.StudentID)

	return booking, nil
}

// ListForStudent все записи студента
func (s *BookingService) ListForStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	bookings, err := s.bookings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, storeErr("booking.ListForStudent", err)
	}
	return orEmpty(bookings), nil
}

// ListForTeacher все записи на слоты учителя
func (s *BookingService) ListForTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error) {
	bookings, err := s.bookings.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, storeErr("booking.ListForTeacher", err)
	}
	return orEmpty(bookings), nil
}

// ListAvailableForGroup свободные слоты учителей группы
func (s *BookingService) ListAvailableForGroup(ctx context.Context, groupID uuid.UUID) ([]*model.Slot, error) {
	return s.slots.ListAvailable(ctx, model.SlotFilter{GroupID: &groupID})
}

// ListAvailableForStudent свободные слоты учителей группы студента.
// Студент без группы видит пустой список.
func (s *BookingService) ListAvailableForStudent(ctx context.Context, studentID int64) ([]*model.Slot, error) {
	groupID, err := s.groups.GroupOfStudent(ctx, studentID)
	if err != nil {
		return nil, storeErr("booking.ListAvailableForStudent", err)
	}
	if groupID == nil {
		return []*model.Slot{}, nil
	}
	return s.ListAvailableForGroup(ctx, *groupID)
}

func bookingPayload(b *model.Booking) map[string]any {
	return map[string]any{
		"booking_id":  b.ID,
		"slot_id":     b.ScheduleID,
		"student_id":  b.StudentID,
		"teacher_id":  b.TeacherID,
		"lesson_type": string(b.LessonType),
		"date":        b.Date,
		"start_time":  b.StartTime,
		"end_time":    b.EndTime,
	}
}

// cleanSkills убирает пустые навыки и пробелы по краям, порядок сохраняется
func cleanSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		if skill = strings.TrimSpace(skill); skill != "" {
			out = append(out, skill)
		}
	}
	return slices.Clip(out)
}

func storeErrOrNil(op string, err error) error {
	if err != nil {
		return storeErr(op, err)
	}
	return nil
}

func orEmpty[T any](items []*T) []*T {
	if items == nil {
		return []*T{}
	}
	return items
}
