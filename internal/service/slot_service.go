package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/auth"
	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
)

// PublishSlotInput данные нового слота
type PublishSlotInput struct {
	TeacherID   int64            `json:"teacher_id"`
	LessonType  model.LessonType `json:"lesson_type"`
	Date        string           `json:"date"`
	StartTime   string           `json:"start_time"`
	EndTime     string           `json:"end_time"`
	MaxCapacity int              `json:"max_capacity"`
	Location    *string          `json:"location,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
}

// SlotService справочник слотов и единственный писатель счётчика занятых мест
type SlotService struct {
	tx     Transactor
	slots  SlotStore
	groups GroupDirectory
	clock  Clock
	logger *zap.Logger
}

func NewSlotService(tx Transactor, slots SlotStore, groups GroupDirectory, clock Clock, logger *zap.Logger) *SlotService {
	return &SlotService{
		tx:     tx,
		slots:  slots,
		groups: groups,
		clock:  clock,
		logger: logger,
	}
}

// PublishSlot публикует слот от имени учителя
func (s *SlotService) PublishSlot(ctx context.Context, actor model.Actor, in PublishSlotInput) (*model.Slot, error) {
	const op = "slot.Publish"

	if err := auth.Authorize(actor, auth.OpPublishSlot, in.TeacherID); err != nil {
		return nil, err
	}

	slot, err := s.validateSlot(op, in)
	if err != nil {
		return nil, err
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, storeErr(op, err)
	}

	s.logger.Info("Slot published",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("teacher_id", slot.TeacherID),
		zap.String("lesson_type", string(slot.LessonType)),
		zap.String("date", slot.Date),
		zap.String("start", slot.StartTime),
		zap.Int("capacity", slot.MaxCapacity),
	)

	return slot, nil
}

func (s *SlotService) validateSlot(op string, in PublishSlotInput) (*model.Slot, error) {
	if in.TeacherID == 0 {
		return nil, apperr.New(apperr.KindValidation, op, "teacher is required")
	}
	if !in.LessonType.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, op, "unknown lesson type %q", in.LessonType)
	}

	date, err := time.ParseInLocation(model.DateLayout, in.Date, s.clock.Location())
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, op, "date must be YYYY-MM-DD, got %q", in.Date)
	}
	start, err := time.Parse(model.TimeLayout, in.StartTime)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, op, "start time must be HH:MM, got %q", in.StartTime)
	}
	end, err := time.Parse(model.TimeLayout, in.EndTime)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, op, "end time must be HH:MM, got %q", in.EndTime)
	}

	if !start.Before(end) {
		return nil, apperr.New(apperr.KindValidation, op, "start time must be before end time")
	}

	dateStr := date.Format(model.DateLayout)
	if dateStr < s.clock.Today() {
		return nil, apperr.New(apperr.KindValidation, op, "date is in the past")
	}
	startsAt, err := model.ParseLocal(dateStr, start.Format(model.TimeLayout), s.clock.Location())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, op, "invalid start", err)
	}
	if !startsAt.After(s.clock.Now()) {
		return nil, apperr.New(apperr.KindValidation, op, "start time is in the past")
	}

	if in.MaxCapacity < 1 {
		return nil, apperr.New(apperr.KindValidation, op, "capacity must be at least 1")
	}
	// Практика всегда один на один
	if in.LessonType == model.LessonTypePractical && in.MaxCapacity != 1 {
		return nil, apperr.New(apperr.KindValidation, op, "practical lessons take exactly one student")
	}

	return &model.Slot{
		TeacherID:   in.TeacherID,
		LessonType:  in.LessonType,
		Date:        dateStr,
		StartTime:   start.Format(model.TimeLayout),
		EndTime:     end.Format(model.TimeLayout),
		MaxCapacity: in.MaxCapacity,
		Location:    optional(in.Location),
		Notes:       optional(in.Notes),
	}, nil
}

// ListAvailable слоты со свободными местами начиная с сегодняшнего дня.
// Фильтр по группе оставляет только учителей, назначенных на группу.
func (s *SlotService) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error) {
	const op = "slot.ListAvailable"

	if filter.GroupID != nil {
		teachers, err := s.groups.TeachersOfGroup(ctx, *filter.GroupID)
		if err != nil {
			return nil, storeErr(op, err)
		}
		if len(teachers) == 0 {
			return []*model.Slot{}, nil
		}
		filter.TeacherIDs = teachers
	}

	now := s.clock.Now()
	slots, err := s.slots.ListAvailable(ctx, filter, now.Format(model.DateLayout), now.Format(model.TimeLayout))
	if err != nil {
		return nil, storeErr(op, err)
	}
	if slots == nil {
		slots = []*model.Slot{}
	}
	return slots, nil
}

// ListForTeacher все слоты учителя в диапазоне дат, включая заполненные
func (s *SlotService) ListForTeacher(ctx context.Context, teacherID int64, from, to string) ([]*model.Slot, error) {
	const op = "slot.ListForTeacher"

	if from > to {
		return nil, apperr.New(apperr.KindValidation, op, "date range is reversed")
	}

	slots, err := s.slots.ListByTeacher(ctx, teacherID, from, to)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return slots, nil
}

// ReserveCapacity атомарно занимает место. Вызывается только журналом записей внутри его транзакции.
func (s *SlotService) ReserveCapacity(ctx context.Context, slotID int64) error {
	if err := s.slots.IncrementBookings(ctx, slotID); err != nil {
		if errors.Is(err, base.ErrNoCapacity) {
			return apperr.Wrap(apperr.KindCapacityExceeded, "slot.ReserveCapacity", "no seats left", err)
		}
		return storeErr("slot.ReserveCapacity", err)
	}
	return nil
}

// ReleaseCapacity освобождает место
func (s *SlotService) ReleaseCapacity(ctx context.Context, slotID int64) error {
	if err := s.slots.DecrementBookings(ctx, slotID); err != nil {
		if errors.Is(err, base.ErrStaleState) {
			return apperr.Wrap(apperr.KindInvalidTransition, "slot.ReleaseCapacity", "slot has no booked seats", err)
		}
		return storeErr("slot.ReleaseCapacity", err)
	}
	return nil
}

// DeleteSlot удаляет слот, на который никто не записан
func (s *SlotService) DeleteSlot(ctx context.Context, actor model.Actor, slotID int64) error {
	const op = "slot.Delete"

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		slot, err := s.slots.GetByID(ctx, slotID)
		if err != nil {
			return storeErr(op, err)
		}
		if slot == nil {
			return apperr.Newf(apperr.KindNotFound, op, "slot %d not found", slotID)
		}

		if err := auth.Authorize(actor, auth.OpDeleteSlot, slot.TeacherID); err != nil {
			return err
		}

		if slot.CurrentBookings > 0 {
			return apperr.New(apperr.KindValidation, op, "slot has bookings")
		}

		if err := s.slots.Delete(ctx, slotID); err != nil {
			if errors.Is(err, base.ErrStaleState) {
				return apperr.Wrap(apperr.KindValidation, op, "slot has booking history", err)
			}
			return storeErr(op, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Slot deleted",
		zap.Int64("slot_id", slotID),
		zap.Int64("actor_id", actor.UserID),
	)
	return nil
}
