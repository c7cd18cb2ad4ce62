// Package engine единая точка входа в движок бронирования для транспортов.
// Каждый вызов возвращает конверт apperr.Result, паника наружу не выходит.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/metrics"
	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/service"
)

type Engine struct {
	slots    *service.SlotService
	bookings *service.BookingService
	progress *service.ProgressService
	exams    *service.ExamService
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func New(
	slots *service.SlotService,
	bookings *service.BookingService,
	progress *service.ProgressService,
	exams *service.ExamService,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		slots:    slots,
		bookings: bookings,
		progress: progress,
		exams:    exams,
		metrics:  m,
		logger:   logger,
	}
}

func run[T any](e *Engine, op string, fn func() (T, error)) (res apperr.Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			err := apperr.Wrap(apperr.KindUnavailable, op, "internal error", fmt.Errorf("panic: %v", r))
			e.logger.Error("Engine call panicked", zap.String("op", op), zap.Any("panic", r), zap.Stack("stack"))
			e.metrics.Command(op, err)
			res = apperr.Fail[T](err)
		}
	}()

	v, err := fn()
	e.metrics.Command(op, err)
	return apperr.From(v, err)
}

// Команды

func (e *Engine) PublishSlot(ctx context.Context, actor model.Actor, in service.PublishSlotInput) apperr.Result[*model.Slot] {
	return run(e, "publish_slot", func() (*model.Slot, error) {
		return e.slots.PublishSlot(ctx, actor, in)
	})
}

func (e *Engine) DeleteSlot(ctx context.Context, actor model.Actor, slotID int64) apperr.Result[bool] {
	return run(e, "delete_slot", func() (bool, error) {
		if err := e.slots.DeleteSlot(ctx, actor, slotID); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (e *Engine) CreateBooking(ctx context.Context, actor model.Actor, studentID, slotID int64, notes *string) apperr.Result[*model.Booking] {
	return run(e, "create_booking", func() (*model.Booking, error) {
		return e.bookings.CreateBooking(ctx, actor, studentID, slotID, notes)
	})
}

func (e *Engine) CancelBooking(ctx context.Context, actor model.Actor, bookingID int64, reason *string) apperr.Result[*model.Booking] {
	return run(e, "cancel_booking", func() (*model.Booking, error) {
		return e.bookings.CancelBooking(ctx, actor, bookingID, reason)
	})
}

func (e *Engine) CompleteBooking(ctx context.Context, actor model.Actor, bookingID int64, c model.Completion) apperr.Result[*model.Booking] {
	return run(e, "complete_booking", func() (*model.Booking, error) {
		return e.bookings.CompleteBooking(ctx, actor, bookingID, c)
	})
}

func (e *Engine) PublishForm(ctx context.Context, actor model.Actor, in service.PublishFormInput) apperr.Result[*model.ExamForm] {
	return run(e, "publish_form", func() (*model.ExamForm, error) {
		return e.exams.PublishForm(ctx, actor, in)
	})
}

func (e *Engine) CloseForm(ctx context.Context, actor model.Actor, formID int64) apperr.Result[*model.ExamForm] {
	return run(e, "close_form", func() (*model.ExamForm, error) {
		return e.exams.CloseForm(ctx, actor, formID)
	})
}

func (e *Engine) SubmitRequest(ctx context.Context, actor model.Actor, studentID, formID int64, notes *string) apperr.Result[*model.ExamRequest] {
	return run(e, "submit_request", func() (*model.ExamRequest, error) {
		return e.exams.SubmitRequest(ctx, actor, studentID, formID, notes)
	})
}

func (e *Engine) Review(ctx context.Context, actor model.Actor, requestID int64, action model.ReviewAction, notes, rejectionReason *string) apperr.Result[*model.ExamRequest] {
	return run(e, "review_request", func() (*model.ExamRequest, error) {
		return e.exams.Review(ctx, actor, requestID, action, notes, rejectionReason)
	})
}

func (e *Engine) SetResult(ctx context.Context, actor model.Actor, requestID int64, result model.ExamRequestStatus, notes *string) apperr.Result[*model.ExamRequest] {
	return run(e, "set_result", func() (*model.ExamRequest, error) {
		return e.exams.SetResult(ctx, actor, requestID, result, notes)
	})
}

// Запросы

func (e *Engine) ListAvailable(ctx context.Context, filter model.SlotFilter) apperr.Result[[]*model.Slot] {
	return run(e, "list_available", func() ([]*model.Slot, error) {
		return e.slots.ListAvailable(ctx, filter)
	})
}

func (e *Engine) ListAvailableForStudent(ctx context.Context, studentID int64) apperr.Result[[]*model.Slot] {
	return run(e, "list_available_for_student", func() ([]*model.Slot, error) {
		return e.bookings.ListAvailableForStudent(ctx, studentID)
	})
}

func (e *Engine) ListAvailableForGroup(ctx context.Context, groupID uuid.UUID) apperr.Result[[]*model.Slot] {
	return run(e, "list_available_for_group", func() ([]*model.Slot, error) {
		return e.bookings.ListAvailableForGroup(ctx, groupID)
	})
}

func (e *Engine) ListTeacherSlots(ctx context.Context, teacherID int64, from, to string) apperr.Result[[]*model.Slot] {
	return run(e, "list_teacher_slots", func() ([]*model.Slot, error) {
		return e.slots.ListForTeacher(ctx, teacherID, from, to)
	})
}

func (e *Engine) ListForStudent(ctx context.Context, studentID int64) apperr.Result[[]*model.Booking] {
	return run(e, "list_for_student", func() ([]*model.Booking, error) {
		return e.bookings.ListForStudent(ctx, studentID)
	})
}

func (e *Engine) ListForTeacher(ctx context.Context, teacherID int64) apperr.Result[[]*model.Booking] {
	return run(e, "list_for_teacher", func() ([]*model.Booking, error) {
		return e.bookings.ListForTeacher(ctx, teacherID)
	})
}

func (e *Engine) Summarize(ctx context.Context, studentID int64) apperr.Result[*model.StudentProgress] {
	return run(e, "summarize", func() (*model.StudentProgress, error) {
		return e.progress.Summarize(ctx, studentID)
	})
}

func (e *Engine) ListExamRequests(ctx context.Context, filter model.ExamRequestFilter) apperr.Result[[]*model.ExamRequest] {
	return run(e, "list_exam_requests", func() ([]*model.ExamRequest, error) {
		return e.exams.ListExamRequests(ctx, filter)
	})
}

func (e *Engine) ListOpenForms(ctx context.Context, groupID uuid.UUID) apperr.Result[[]*model.ExamForm] {
	return run(e, "list_open_forms", func() ([]*model.ExamForm, error) {
		return e.exams.ListOpenForms(ctx, groupID)
	})
}

// CloseExpiredForms фоновая задача, вызывается планировщиком
func (e *Engine) CloseExpiredForms(ctx context.Context) apperr.Result[int64] {
	return run(e, "close_expired_forms", func() (int64, error) {
		return e.exams.CloseExpiredForms(ctx)
	})
}
