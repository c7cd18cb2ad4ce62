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

// PublishFormInput данные новой формы записи на экзамен
type PublishFormInput struct {
	TeacherID   int64          `json:"teacher_id"`
	GroupID     uuid.UUID      `json:"group_id"`
	ExamDate    string         `json:"exam_date"`
	ExamTime    string         `json:"exam_time"`
	ExamType    model.ExamType `json:"exam_type"`
	MaxRequests int            `json:"max_requests"`
}

// ExamService workflow заявок на экзамен: pending → approved → passed|failed, pending → rejected
type ExamService struct {
	tx               Transactor
	forms            ExamFormStore
	requests         ExamRequestStore
	groups           GroupDirectory
	progress         *ProgressService
	notifier         *Notifier
	clock            Clock
	requireReadiness bool
	logger           *zap.Logger
}

func NewExamService(
	tx Transactor,
	forms ExamFormStore,
	requests ExamRequestStore,
	groups GroupDirectory,
	progress *ProgressService,
	notifier *Notifier,
	clock Clock,
	requireReadiness bool,
	logger *zap.Logger,
) *ExamService {
	return &ExamService{
		tx:               tx,
		forms:            forms,
		requests:         requests,
		groups:           groups,
		progress:         progress,
		notifier:         notifier,
		clock:            clock,
		requireReadiness: requireReadiness,
		logger:           logger,
	}
}

// PublishForm открывает форму записи на экзамен для группы
func (s *ExamService) PublishForm(ctx context.Context, actor model.Actor, in PublishFormInput) (*model.ExamForm, error) {
	const op = "exam.PublishForm"

	if err := auth.Authorize(actor, auth.OpPublishForm, in.TeacherID); err != nil {
		return nil, err
	}

	if in.TeacherID == 0 || in.GroupID == uuid.Nil {
		return nil, apperr.New(apperr.KindValidation, op, "teacher and group are required")
	}
	if !in.ExamType.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, op, "unknown exam type %q", in.ExamType)
	}
	date, err := time.ParseInLocation(model.DateLayout, in.ExamDate, s.clock.Location())
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, op, "exam date must be YYYY-MM-DD, got %q", in.ExamDate)
	}
	clock, err := time.Parse(model.TimeLayout, in.ExamTime)
	if err != nil {
		return nil, apperr.Newf(apperr.KindValidation, op, "exam time must be HH:MM, got %q", in.ExamTime)
	}
	if date.Format(model.DateLayout) < s.clock.Today() {
		return nil, apperr.New(apperr.KindValidation, op, "exam date is in the past")
	}
	if in.MaxRequests < 1 {
		return nil, apperr.New(apperr.KindValidation, op, "form must accept at least one request")
	}

	teachers, err := s.groups.TeachersOfGroup(ctx, in.GroupID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if !slices.Contains(teachers, in.TeacherID) {
		return nil, apperr.Newf(apperr.KindForbidden, op, "teacher %d is not assigned to the group", in.TeacherID)
	}

	form := &model.ExamForm{
		TeacherID:   in.TeacherID,
		GroupID:     in.GroupID,
		ExamDate:    date.Format(model.DateLayout),
		ExamTime:    clock.Format(model.TimeLayout),
		ExamType:    in.ExamType,
		IsOpen:      true,
		MaxRequests: in.MaxRequests,
	}
	if err := s.forms.Create(ctx, form); err != nil {
		return nil, storeErr(op, err)
	}

	s.logger.Info("Exam form published",
		zap.Int64("form_id", form.ID),
		zap.Int64("teacher_id", form.TeacherID),
		zap.String("group_id", form.GroupID.String()),
		zap.String("exam_type", string(form.ExamType)),
		zap.Int("max_requests", form.MaxRequests),
	)

	return form, nil
}

// CloseForm закрывает форму. Закрытие уже закрытой формы ничего не меняет.
func (s *ExamService) CloseForm(ctx context.Context, actor model.Actor, formID int64) (*model.ExamForm, error) {
	const op = "exam.CloseForm"

	var form *model.ExamForm
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.forms.GetByID(ctx, formID)
		if err != nil {
			return storeErr(op, err)
		}
		if f == nil {
			return apperr.Newf(apperr.KindNotFound, op, "exam form %d not found", formID)
		}
		if err := auth.Authorize(actor, auth.OpCloseForm, f.TeacherID); err != nil {
			return err
		}

		if f.IsOpen {
			if err := s.forms.Close(ctx, f.ID); err != nil {
				return storeErr(op, err)
			}
			f.IsOpen = false
		}
		form = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exam form closed", zap.Int64("form_id", form.ID), zap.Int64("actor_id", actor.UserID))
	return form, nil
}

// CloseExpiredForms закрывает формы, дата экзамена которых уже прошла
func (s *ExamService) CloseExpiredForms(ctx context.Context) (int64, error) {
	n, err := s.forms.CloseBefore(ctx, s.clock.Today())
	if err != nil {
		return 0, storeErr("exam.CloseExpiredForms", err)
	}
	return n, nil
}

// ListOpenForms открытые формы группы
func (s *ExamService) ListOpenForms(ctx context.Context, groupID uuid.UUID) ([]*model.ExamForm, error) {
	forms, err := s.forms.ListOpenByGroup(ctx, groupID)
	if err != nil {
		return nil, storeErr("exam.ListOpenForms", err)
	}
	return orEmpty(forms), nil
}

// SubmitRequest подаёт заявку студента по открытой форме его группы.
// Место в форме занимается в той же транзакции, что и создание заявки.
func (s *ExamService) SubmitRequest(ctx context.Context, actor model.Actor, studentID, formID int64, notes *string) (*model.ExamRequest, error) {
	const op = "exam.SubmitRequest"

	if err := auth.Authorize(actor, auth.OpSubmitRequest, studentID); err != nil {
		return nil, err
	}

	if s.requireReadiness {
		summary, err := s.progress.Summarize(ctx, studentID)
		if err != nil {
			return nil, err
		}
		if !summary.ReadyForExam {
			return nil, apperr.New(apperr.KindNotEligible, op, "student is not ready for the exam yet")
		}
	}

	var req *model.ExamRequest
	var form *model.ExamForm
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		f, err := s.forms.GetByID(ctx, formID)
		if err != nil {
			return storeErr(op, err)
		}
		if f == nil {
			return apperr.Newf(apperr.KindNotFound, op, "exam form %d not found", formID)
		}

		groupID, err := s.groups.GroupOfStudent(ctx, studentID)
		if err != nil {
			return storeErr(op, err)
		}
		if groupID == nil || *groupID != f.GroupID {
			return apperr.New(apperr.KindForbidden, op, "form belongs to another group")
		}

		if !f.IsOpen {
			return apperr.New(apperr.KindFormClosed, op, "form is closed")
		}

		active, err := s.requests.FindActive(ctx, studentID, f.ExamType)
		if err != nil {
			return storeErr(op, err)
		}
		if active != nil {
			return apperr.Newf(apperr.KindDuplicateActive, op, "request #%d for %s exam is still %s", active.ID, active.ExamType, active.Status)
		}

		if err := s.forms.IncrementRequests(ctx, f.ID); err != nil {
			if errors.Is(err, base.ErrNoCapacity) {
				return apperr.Wrap(apperr.KindFormFull, op, "form has no free places", err)
			}
			return storeErr(op, err)
		}

		r := &model.ExamRequest{
			StudentID:    studentID,
			GroupID:      f.GroupID,
			TeacherID:    f.TeacherID,
			FormID:       f.ID,
			ExamType:     f.ExamType,
			Status:       model.ExamRequestPending,
			StudentNotes: optional(notes),
		}
		if err := s.requests.Create(ctx, r); err != nil {
			if errors.Is(err, base.ErrUniqueViolation) {
				return apperr.Wrap(apperr.KindDuplicateActive, op, "active request already exists", err)
			}
			return storeErr(op, err)
		}

		req, form = r, f
		return nil
	})
	if err != nil {
		logRejection(s.logger, "Exam request rejected", err,
			zap.Int64("student_id", studentID),
			zap.Int64("form_id", formID),
		)
		return nil, err
	}

	s.logger.Info("Exam request submitted",
		zap.Int64("request_id", req.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("form_id", formID),
		zap.String("exam_type", string(req.ExamType)),
	)

	payload := requestPayload(req)
	payload["exam_date"] = form.ExamDate
	payload["exam_time"] = form.ExamTime
	s.notifier.emit(ctx, newEvent(events.ExamRequestSubmitted, req.TeacherID, s.clock.Now(), payload))

	return req, nil
}

// Review решение администратора по заявке. Отклонение возвращает место в форму.
func (s *ExamService) Review(ctx context.Context, actor model.Actor, requestID int64, action model.ReviewAction, notes, rejectionReason *string) (*model.ExamRequest, error) {
	const op = "exam.Review"

	if err := auth.Authorize(actor, auth.OpReviewRequest); err != nil {
		return nil, err
	}

	var status model.ExamRequestStatus
	switch action {
	case model.ReviewApprove:
		status = model.ExamRequestApproved
		rejectionReason = nil
	case model.ReviewReject:
		status = model.ExamRequestRejected
		rejectionReason = optional(rejectionReason)
		if rejectionReason == nil {
			return nil, apperr.New(apperr.KindValidation, op, "rejection reason is required")
		}
	default:
		return nil, apperr.Newf(apperr.KindValidation, op, "unknown review action %q", action)
	}

	var req *model.ExamRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.requests.GetByID(ctx, requestID)
		if err != nil {
			return storeErr(op, err)
		}
		if r == nil {
			return apperr.Newf(apperr.KindNotFound, op, "exam request %d not found", requestID)
		}
		if !r.IsPending() {
			return apperr.Newf(apperr.KindInvalidTransition, op, "request is %s, only pending requests can be reviewed", r.Status)
		}

		if err := s.requests.MarkReviewed(ctx, r.ID, status, actor.UserID, optional(notes), rejectionReason, s.clock.Now()); err != nil {
			if errors.Is(err, base.ErrStaleState) {
				return apperr.Wrap(apperr.KindInvalidTransition, op, "request changed concurrently", err)
			}
			return storeErr(op, err)
		}

		if status == model.ExamRequestRejected {
			if err := s.forms.DecrementRequests(ctx, r.FormID); err != nil {
				return storeErr(op, err)
			}
		}

		req, err = s.requests.GetByID(ctx, r.ID)
		return storeErrOrNil(op, err)
	})
	if err != nil {
		logRejection(s.logger, "Review rejected", err, zap.Int64("request_id", requestID))
		return nil, err
	}

	s.logger.Info("Exam request reviewed",
		zap.Int64("request_id", req.ID),
		zap.Int64("reviewed_by", actor.UserID),
		zap.String("status", string(req.Status)),
	)

	eventType := events.ExamRequestApproved
	payload := requestPayload(req)
	if req.Status == model.ExamRequestRejected {
		eventType = events.ExamRequestRejected
		payload["reason"] = *req.RejectionReason
	}
	s.notifier.emit(ctx, newEvent(eventType, req.StudentID, s.clock.Now(), payload))

	return req, nil
}

// SetResult фиксирует итог экзамена по одобренной заявке
func (s *ExamService) SetResult(ctx context.Context, actor model.Actor, requestID int64, result model.ExamRequestStatus, notes *string) (*model.ExamRequest, error) {
	const op = "exam.SetResult"

	if result != model.ExamRequestPassed && result != model.ExamRequestFailed {
		return nil, apperr.Newf(apperr.KindValidation, op, "result must be passed or failed, got %q", result)
	}

	var req *model.ExamRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.requests.GetByID(ctx, requestID)
		if err != nil {
			return storeErr(op, err)
		}
		if r == nil {
			return apperr.Newf(apperr.KindNotFound, op, "exam request %d not found", requestID)
		}
		if err := auth.Authorize(actor, auth.OpSetResult, r.TeacherID); err != nil {
			return err
		}
		if !r.IsApproved() {
			return apperr.Newf(apperr.KindInvalidTransition, op, "request is %s, only approved requests get a result", r.Status)
		}

		if err := s.requests.MarkResult(ctx, r.ID, result, actor.UserID, optional(notes), s.clock.Now()); err != nil {
			if errors.Is(err, base.ErrStaleState) {
				return apperr.Wrap(apperr.KindInvalidTransition, op, "request changed concurrently", err)
			}
			return storeErr(op, err)
		}

		req, err = s.requests.GetByID(ctx, r.ID)
		return storeErrOrNil(op, err)
	})
	if err != nil {
		logRejection(s.logger, "Exam result rejected", err, zap.Int64("request_id", requestID))
		return nil, err
	}

	s.logger.Info("Exam result set",
		zap.Int64("request_id", req.ID),
		zap.Int64("student_id", req.StudentID),
		zap.String("result", string(result)),
		zap.Int64("set_by", actor.UserID),
	)

	eventType := events.ExamFailed
	if result == model.ExamRequestPassed {
		eventType = events.ExamPassed
	}
	payload := requestPayload(req)
	if req.ResultNotes != nil {
		payload["notes"] = *req.ResultNotes
	}

	activity := newEvent(eventType, req.StudentID, s.clock.Now(), payload)
	activity.Activity = true
	s.notifier.emit(ctx, newEvent(eventType, req.StudentID, s.clock.Now(), payload), activity)

	return req, nil
}

// ListExamRequests заявки по фильтру
func (s *ExamService) ListExamRequests(ctx context.Context, filter model.ExamRequestFilter) ([]*model.ExamRequest, error) {
	filter.Status = model.ExamRequestStatus(strings.TrimSpace(string(filter.Status)))

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, storeErr("exam.ListExamRequests", err)
	}
	return orEmpty(requests), nil
}

func requestPayload(r *model.ExamRequest) map[string]any {
	return map[string]any{
		"request_id": r.ID,
		"form_id":    r.FormID,
		"student_id": r.StudentID,
		"teacher_id": r.TeacherID,
		"group_id":   r.GroupID.String(),
		"exam_type":  string(r.ExamType),
		"status":     string(r.Status),
	}
}
