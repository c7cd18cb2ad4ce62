package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/driving_booking/internal/model"
)

// Transactor выполняет fn атомарно. Репозитории, вызванные с переданным ctx, работают внутри транзакции.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type SlotStore interface {
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, id int64) (*model.Slot, error)
	// ListAvailable не возвращает слоты, которые уже начались: date > today или date = today и start > clock
	ListAvailable(ctx context.Context, filter model.SlotFilter, today, clock string) ([]*model.Slot, error)
	ListByTeacher(ctx context.Context, teacherID int64, from, to string) ([]*model.Slot, error)
	IncrementBookings(ctx context.Context, id int64) error
	DecrementBookings(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type BookingStore interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	FindActive(ctx context.Context, studentID, scheduleID int64) (*model.Booking, error)
	ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error)
	ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error)
	ListCompletedByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error)
	MarkCancelled(ctx context.Context, id, cancelledBy int64, reason *string, at time.Time) error
	MarkCompleted(ctx context.Context, id int64, c model.Completion, at time.Time) error
}

type ExamFormStore interface {
	Create(ctx context.Context, form *model.ExamForm) error
	GetByID(ctx context.Context, id int64) (*model.ExamForm, error)
	ListOpenByGroup(ctx context.Context, groupID uuid.UUID) ([]*model.ExamForm, error)
	IncrementRequests(ctx context.Context, id int64) error
	DecrementRequests(ctx context.Context, id int64) error
	Close(ctx context.Context, id int64) error
	CloseBefore(ctx context.Context, date string) (int64, error)
}

type ExamRequestStore interface {
	Create(ctx context.Context, req *model.ExamRequest) error
	GetByID(ctx context.Context, id int64) (*model.ExamRequest, error)
	FindActive(ctx context.Context, studentID int64, examType model.ExamType) (*model.ExamRequest, error)
	List(ctx context.Context, filter model.ExamRequestFilter) ([]*model.ExamRequest, error)
	MarkReviewed(ctx context.Context, id int64, status model.ExamRequestStatus, reviewedBy int64, notes, reason *string, at time.Time) error
	MarkResult(ctx context.Context, id int64, result model.ExamRequestStatus, setBy int64, notes *string, at time.Time) error
}

// GroupDirectory членство в группах, ведётся внешним приложением
type GroupDirectory interface {
	GroupOfStudent(ctx context.Context, studentID int64) (*uuid.UUID, error)
	TeachersOfGroup(ctx context.Context, groupID uuid.UUID) ([]int64, error)
}

// ProgressCache кэш сводок прогресса. Get возвращает nil, nil при промахе.
// Invalidate увеличивает поколение студента; Set с устаревшим поколением ничего не пишет.
type ProgressCache interface {
	Get(ctx context.Context, studentID int64) (*model.StudentProgress, error)
	Generation(ctx context.Context, studentID int64) (int64, error)
	Set(ctx context.Context, sp *model.StudentProgress, gen int64) error
	Invalidate(ctx context.Context, studentID int64) error
}
