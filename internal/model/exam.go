package model

import (
	"time"

	"github.com/google/uuid"
)

type ExamType string

const (
	ExamTypeTheory    ExamType = "theory"
	ExamTypePractical ExamType = "practical"
)

// Valid проверяет что тип экзамена известен
func (t ExamType) Valid() bool {
	return t == ExamTypeTheory || t == ExamTypePractical
}

// ExamForm окно записи на экзамен, открытое учителем для группы
type ExamForm struct {
	ID              int64     `json:"id"`
	TeacherID       int64     `json:"teacher_id"`
	GroupID         uuid.UUID `json:"group_id"`
	ExamDate        string    `json:"exam_date"` // YYYY-MM-DD
	ExamTime        string    `json:"exam_time"` // HH:MM
	ExamType        ExamType  `json:"exam_type"`
	IsOpen          bool      `json:"is_open"`
	MaxRequests     int       `json:"max_requests"`
	CurrentRequests int       `json:"current_requests"`
	CreatedAt       time.Time `json:"created_at"`
}

// CanAccept проверяет что форма принимает новые заявки
func (f *ExamForm) CanAccept() bool {
	return f.IsOpen && f.CurrentRequests < f.MaxRequests
}

type ExamRequestStatus string

// Request status constants
const (
	ExamRequestPending  ExamRequestStatus = "pending"
	ExamRequestApproved ExamRequestStatus = "approved"
	ExamRequestRejected ExamRequestStatus = "rejected"
	ExamRequestPassed   ExamRequestStatus = "passed"
	ExamRequestFailed   ExamRequestStatus = "failed"
)

// ExamRequest represents a student's request for an exam sitting
type ExamRequest struct {
	ID           int64             `json:"id"`
	StudentID    int64             `json:"student_id"`
	GroupID      uuid.UUID         `json:"group_id"`
	TeacherID    int64             `json:"teacher_id"`
	FormID       int64             `json:"form_id"`
	ExamType     ExamType          `json:"exam_type"`
	Status       ExamRequestStatus `json:"status"`
	StudentNotes *string           `json:"student_notes,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`

	ReviewedBy      *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	AdminNotes      *string    `json:"admin_notes,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	Result      *ExamRequestStatus `json:"result,omitempty"`
	ResultNotes *string            `json:"result_notes,omitempty"`
	ResultSetBy *int64             `json:"result_set_by,omitempty"`
	ResultSetAt *time.Time         `json:"result_set_at,omitempty"`
}

// IsPending checks if request is pending
func (r *ExamRequest) IsPending() bool {
	return r.Status == ExamRequestPending
}

// IsApproved checks if request is approved
func (r *ExamRequest) IsApproved() bool {
	return r.Status == ExamRequestApproved
}

// IsActive checks if request still holds the student's exam seat
func (r *ExamRequest) IsActive() bool {
	return r.Status == ExamRequestPending || r.Status == ExamRequestApproved
}

// ReviewAction решение администратора по заявке
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

// ExamRequestFilter фильтр для списка заявок
type ExamRequestFilter struct {
	StudentID int64
	TeacherID int64
	FormID    int64
	GroupID   *uuid.UUID
	Status    ExamRequestStatus
}
