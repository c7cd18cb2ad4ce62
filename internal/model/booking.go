package model

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено
	BookingStatusCompleted BookingStatus = "completed" // Занятие проведено
)

// Booking запись студента на слот.
// Дата и время копируются из слота в момент записи и дальше не меняются.
type Booking struct {
	ID         int64         `json:"id"`
	StudentID  int64         `json:"student_id"`
	ScheduleID int64         `json:"schedule_id"`
	TeacherID  int64         `json:"teacher_id"`
	LessonType LessonType    `json:"lesson_type"`
	Date       string        `json:"date"`
	StartTime  string        `json:"start_time"`
	EndTime    string        `json:"end_time"`
	Status     BookingStatus `json:"status"`
	Notes      *string       `json:"notes,omitempty"`
	BookedAt   time.Time     `json:"booked_at"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        *int64     `json:"cancelled_by,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`

	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	HoursCompleted    *float64   `json:"hours_completed,omitempty"`
	PerformanceRating *int       `json:"performance_rating,omitempty"` // 1-5
	SkillsImproved    []string   `json:"skills_improved"`
	AreasToImprove    *string    `json:"areas_to_improve,omitempty"`
	ReadyForNextLevel *bool      `json:"ready_for_next_level,omitempty"`
}

// IsActive возвращает true для записи, которая занимает место в слоте
func (b *Booking) IsActive() bool {
	return b.Status != BookingStatusCancelled
}

// StartsAt момент начала занятия по снимку записи
func (b *Booking) StartsAt(loc *time.Location) (time.Time, error) {
	return ParseLocal(b.Date, b.StartTime, loc)
}

// NewBookingFromSlot создаёт подтверждённую запись со снимком слота
func NewBookingFromSlot(studentID int64, slot *Slot, notes *string) *Booking {
	return &Booking{
		StudentID:      studentID,
		ScheduleID:     slot.ID,
		TeacherID:      slot.TeacherID,
		LessonType:     slot.LessonType,
		Date:           slot.Date,
		StartTime:      slot.StartTime,
		EndTime:        slot.EndTime,
		Status:         BookingStatusConfirmed,
		Notes:          notes,
		SkillsImproved: []string{},
	}
}

// Completion данные, которые учитель вносит после занятия
type Completion struct {
	HoursCompleted    float64  `json:"hours_completed"`
	PerformanceRating int      `json:"performance_rating"`
	SkillsImproved    []string `json:"skills_improved"`
	AreasToImprove    string   `json:"areas_to_improve"`
	ReadyForNextLevel bool     `json:"ready_for_next_level"`
}
