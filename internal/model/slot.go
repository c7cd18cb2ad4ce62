package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type LessonType string

const (
	LessonTypeTheoretical LessonType = "theoretical"
	LessonTypePractical   LessonType = "practical"
	LessonTypeExamPrep    LessonType = "exam_prep"
)

// Valid проверяет что тип занятия известен
func (t LessonType) Valid() bool {
	switch t {
	case LessonTypeTheoretical, LessonTypePractical, LessonTypeExamPrep:
		return true
	}
	return false
}

// Форматы даты и времени слота (локальное время автошколы)
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot опубликованное учителем окно для занятий с ограниченной вместимостью
type Slot struct {
	ID              int64      `json:"id"`
	TeacherID       int64      `json:"teacher_id"`
	LessonType      LessonType `json:"lesson_type"`
	Date            string     `json:"date"`       // YYYY-MM-DD
	StartTime       string     `json:"start_time"` // HH:MM
	EndTime         string     `json:"end_time"`   // HH:MM
	MaxCapacity     int        `json:"max_capacity"`
	CurrentBookings int        `json:"current_bookings"`
	Location        *string    `json:"location,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Remaining возвращает количество свободных мест
func (s *Slot) Remaining() int {
	return s.MaxCapacity - s.CurrentBookings
}

// IsFull возвращает true если мест не осталось
func (s *Slot) IsFull() bool {
	return s.CurrentBookings >= s.MaxCapacity
}

// StartsAt возвращает момент начала слота в указанной зоне
func (s *Slot) StartsAt(loc *time.Location) (time.Time, error) {
	return ParseLocal(s.Date, s.StartTime, loc)
}

// EndsAt возвращает момент окончания слота в указанной зоне
func (s *Slot) EndsAt(loc *time.Location) (time.Time, error) {
	return ParseLocal(s.Date, s.EndTime, loc)
}

// ParseLocal собирает момент времени из даты YYYY-MM-DD и времени HH:MM
func ParseLocal(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q %q: %w", date, clock, err)
	}
	return t, nil
}

// SlotFilter фильтр для выборки доступных слотов
type SlotFilter struct {
	DateFrom   string
	DateTo     string
	LessonType LessonType
	TeacherID  int64
	// TeacherIDs заполняется сервисом при фильтре по группе
	TeacherIDs []int64
	GroupID    *uuid.UUID
}
