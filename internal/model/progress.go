package model

// StudentProgress сводка по проведённым занятиям студента.
// Не хранится, каждый раз выводится из завершённых записей.
type StudentProgress struct {
	StudentID      int64              `json:"student_id"`
	TotalHours     float64            `json:"total_hours"`
	TotalLessons   int                `json:"total_lessons"`
	AverageRating  float64            `json:"average_rating"`
	TopSkills      []string           `json:"top_skills"`
	ReadyForExam   bool               `json:"ready_for_exam"`
	LastLesson     *string            `json:"last_lesson"`
	BookingsByType map[LessonType]int `json:"bookings_by_type"`
}
