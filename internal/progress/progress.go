// Package progress выводит сводку прогресса студента из его завершённых записей.
// Функции пакета чистые: один и тот же набор записей всегда даёт одну и ту же сводку.
package progress

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Freeeeeet/driving_booking/internal/model"
)

// TopSkillsLimit сколько навыков попадает в сводку
const TopSkillsLimit = 5

// Thresholds пороги готовности к экзамену, задаются конфигурацией
type Thresholds struct {
	MinHours  float64
	MinRating float64
}

// Summarize считает сводку по записям студента. Незавершённые записи игнорируются.
func Summarize(studentID int64, bookings []*model.Booking, th Thresholds) model.StudentProgress {
	summary := model.StudentProgress{
		StudentID:      studentID,
		TopSkills:      []string{},
		BookingsByType: make(map[model.LessonType]int),
	}

	completed := make([]*model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b != nil && b.Status == model.BookingStatusCompleted {
			completed = append(completed, b)
		}
	}
	if len(completed) == 0 {
		return summary
	}

	slices.SortStableFunc(completed, chronological)

	var ratingSum, rated int
	skillCount := make(map[string]int)
	var skillOrder []string

	for _, b := range completed {
		summary.TotalLessons++
		summary.BookingsByType[b.LessonType]++

		if b.HoursCompleted != nil {
			summary.TotalHours += *b.HoursCompleted
		}
		if b.PerformanceRating != nil {
			ratingSum += *b.PerformanceRating
			rated++
		}
		for _, skill := range b.SkillsImproved {
			skill = strings.TrimSpace(skill)
			if skill == "" {
				continue
			}
			if _, seen := skillCount[skill]; !seen {
				skillOrder = append(skillOrder, skill)
			}
			skillCount[skill]++
		}
	}

	if rated > 0 {
		summary.AverageRating = float64(ratingSum) / float64(rated)
	}

	// skillOrder уже в порядке первого появления, стабильная сортировка сохраняет его при равенстве
	slices.SortStableFunc(skillOrder, func(a, b string) int {
		return cmp.Compare(skillCount[b], skillCount[a])
	})
	if len(skillOrder) > TopSkillsLimit {
		skillOrder = skillOrder[:TopSkillsLimit]
	}
	summary.TopSkills = append(summary.TopSkills, skillOrder...)

	last := completed[len(completed)-1]
	lastDate := last.Date
	summary.LastLesson = &lastDate

	summary.ReadyForExam = summary.TotalHours >= th.MinHours &&
		summary.AverageRating >= th.MinRating &&
		last.ReadyForNextLevel != nil && *last.ReadyForNextLevel

	return summary
}

// chronological упорядочивает записи по дате и времени занятия
func chronological(a, b *model.Booking) int {
	if c := cmp.Compare(a.Date, b.Date); c != 0 {
		return c
	}
	if c := cmp.Compare(a.StartTime, b.StartTime); c != 0 {
		return c
	}
	if a.CompletedAt != nil && b.CompletedAt != nil {
		if c := a.CompletedAt.Compare(*b.CompletedAt); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ID, b.ID)
}
