package controller

import (
	"fmt"
	"strings"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/model"
)

var lessonLabels = map[model.LessonType]string{
	model.LessonTypeTheoretical: "Теория",
	model.LessonTypePractical:   "Вождение",
	model.LessonTypeExamPrep:    "Подготовка к экзамену",
}

var bookingStatusLabels = map[model.BookingStatus]string{
	model.BookingStatusConfirmed: "✅ Подтверждена",
	model.BookingStatusCancelled: "❌ Отменена",
	model.BookingStatusCompleted: "🏁 Проведена",
}

var requestStatusLabels = map[model.ExamRequestStatus]string{
	model.ExamRequestPending:  "⏳ На рассмотрении",
	model.ExamRequestApproved: "✅ Одобрена",
	model.ExamRequestRejected: "❌ Отклонена",
	model.ExamRequestPassed:   "🎉 Сдан",
	model.ExamRequestFailed:   "😔 Не сдан",
}

// Тексты отказов для пользователя
var failureTexts = map[apperr.Kind]string{
	apperr.KindForbidden:         "⛔ Недостаточно прав для этого действия.",
	apperr.KindNotFound:          "🔍 Не найдено.",
	apperr.KindAlreadyBooked:     "ℹ️ Вы уже записаны на этот слот.",
	apperr.KindAlreadyCancelled:  "ℹ️ Запись уже отменена.",
	apperr.KindAlreadyCompleted:  "ℹ️ Занятие уже отмечено проведённым.",
	apperr.KindDuplicateActive:   "ℹ️ У вас уже есть активная заявка на этот экзамен.",
	apperr.KindSlotFull:          "😔 В слоте не осталось мест.",
	apperr.KindCapacityExceeded:  "😔 В слоте не осталось мест.",
	apperr.KindFormFull:          "😔 Форма заполнена.",
	apperr.KindFormClosed:        "🔒 Форма закрыта.",
	apperr.KindNotEligible:       "📚 Пока недостаточно практики для экзамена.",
	apperr.KindTooLate:           "⏰ Записаться уже нельзя, занятие скоро начнётся.",
	apperr.KindNotYetOccurred:    "⏰ Занятие ещё не началось.",
	apperr.KindInvalidTransition: "⚠️ Действие недоступно в текущем статусе.",
	apperr.KindContention:        "🔁 Сервис занят, попробуйте ещё раз.",
	apperr.KindUnavailable:       "❌ Произошла ошибка. Попробуйте позже.",
}

func failure(e *apperr.ErrorBody) Reply {
	if e == nil {
		return Reply{Text: failureTexts[apperr.KindUnavailable]}
	}
	if e.Kind == apperr.KindValidation {
		return Reply{Text: "❌ " + e.Message}
	}
	if t, ok := failureTexts[e.Kind]; ok {
		return Reply{Text: t}
	}
	return Reply{Text: "❌ " + e.Message}
}

func formatSlot(s *model.Slot) string {
	return fmt.Sprintf("#%d %s %s %s-%s, мест: %d/%d",
		s.ID, lessonLabels[s.LessonType], s.Date, s.StartTime, s.EndTime, s.Remaining(), s.MaxCapacity)
}

func formatBooking(b *model.Booking) string {
	line := fmt.Sprintf("Запись #%d: %s %s %s-%s\n📊 %s",
		b.ID, lessonLabels[b.LessonType], b.Date, b.StartTime, b.EndTime, bookingStatusLabels[b.Status])
	if b.Status == model.BookingStatusCompleted && b.HoursCompleted != nil && b.PerformanceRating != nil {
		line += fmt.Sprintf(", %.1f ч, оценка %d", *b.HoursCompleted, *b.PerformanceRating)
	}
	return line
}

func formatProgress(p *model.StudentProgress) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📈 Прогресс студента #%d\n\n", p.StudentID)
	fmt.Fprintf(&sb, "Занятий: %d\nЧасов: %.1f\nСредняя оценка: %.2f\n", p.TotalLessons, p.TotalHours, p.AverageRating)
	if len(p.TopSkills) > 0 {
		fmt.Fprintf(&sb, "Навыки: %s\n", strings.Join(p.TopSkills, ", "))
	}
	if p.LastLesson != nil {
		fmt.Fprintf(&sb, "Последнее занятие: %s\n", *p.LastLesson)
	}
	if p.ReadyForExam {
		sb.WriteString("\n🎓 Готов к экзамену")
	} else {
		sb.WriteString("\n📚 Пока не готов к экзамену")
	}
	return sb.String()
}

func formatForm(f *model.ExamForm) string {
	return fmt.Sprintf("#%d %s %s %s, заявок: %d/%d",
		f.ID, examLabels[f.ExamType], f.ExamDate, f.ExamTime, f.CurrentRequests, f.MaxRequests)
}

var examLabels = map[model.ExamType]string{
	model.ExamTypeTheory:    "Теория",
	model.ExamTypePractical: "Вождение",
}

func formatRequest(r *model.ExamRequest) string {
	return fmt.Sprintf("#%d студент %d, %s, форма #%d: %s",
		r.ID, r.StudentID, examLabels[r.ExamType], r.FormID, requestStatusLabels[r.Status])
}
