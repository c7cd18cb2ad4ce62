// Package events решения движка о том, кого и о чём уведомить.
// Доставка уведомлений выполняется внешним компонентом, который читает каналы Redis.
package events

import (
	"context"
	"time"
)

type Type string

const (
	BookingConfirmed     Type = "booking_confirmed"
	BookingCancelled     Type = "booking_cancelled"
	ExamRequestSubmitted Type = "exam_request_submitted"
	ExamRequestApproved  Type = "exam_request_approved"
	ExamRequestRejected  Type = "exam_request_rejected"
	ExamPassed           Type = "exam_passed"
	ExamFailed           Type = "exam_failed"
)

// Каналы Redis для уведомлений и ленты активности
const (
	ChannelNotifications = "events:notifications"
	ChannelActivity      = "events:activity"
)

// Event уведомление одному получателю
type Event struct {
	Type        Type           `json:"type"`
	RecipientID int64          `json:"recipient_id"`
	Payload     map[string]any `json:"payload"`
	OccurredAt  time.Time      `json:"occurred_at"`
	// Activity запись для ленты активности, а не личное уведомление
	Activity bool `json:"-"`
}

// Channel возвращает канал, в который публикуется событие
func (e Event) Channel() string {
	if e.Activity {
		return ChannelActivity
	}
	return ChannelNotifications
}

// Publisher отправляет события после фиксации транзакции
type Publisher interface {
	Publish(ctx context.Context, evs ...Event) error
}
