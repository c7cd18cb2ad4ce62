package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/events"
	"github.com/Freeeeeet/driving_booking/internal/metrics"
	"github.com/Freeeeeet/driving_booking/internal/model"
)

// Clock серверное время в часовом поясе автошколы
type Clock struct {
	now func() time.Time
	loc *time.Location
}

func NewClock(now func() time.Time, loc *time.Location) Clock {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return Clock{now: now, loc: loc}
}

func (c Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today текущая дата YYYY-MM-DD
func (c Clock) Today() string {
	return c.Now().Format(model.DateLayout)
}

func (c Clock) Location() *time.Location {
	return c.loc
}

// Notifier публикует события после коммита. Ошибка публикации только логируется.
type Notifier struct {
	pub     events.Publisher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewNotifier(pub events.Publisher, m *metrics.Metrics, logger *zap.Logger) *Notifier {
	return &Notifier{pub: pub, metrics: m, logger: logger}
}

func (n *Notifier) emit(ctx context.Context, evs ...events.Event) {
	if n == nil || n.pub == nil || len(evs) == 0 {
		return
	}

	err := n.pub.Publish(ctx, evs...)
	for _, e := range evs {
		n.metrics.Event(string(e.Type), err)
	}
	if err != nil {
		n.logger.Error("Failed to publish events",
			zap.String("type", string(evs[0].Type)),
			zap.Int("count", len(evs)),
			zap.Error(err),
		)
	}
}

func newEvent(t events.Type, recipientID int64, at time.Time, payload map[string]any) events.Event {
	return events.Event{Type: t, RecipientID: recipientID, Payload: payload, OccurredAt: at}
}

// storeErr оставляет ошибки движка как есть, остальное считается сбоем хранилища
func storeErr(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Wrap(apperr.KindUnavailable, op, "storage unavailable", err)
}

// optional обрезает пробелы и превращает пустую строку в nil
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// logRejection пишет бизнес-отказ на Info, сбой инфраструктуры на Error
func logRejection(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
	if apperr.IsBusiness(err) {
		logger.Info(msg, fields...)
		return
	}
	logger.Error(msg, fields...)
}
