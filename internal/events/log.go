package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher пишет события в лог, когда Redis не настроен
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, evs ...Event) error {
	for _, e := range evs {
		p.logger.Info("Event emitted",
			zap.String("type", string(e.Type)),
			zap.String("channel", e.Channel()),
			zap.Int64("recipient_id", e.RecipientID),
			zap.Any("payload", e.Payload),
		)
	}
	return nil
}
