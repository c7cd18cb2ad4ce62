package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventChannel(t *testing.T) {
	assert.Equal(t, ChannelNotifications, Event{Type: ExamPassed}.Channel())
	assert.Equal(t, ChannelActivity, Event{Type: ExamPassed, Activity: true}.Channel())
}

func TestRecorderAndFanout(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	pub := Fanout{a, b}

	require.NoError(t, pub.Publish(context.Background(),
		Event{Type: BookingConfirmed, RecipientID: 1},
		Event{Type: BookingConfirmed, RecipientID: 2},
		Event{Type: BookingCancelled, RecipientID: 1},
	))

	assert.Len(t, a.Events(), 3)
	assert.Len(t, b.OfType(BookingConfirmed), 2)
	assert.Empty(t, b.OfType(ExamFailed))
}
