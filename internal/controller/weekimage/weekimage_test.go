package weekimage

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/driving_booking/internal/model"
)

func TestMondayOf(t *testing.T) {
	wed := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	sun := time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), mondayOf(wed))
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), mondayOf(sun))
}

func TestSlotColor(t *testing.T) {
	assert.Equal(t, slotFreeColor, slotColor(&model.Slot{MaxCapacity: 3}))
	assert.Equal(t, slotPartialColor, slotColor(&model.Slot{MaxCapacity: 3, CurrentBookings: 1}))
	assert.Equal(t, slotFullColor, slotColor(&model.Slot{MaxCapacity: 1, CurrentBookings: 1}))
}

func TestRender(t *testing.T) {
	slots := []*model.Slot{
		{ID: 1, LessonType: model.LessonTypePractical, Date: "2026-03-03", StartTime: "10:00", EndTime: "11:30", MaxCapacity: 1, CurrentBookings: 1},
		{ID: 2, LessonType: model.LessonTypeTheoretical, Date: "2026-03-05", StartTime: "14:00", EndTime: "16:00", MaxCapacity: 10, CurrentBookings: 4},
		// следующая неделя, не рисуется
		{ID: 3, LessonType: model.LessonTypeTheoretical, Date: "2026-03-10", StartTime: "07:00", EndTime: "08:00", MaxCapacity: 10},
	}

	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	data, err := Render(day, day.Add(12*time.Hour), slots)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, imageWidth, img.Bounds().Dx())
	assert.Equal(t, imageHeight, img.Bounds().Dy())
}

func TestRender_BadSlot(t *testing.T) {
	_, err := Render(time.Now(), time.Now(), []*model.Slot{{ID: 9, Date: "bad", StartTime: "10:00", EndTime: "11:00"}})
	assert.Error(t, err)
}

func TestHoursFor(t *testing.T) {
	h := hoursFor(nil)
	assert.Equal(t, defaultMinHour-hourPaddingTop, h.start)

	start := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	h = hoursFor([]placedSlot{{start: start, end: start.Add(90 * time.Minute)}})
	assert.Equal(t, 9, h.start)
	assert.Equal(t, 13, h.end)
	assert.Equal(t, 5, h.total)
}
