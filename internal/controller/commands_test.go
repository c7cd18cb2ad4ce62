package controller

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/engine"
	"github.com/Freeeeeet/driving_booking/internal/events"
	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/progress"
	"github.com/Freeeeeet/driving_booking/internal/repository/memory"
	"github.com/Freeeeeet/driving_booking/internal/service"
)

var (
	testGroup = uuid.MustParse("6f1c2d1e-8a3b-4c55-9d2e-0b7a1f3c4d5e")
	testNow   = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	teacherUser = &model.User{ID: 10, TelegramID: 1010, Role: model.RoleTeacher}
	studentUser = &model.User{ID: 100, TelegramID: 1100, Role: model.RoleStudent, GroupID: &testGroup}
	adminUser   = &model.User{ID: 1, TelegramID: 1001, Role: model.RoleAdmin}
)

func newCommands(t *testing.T) (*Commands, *engine.Engine) {
	t.Helper()

	store := memory.NewStore()
	store.AssignTeacher(teacherUser.ID, testGroup)
	store.AddUser(*studentUser)

	eng := engine.Build(engine.MemoryStores(store), engine.Options{
		Now:        func() time.Time { return testNow },
		Location:   time.UTC,
		LeadTime:   2 * time.Hour,
		Thresholds: progress.Thresholds{MinHours: 2, MinRating: 4},
		Publisher:  &events.Recorder{},
	}, zap.NewNop())

	return NewCommands(eng, func() time.Time { return testNow }, time.UTC), eng
}

func publishSlot(t *testing.T, eng *engine.Engine) *model.Slot {
	t.Helper()
	res := eng.PublishSlot(context.Background(), teacherUser.Actor(), service.PublishSlotInput{
		TeacherID:   teacherUser.ID,
		LessonType:  model.LessonTypePractical,
		Date:        "2026-03-03",
		StartTime:   "10:00",
		EndTime:     "11:30",
		MaxCapacity: 1,
	})
	require.True(t, res.Success, "%+v", res.Error)
	return res.Data
}

func TestSplitCommand(t *testing.T) {
	name, args := splitCommand("/Book@driving_bot 12  note here")
	assert.Equal(t, "book", name)
	assert.Equal(t, []string{"12", "note", "here"}, args)

	name, args = splitCommand("")
	assert.Empty(t, name)
	assert.Nil(t, args)
}

func TestWeekRange(t *testing.T) {
	from, to := weekRange(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-03-02", from)
	assert.Equal(t, "2026-03-08", to)

	from, _ = weekRange(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-03-02", from)
}

func TestCommands_BookAndCancel(t *testing.T) {
	c, eng := newCommands(t)
	ctx := context.Background()
	slot := publishSlot(t, eng)

	reply := c.Execute(ctx, studentUser, "slots", nil)
	assert.Contains(t, reply.Text, "Вождение")

	reply = c.Execute(ctx, studentUser, "book", []string{"#" + itoa(slot.ID)})
	assert.Contains(t, reply.Text, "Вы записаны")

	reply = c.Execute(ctx, studentUser, "book", []string{itoa(slot.ID)})
	assert.Equal(t, failureTexts[apperr.KindAlreadyBooked], reply.Text)

	bookings := eng.ListForStudent(ctx, studentUser.ID)
	require.Len(t, bookings.Data, 1)

	reply = c.Execute(ctx, studentUser, "cancel", []string{itoa(bookings.Data[0].ID), "заболел"})
	assert.Contains(t, reply.Text, "отменена")

	reply = c.Execute(ctx, studentUser, "mybookings", nil)
	assert.Contains(t, reply.Text, "Отменена")
}

func TestCommands_Usage(t *testing.T) {
	c, _ := newCommands(t)
	ctx := context.Background()

	assert.True(t, strings.HasPrefix(c.Execute(ctx, studentUser, "book", nil).Text, "Использование"))
	assert.Equal(t, "❌ Неверный номер слота.", c.Execute(ctx, studentUser, "book", []string{"abc"}).Text)
	assert.Equal(t, helpText, c.Execute(ctx, studentUser, "unknown", nil).Text)
	assert.Equal(t, failureTexts[apperr.KindNotFound], c.Execute(ctx, studentUser, "cancel", []string{"42"}).Text)
}

func TestCommands_Progress(t *testing.T) {
	c, _ := newCommands(t)
	ctx := context.Background()

	reply := c.Execute(ctx, studentUser, "progress", nil)
	assert.Contains(t, reply.Text, "#100")
	assert.Contains(t, reply.Text, "Пока не готов")

	reply = c.Execute(ctx, teacherUser, "progress", nil)
	assert.True(t, strings.HasPrefix(reply.Text, "Использование"))
}

func TestCommands_Week(t *testing.T) {
	c, eng := newCommands(t)
	publishSlot(t, eng)

	reply := c.Execute(context.Background(), teacherUser, "week", nil)
	require.NotEmpty(t, reply.Photo)
	assert.Contains(t, reply.Text, "2026-03-02")

	reply = c.Execute(context.Background(), studentUser, "week", nil)
	assert.Nil(t, reply.Photo)
}

func TestCommands_ReviewRequiresAdmin(t *testing.T) {
	c, _ := newCommands(t)

	reply := c.Execute(context.Background(), teacherUser, "review", []string{"1", "approve"})
	assert.Equal(t, failureTexts[apperr.KindForbidden], reply.Text)

	reply = c.Execute(context.Background(), adminUser, "review", []string{"1", "approve"})
	assert.Equal(t, failureTexts[apperr.KindNotFound], reply.Text)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestParseCallback(t *testing.T) {
	name, args, ok := parseCallback("cancel:5")
	require.True(t, ok)
	assert.Equal(t, "cancel", name)
	assert.Equal(t, []string{"5"}, args)

	_, _, ok = parseCallback("cancel")
	assert.False(t, ok)
	_, _, ok = parseCallback(":5")
	assert.False(t, ok)
}

func TestCommands_Keyboards(t *testing.T) {
	c, eng := newCommands(t)
	ctx := context.Background()
	slot := publishSlot(t, eng)

	reply := c.Execute(ctx, studentUser, "slots", nil)
	require.NotNil(t, reply.Keyboard)
	require.Len(t, reply.Keyboard.InlineKeyboard, 1)
	assert.Equal(t, "book:"+itoa(slot.ID), reply.Keyboard.InlineKeyboard[0][0].CallbackData)

	// учителю кнопки записи не нужны
	assert.Nil(t, c.Execute(ctx, teacherUser, "slots", nil).Keyboard)

	name, args, ok := parseCallback(reply.Keyboard.InlineKeyboard[0][0].CallbackData)
	require.True(t, ok)
	assert.Contains(t, c.Execute(ctx, studentUser, name, args).Text, "Вы записаны")

	reply = c.Execute(ctx, studentUser, "mybookings", nil)
	require.NotNil(t, reply.Keyboard)
	assert.True(t, strings.HasPrefix(reply.Keyboard.InlineKeyboard[0][0].CallbackData, "cancel:"))
}
