package controller

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/controller/weekimage"
	"github.com/Freeeeeet/driving_booking/internal/engine"
	"github.com/Freeeeeet/driving_booking/internal/model"
)

const helpText = "👋 Бот автошколы\n\n" +
	"Для студентов:\n" +
	"/slots - Свободные слоты группы\n" +
	"/book <слот> [заметка] - Записаться\n" +
	"/mybookings - Мои записи\n" +
	"/cancel <запись> [причина] - Отменить запись\n" +
	"/progress - Мой прогресс\n" +
	"/forms - Открытые формы на экзамен\n" +
	"/examrequest <форма> [заметка] - Подать заявку\n" +
	"/requests - Мои заявки\n\n" +
	"Для учителей:\n" +
	"/week [ГГГГ-ММ-ДД] - Неделя слотов картинкой\n" +
	"/complete <запись> <часы> <оценка> [навыки,через,запятую]\n" +
	"/progress <студент> - Прогресс студента\n\n" +
	"Для администраторов:\n" +
	"/review <заявка> approve|reject [причина]\n" +
	"/result <заявка> passed|failed [заметка]"

// Reply ответ бота: текст и, возможно, картинка
type Reply struct {
	Text     string
	Photo    []byte
	Keyboard *models.InlineKeyboardMarkup
}

func text(format string, args ...any) Reply {
	return Reply{Text: fmt.Sprintf(format, args...)}
}

type commandFunc func(ctx context.Context, user *model.User, args []string) Reply

// Commands выполняет текстовые команды бота через движок
type Commands struct {
	engine   *engine.Engine
	now      func() time.Time
	loc      *time.Location
	handlers map[string]commandFunc
}

func NewCommands(eng *engine.Engine, now func() time.Time, loc *time.Location) *Commands {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}

	c := &Commands{engine: eng, now: now, loc: loc}
	c.handlers = map[string]commandFunc{
		"slots":       c.slots,
		"book":        c.book,
		"mybookings":  c.myBookings,
		"cancel":      c.cancel,
		"progress":    c.progress,
		"forms":       c.forms,
		"examrequest": c.examRequest,
		"requests":    c.requests,
		"complete":    c.complete,
		"week":        c.week,
		"review":      c.review,
		"result":      c.result,
	}
	return c
}

// Names список команд для регистрации в боте
func (c *Commands) Names() []string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	return names
}

// Execute выполняет команду от имени пользователя
func (c *Commands) Execute(ctx context.Context, user *model.User, name string, args []string) Reply {
	fn, ok := c.handlers[name]
	if !ok {
		return Reply{Text: helpText}
	}
	return fn(ctx, user, args)
}

func (c *Commands) slots(ctx context.Context, user *model.User, _ []string) Reply {
	var res apperr.Result[[]*model.Slot]
	switch user.Role {
	case model.RoleStudent:
		res = c.engine.ListAvailableForStudent(ctx, user.ID)
	case model.RoleTeacher:
		res = c.engine.ListAvailable(ctx, model.SlotFilter{TeacherID: user.ID})
	default:
		res = c.engine.ListAvailable(ctx, model.SlotFilter{})
	}
	if !res.Success {
		return failure(res.Error)
	}
	if len(res.Data) == 0 {
		return Reply{Text: "📭 Свободных слотов нет."}
	}

	var sb strings.Builder
	kb := newKeyboard()
	sb.WriteString("🚗 Свободные слоты:\n\n")
	for _, s := range res.Data {
		sb.WriteString(formatSlot(s))
		sb.WriteString("\n")
		if user.Role == model.RoleStudent {
			kb.row(commandButton(fmt.Sprintf("✍️ Записаться #%d", s.ID), "book", s.ID))
		}
	}
	return Reply{Text: sb.String(), Keyboard: kb.build()}
}

func (c *Commands) book(ctx context.Context, user *model.User, args []string) Reply {
	if len(args) < 1 {
		return Reply{Text: "Использование: /book <слот> [заметка]"}
	}
	slotID, err := parseID(args[0])
	if err != nil {
		return Reply{Text: "❌ Неверный номер слота."}
	}

	res := c.engine.CreateBooking(ctx, user.Actor(), user.ID, slotID, rest(args, 1))
	if !res.Success {
		return failure(res.Error)
	}
	return text("✅ Вы записаны!\n\n%s", formatBooking(res.Data))
}

func (c *Commands) myBookings(ctx context.Context, user *model.User, _ []string) Reply {
	var res apperr.Result[[]*model.Booking]
	if user.Role == model.RoleTeacher {
		res = c.engine.ListForTeacher(ctx, user.ID)
	} else {
		res = c.engine.ListForStudent(ctx, user.ID)
	}
	if !res.Success {
		return failure(res.Error)
	}
	if len(res.Data) == 0 {
		return Reply{Text: "📭 Записей пока нет."}
	}

	var sb strings.Builder
	kb := newKeyboard()
	sb.WriteString("📅 Записи:\n\n")
	for _, b := range res.Data {
		sb.WriteString(formatBooking(b))
		sb.WriteString("\n\n")
		if b.Status == model.BookingStatusConfirmed {
			kb.row(commandButton(fmt.Sprintf("❌ Отменить #%d", b.ID), "cancel", b.ID))
		}
	}
	return Reply{Text: strings.TrimSpace(sb.String()), Keyboard: kb.build()}
}

func (c *Commands) cancel(ctx context.Context, user *model.User, args []string) Reply {
	if len(args) < 1 {
		return Reply{Text: "Использование: /cancel <запись> [причина]"}
	}
	id, err := parseID(args[0])
	if err != nil {
		return Reply{Text: "❌ Неверный номер записи."}
	}

	res := c.engine.CancelBooking(ctx, user.Actor(), id, rest(args, 1))
	if !res.Success {
		return failure(res.Error)
	}
	return text("✅ Запись #%d отменена.", res.Data.ID)
}

func (c *Commands) complete(ctx context.Context, user *model.User, args []string) Reply {
	if len(args) < 3 {
		return Reply{Text: "Использование: /complete <запись> <часы> <оценка 1-5> [навыки,через,запятую]"}
	}
	id, err := parseID(args[0])
	if err != nil {
		return Reply{Text: "❌ Неверный номер записи."}
	}
	hours, err := strconv.ParseFloat(strings.ReplaceAll(args[1], ",", "."), 64)
	if err != nil {
		return Reply{Text: "❌ Часы должны быть числом."}
	}
	rating, err := strconv.Atoi(args[2])
	if err != nil {
		return Reply{Text: "❌ Оценка должна быть числом от 1 до 5."}
	}

	completion := model.Completion{HoursCompleted: hours, PerformanceRating: rating}
	if len(args) > 3 {
		completion.SkillsImproved = strings.Split(args[3], ",")
	}

	res := c.engine.CompleteBooking(ctx, user.Actor(), id, completion)
	if !res.Success {
		return failure(res.Error)
	}
	return text("✅ Занятие #%d проведено: %.1f ч, оценка %d.", res.Data.ID, hours, rating)
}

func (c *Commands) progress(ctx context.Context, user *model.User, args []string) Reply {
	studentID := user.ID
	if user.Role != model.RoleStudent {
		if len(args) < 1 {
			return Reply{Text: "Использование: /progress <студент>"}
		}
		id, err := parseID(args[0])
		if err != nil {
			return Reply{Text: "❌ Неверный номер студента."}
		}
		studentID = id
	}

	res := c.engine.Summarize(ctx, studentID)
	if !res.Success {
		return failure(res.Error)
	}
	return Reply{Text: formatProgress(res.Data)}
}

func (c *Commands) forms(ctx context.Context, user *model.User, args []string) Reply {
	var groupID uuid.UUID
	switch {
	case len(args) > 0:
		id, err := uuid.Parse(args[0])
		if err != nil {
			return Reply{Text: "❌ Неверный идентификатор группы."}
		}
		groupID = id
	case user.GroupID != nil:
		groupID = *user.GroupID
	default:
		return Reply{Text: "Использование: /forms <группа>"}
	}

	res := c.engine.ListOpenForms(ctx, groupID)
	if !res.Success {
		return failure(res.Error)
	}
	if len(res.Data) == 0 {
		return Reply{Text: "📭 Открытых форм нет."}
	}

	var sb strings.Builder
	sb.WriteString("📝 Открытые формы:\n\n")
	for _, f := range res.Data {
		sb.WriteString(formatForm(f))
		sb.WriteString("\n")
	}
	return Reply{Text: sb.String()}
}

func (c *Commands) examRequest(ctx context.Context, user *model.User, args []string) Reply {
	if len(args) < 1 {
		return Reply{Text: "Использование: /examrequest <форма> [заметка]"}
	}
	formID, err := parseID(args[0])
	if err != nil {
		return Reply{Text: "❌ Неверный номер формы."}
	}

	res := c.engine.SubmitRequest(ctx, user.Actor(), user.ID, formID, rest(args, 1))
	if !res.Success {
		return failure(res.Error)
	}
	return text("✅ Заявка #%d отправлена и ждёт рассмотрения.", res.Data.ID)
}

func (c *Commands) requests(ctx context.Context, user *model.User, _ []string) Reply {
	var filter model.ExamRequestFilter
	switch user.Role {
	case model.RoleStudent:
		filter.StudentID = user.ID
	case model.RoleTeacher:
		filter.TeacherID = user.ID
	default:
		filter.Status = model.ExamRequestPending
	}

	res := c.engine.ListExamRequests(ctx, filter)
	if !res.Success {
		return failure(res.Error)
	}
	if len(res.Data) == 0 {
		return Reply{Text: "📭 Заявок нет."}
	}

	var sb strings.Builder
	sb.WriteString("🎓 Заявки:\n\n")
	for _, r := range res.Data {
		sb.WriteString(formatRequest(r))
		sb.WriteString("\n")
	}
	return Reply{Text: sb.String()}
}

func (c *Commands) review(ctx context.Context, user *model.User, args []string) Reply {
	if len(args) < 2 {
		return Reply{Text: "Использование: /review <заявка> approve|reject [причина]"}
	}
	id, err := parseID(args[0])
	if err != nil {
		return Reply{Text: "❌ Неверный номер заявки."}
	}

	action := model.ReviewAction(strings.ToLower(args[1]))
	var notes, reason *string
	if action == model.ReviewReject {
		reason = rest(args, 2)
	} else {
		notes = rest(args, 2)
	}

	res := c.engine.Review(ctx, user.Actor(), id, action, notes, reason)
	if !res.Success {
		return failure(res.Error)
	}
	return text("✅ Заявка #%d: %s", res.Data.ID, requestStatusLabels[res.Data.Status])
}

func (c *Commands) result(ctx context.Context, user *model.User, args []string) Reply {
	if len(args) < 2 {
		return Reply{Text: "Использование: /result <заявка> passed|failed [заметка]"}
	}
	id, err := parseID(args[0])
	if err != nil {
		return Reply{Text: "❌ Неверный номер заявки."}
	}

	res := c.engine.SetResult(ctx, user.Actor(), id, model.ExamRequestStatus(strings.ToLower(args[1])), rest(args, 2))
	if !res.Success {
		return failure(res.Error)
	}
	return text("✅ Результат по заявке #%d: %s", res.Data.ID, requestStatusLabels[res.Data.Status])
}

func (c *Commands) week(ctx context.Context, user *model.User, args []string) Reply {
	if user.Role != model.RoleTeacher {
		return Reply{Text: "❌ Эта команда доступна только учителям."}
	}

	day := c.now().In(c.loc)
	if len(args) > 0 {
		d, err := time.ParseInLocation(model.DateLayout, args[0], c.loc)
		if err != nil {
			return Reply{Text: "❌ Дата в формате ГГГГ-ММ-ДД."}
		}
		day = d
	}

	from, to := weekRange(day)
	res := c.engine.ListTeacherSlots(ctx, user.ID, from, to)
	if !res.Success {
		return failure(res.Error)
	}

	img, err := weekimage.Render(day, c.now(), res.Data)
	if err != nil {
		return Reply{Text: "❌ Не удалось построить расписание."}
	}
	return Reply{Text: fmt.Sprintf("🗓 Слоты %s - %s", from, to), Photo: img}
}

// weekRange границы недели Пн-Вс в формате дат слотов
func weekRange(day time.Time) (string, string) {
	offset := int(day.Weekday()) - 1
	if day.Weekday() == time.Sunday {
		offset = 6
	}
	monday := day.AddDate(0, 0, -offset)
	return monday.Format(model.DateLayout), monday.AddDate(0, 0, 6).Format(model.DateLayout)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// rest склеивает хвост аргументов, nil если он пустой
func rest(args []string, from int) *string {
	if len(args) <= from {
		return nil
	}
	s := strings.Join(args[from:], " ")
	return &s
}
