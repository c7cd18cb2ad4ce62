package controller

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/engine"
	"github.com/Freeeeeet/driving_booking/internal/model"
)

// UserLookup находит пользователя портала по его Telegram аккаунту
type UserLookup interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

type BotController struct {
	bot      *bot.Bot
	commands *Commands
	users    UserLookup
	logger   *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	eng *engine.Engine,
	users UserLookup,
	now func() time.Time,
	loc *time.Location,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:      botInstance,
		commands: NewCommands(eng, now, loc),
		users:    users,
		logger:   logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handleStart)

	for _, name := range c.commands.Names() {
		c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/"+name, bot.MatchTypePrefix, c.handleCommand)
	}

	// Нажатия на inline кнопки повторяют команды
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, c.handleCallback)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "slots", Description: "🚗 Свободные слоты моей группы"},
		{Command: "book", Description: "✍️ Записаться: /book <слот>"},
		{Command: "mybookings", Description: "📅 Мои записи"},
		{Command: "cancel", Description: "❌ Отменить запись: /cancel <запись> [причина]"},
		{Command: "progress", Description: "📈 Мой прогресс"},
		{Command: "forms", Description: "📝 Открытые формы на экзамен"},
		{Command: "examrequest", Description: "🎓 Подать заявку: /examrequest <форма>"},
		{Command: "complete", Description: "✅ Провести занятие (учитель)"},
		{Command: "week", Description: "🗓 Неделя слотов (учитель)"},
		{Command: "review", Description: "🔎 Рассмотреть заявку (админ)"},
		{Command: "result", Description: "🏁 Результат экзамена"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

func (c *BotController) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	c.send(ctx, b, update.Message.Chat.ID, Reply{Text: helpText})
}

func (c *BotController) handleCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user, err := c.users.GetByTelegramID(ctx, update.Message.From.ID)
	if err != nil {
		c.logger.Error("Failed to get user", zap.Int64("telegram_id", update.Message.From.ID), zap.Error(err))
		c.send(ctx, b, chatID, Reply{Text: "❌ Произошла ошибка. Попробуйте позже."})
		return
	}
	if user == nil {
		c.send(ctx, b, chatID, Reply{Text: "❌ Аккаунт не привязан к порталу автошколы."})
		return
	}

	name, args := splitCommand(update.Message.Text)
	c.logger.Info("Bot command",
		zap.Int64("user_id", user.ID),
		zap.String("command", name),
		zap.Int("args", len(args)))

	c.send(ctx, b, chatID, c.commands.Execute(ctx, user, name, args))
}

func (c *BotController) handleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	q := update.CallbackQuery
	if q == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID})

	msg := callbackMessage(q)
	name, args, ok := parseCallback(q.Data)
	if msg == nil || !ok {
		c.logger.Warn("Unknown callback", zap.String("data", q.Data))
		return
	}

	user, err := c.users.GetByTelegramID(ctx, q.From.ID)
	if err != nil || user == nil {
		c.logger.Error("Failed to get user", zap.Int64("telegram_id", q.From.ID), zap.Error(err))
		c.send(ctx, b, msg.Chat.ID, Reply{Text: "❌ Аккаунт не привязан к порталу автошколы."})
		return
	}

	c.send(ctx, b, msg.Chat.ID, c.commands.Execute(ctx, user, name, args))
}

func (c *BotController) send(ctx context.Context, b *bot.Bot, chatID int64, r Reply) {
	var err error
	if r.Photo != nil {
		_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  chatID,
			Photo:   &models.InputFileUpload{Filename: "week.png", Data: bytes.NewReader(r.Photo)},
			Caption: r.Text,
		})
	} else {
		params := &bot.SendMessageParams{
			ChatID: chatID,
			Text:   r.Text,
		}
		if r.Keyboard != nil {
			params.ReplyMarkup = r.Keyboard
		}
		_, err = b.SendMessage(ctx, params)
	}
	if err != nil {
		c.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// Start запускает бота
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}

// splitCommand "/book@bot 12 x" -> ("book", ["12", "x"])
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), fields[1:]
}
