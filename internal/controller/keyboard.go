package controller

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"
)

// keyboardBuilder упрощает создание inline клавиатур
type keyboardBuilder struct {
	rows [][]models.InlineKeyboardButton
}

func newKeyboard() *keyboardBuilder {
	return &keyboardBuilder{}
}

// row добавляет ряд кнопок
func (b *keyboardBuilder) row(buttons ...models.InlineKeyboardButton) *keyboardBuilder {
	if len(buttons) > 0 {
		b.rows = append(b.rows, buttons)
	}
	return b
}

// build возвращает nil для пустой клавиатуры
func (b *keyboardBuilder) build() *models.InlineKeyboardMarkup {
	if len(b.rows) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: b.rows}
}

// commandButton кнопка, которая повторяет команду бота: "book:12"
func commandButton(text, command string, id int64) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: fmt.Sprintf("%s:%d", command, id),
	}
}

// parseCallback "cancel:5" -> ("cancel", ["5"])
func parseCallback(data string) (string, []string, bool) {
	name, arg, ok := strings.Cut(data, ":")
	if !ok || name == "" || arg == "" {
		return "", nil, false
	}
	return name, []string{arg}, true
}

// callbackMessage сообщение, к которому была привязана кнопка
func callbackMessage(q *models.CallbackQuery) *models.Message {
	if q == nil {
		return nil
	}
	return q.Message.Message
}
