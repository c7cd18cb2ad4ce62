package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid проверяет что роль известна
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleStudent
}

// Actor проверенная личность, от имени которой выполняется команда
type Actor struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// User пользователь портала, привязанный к Telegram
type User struct {
	ID         int64      `json:"id"`
	TelegramID int64      `json:"telegram_id"`
	Username   string     `json:"username"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Role       Role       `json:"role"`
	GroupID    *uuid.UUID `json:"group_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Actor возвращает личность пользователя для команд движка
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}
