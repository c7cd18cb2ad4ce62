package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
)

// UserRepository пользователи портала и их членство в группах.
// Сами пользователи и группы ведутся внешним приложением, движок их только читает.
type UserRepository struct {
	*base.Repository
}

func NewUserRepository(b *base.Repository) *UserRepository {
	return &UserRepository{Repository: b}
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := `
		SELECT id, telegram_id, username, first_name, last_name, role, group_id, created_at
		FROM users
		WHERE telegram_id = $1
	`

	user, err := scanUser(r.Conn(ctx).QueryRow(ctx, query, telegramID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}

	return user, nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, telegram_id, username, first_name, last_name, role, group_id, created_at
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(r.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

// GroupOfStudent возвращает группу студента или nil
func (r *UserRepository) GroupOfStudent(ctx context.Context, studentID int64) (*uuid.UUID, error) {
	var groupID *uuid.UUID
	err := r.Conn(ctx).QueryRow(ctx, `SELECT group_id FROM users WHERE id = $1`, studentID).Scan(&groupID)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student group: %w", err)
	}

	return groupID, nil
}

// TeachersOfGroup возвращает учителей, назначенных на группу
func (r *UserRepository) TeachersOfGroup(ctx context.Context, groupID uuid.UUID) ([]int64, error) {
	rows, err := r.Conn(ctx).Query(ctx,
		`SELECT teacher_id FROM group_teachers WHERE group_id = $1 ORDER BY teacher_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group teachers: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan group teachers: %w", err)
	}

	return ids, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	var telegramID *int64
	err := row.Scan(
		&user.ID,
		&telegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.GroupID,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if telegramID != nil {
		user.TelegramID = *telegramID
	}
	return &user, nil
}
