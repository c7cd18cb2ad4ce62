package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
)

const slotColumns = `id, teacher_id, lesson_type, to_char(date, 'YYYY-MM-DD'), start_time, end_time,
	max_capacity, current_bookings, location, notes, created_at`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(b *base.Repository) *SlotRepository {
	return &SlotRepository{Repository: b}
}

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO schedule_slots (teacher_id, lesson_type, date, start_time, end_time, max_capacity, location, notes)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8)
		RETURNING id, current_bookings, created_at
	`

	err := r.Conn(ctx).QueryRow(
		ctx, query,
		slot.TeacherID,
		slot.LessonType,
		slot.Date,
		slot.StartTime,
		slot.EndTime,
		slot.MaxCapacity,
		slot.Location,
		slot.Notes,
	).Scan(&slot.ID, &slot.CurrentBookings, &slot.CreatedAt)

	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE id = $1`

	slot, err := scanSlot(r.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// ListAvailable получает ещё не начавшиеся слоты со свободными местами
func (r *SlotRepository) ListAvailable(ctx context.Context, filter model.SlotFilter, today, clock string) ([]*model.Slot, error) {
	conds := []string{
		"current_bookings < max_capacity",
		"date >= $1::date",
		"(date > $1::date OR start_time > $2)",
	}
	args := []any{today, clock}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.DateFrom != "" {
		add("date >= $%d::date", filter.DateFrom)
	}
	if filter.DateTo != "" {
		add("date <= $%d::date", filter.DateTo)
	}
	if filter.LessonType != "" {
		add("lesson_type = $%d", filter.LessonType)
	}
	if filter.TeacherID != 0 {
		add("teacher_id = $%d", filter.TeacherID)
	}
	if filter.TeacherIDs != nil {
		add("teacher_id = ANY($%d)", filter.TeacherIDs)
	}

	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY date, start_time, id`

	rows, err := r.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get available slots: %w", err)
	}

	return collectSlots(rows)
}

// ListByTeacher получает все слоты учителя в диапазоне дат
func (r *SlotRepository) ListByTeacher(ctx context.Context, teacherID int64, from, to string) ([]*model.Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE teacher_id = $1
		  AND date >= $2::date
		  AND date <= $3::date
		ORDER BY date, start_time, id
	`

	rows, err := r.Conn(ctx).Query(ctx, query, teacherID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get slots by teacher: %w", err)
	}

	return collectSlots(rows)
}

// IncrementBookings занимает место в слоте, если оно есть
func (r *SlotRepository) IncrementBookings(ctx context.Context, id int64) error {
	query := `
		UPDATE schedule_slots
		SET current_bookings = current_bookings + 1
		WHERE id = $1 AND current_bookings < max_capacity
	`

	result, err := r.Conn(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("reserve slot capacity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("reserve slot %d: %w", id, base.ErrNoCapacity)
	}

	return nil
}

// DecrementBookings освобождает место в слоте
func (r *SlotRepository) DecrementBookings(ctx context.Context, id int64) error {
	query := `
		UPDATE schedule_slots
		SET current_bookings = current_bookings - 1
		WHERE id = $1 AND current_bookings > 0
	`

	result, err := r.Conn(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("release slot capacity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("release slot %d: %w", id, base.ErrStaleState)
	}

	return nil
}

// Delete удаляет слот без активных записей
func (r *SlotRepository) Delete(ctx context.Context, id int64) error {
	query := `
		DELETE FROM schedule_slots s
		WHERE s.id = $1
		  AND s.current_bookings = 0
		  AND NOT EXISTS (SELECT 1 FROM bookings b WHERE b.schedule_id = s.id)
	`

	result, err := r.Conn(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete slot %d: %w", id, base.ErrStaleState)
	}

	return nil
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.ID,
		&slot.TeacherID,
		&slot.LessonType,
		&slot.Date,
		&slot.StartTime,
		&slot.EndTime,
		&slot.MaxCapacity,
		&slot.CurrentBookings,
		&slot.Location,
		&slot.Notes,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.Slot, error) {
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}
