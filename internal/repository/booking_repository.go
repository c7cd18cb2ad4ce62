package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
)

const bookingColumns = `id, student_id, schedule_id, teacher_id, lesson_type, to_char(date, 'YYYY-MM-DD'),
	start_time, end_time, status, notes, booked_at, cancelled_at, cancelled_by, cancellation_reason,
	completed_at, hours_completed::float8, performance_rating, skills_improved, areas_to_improve, ready_for_next_level`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(b *base.Repository) *BookingRepository {
	return &BookingRepository{Repository: b}
}

// Create создаёт новое бронирование со снимком слота
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (student_id, schedule_id, teacher_id, lesson_type, date, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9)
		RETURNING id, booked_at
	`

	err := r.Conn(ctx).QueryRow(
		ctx, query,
		booking.StudentID,
		booking.ScheduleID,
		booking.TeacherID,
		booking.LessonType,
		booking.Date,
		booking.StartTime,
		booking.EndTime,
		booking.Status,
		booking.Notes,
	).Scan(&booking.ID, &booking.BookedAt)

	if err != nil {
		return base.UniqueErr("create booking", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// FindActive получает не отменённую запись студента на слот
func (r *BookingRepository) FindActive(ctx context.Context, studentID, scheduleID int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE student_id = $1 AND schedule_id = $2 AND status <> 'cancelled'
		LIMIT 1
	`

	booking, err := scanBooking(r.Conn(ctx).QueryRow(ctx, query, studentID, scheduleID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active booking: %w", err)
	}

	return booking, nil
}

// ListByStudent получает все бронирования студента
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE student_id = $1
		ORDER BY date, start_time, id
	`

	rows, err := r.Conn(ctx).Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("get bookings by student: %w", err)
	}

	return collectBookings(rows)
}

// ListByTeacher получает все бронирования для учителя
func (r *BookingRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE teacher_id = $1
		ORDER BY date, start_time, id
	`

	rows, err := r.Conn(ctx).Query(ctx, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get bookings by teacher: %w", err)
	}

	return collectBookings(rows)
}

// ListCompletedByStudent получает проведённые занятия студента
func (r *BookingRepository) ListCompletedByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE student_id = $1 AND status = 'completed'
		ORDER BY date, start_time, id
	`

	rows, err := r.Conn(ctx).Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("get completed bookings: %w", err)
	}

	return collectBookings(rows)
}

// MarkCancelled отменяет подтверждённое бронирование
func (r *BookingRepository) MarkCancelled(ctx context.Context, id, cancelledBy int64, reason *string, at time.Time) error {
	query := `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = $2, cancelled_by = $3, cancellation_reason = $4
		WHERE id = $1 AND status = 'confirmed'
	`

	result, err := r.Conn(ctx).Exec(ctx, query, id, at, cancelledBy, reason)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("cancel booking %d: %w", id, base.ErrStaleState)
	}

	return nil
}

// MarkCompleted сохраняет итоги занятия
func (r *BookingRepository) MarkCompleted(ctx context.Context, id int64, c model.Completion, at time.Time) error {
	query := `
		UPDATE bookings
		SET status = 'completed',
		    completed_at = $2,
		    hours_completed = $3,
		    performance_rating = $4,
		    skills_improved = $5,
		    areas_to_improve = NULLIF($6, ''),
		    ready_for_next_level = $7
		WHERE id = $1 AND status = 'confirmed'
	`

	skills := c.SkillsImproved
	if skills == nil {
		skills = []string{}
	}

	result, err := r.Conn(ctx).Exec(ctx, query,
		id, at, c.HoursCompleted, c.PerformanceRating, skills, c.AreasToImprove, c.ReadyForNextLevel)
	if err != nil {
		return fmt.Errorf("complete booking: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("complete booking %d: %w", id, base.ErrStaleState)
	}

	return nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.ScheduleID,
		&b.TeacherID,
		&b.LessonType,
		&b.Date,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.Notes,
		&b.BookedAt,
		&b.CancelledAt,
		&b.CancelledBy,
		&b.CancellationReason,
		&b.CompletedAt,
		&b.HoursCompleted,
		&b.PerformanceRating,
		&b.SkillsImproved,
		&b.AreasToImprove,
		&b.ReadyForNextLevel,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}
