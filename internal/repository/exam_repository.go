package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
)

const examFormColumns = `id, teacher_id, group_id, to_char(exam_date, 'YYYY-MM-DD'), exam_time, exam_type,
	is_open, max_requests, current_requests, created_at`

const examRequestColumns = `id, student_id, group_id, teacher_id, form_id, exam_type, status, student_notes,
	created_at, reviewed_by, reviewed_at, admin_notes, rejection_reason, result, result_notes,
	result_set_by, result_set_at`

// ExamFormRepository хранит формы записи на экзамен
type ExamFormRepository struct {
	*base.Repository
}

func NewExamFormRepository(b *base.Repository) *ExamFormRepository {
	return &ExamFormRepository{Repository: b}
}

// Create создаёт открытую форму
func (r *ExamFormRepository) Create(ctx context.Context, form *model.ExamForm) error {
	query := `
		INSERT INTO exam_forms (teacher_id, group_id, exam_date, exam_time, exam_type, is_open, max_requests)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7)
		RETURNING id, current_requests, created_at
	`

	err := r.Conn(ctx).QueryRow(
		ctx, query,
		form.TeacherID,
		form.GroupID,
		form.ExamDate,
		form.ExamTime,
		form.ExamType,
		form.IsOpen,
		form.MaxRequests,
	).Scan(&form.ID, &form.CurrentRequests, &form.CreatedAt)

	if err != nil {
		return fmt.Errorf("create exam form: %w", err)
	}

	return nil
}

// GetByID получает форму по ID
func (r *ExamFormRepository) GetByID(ctx context.Context, id int64) (*model.ExamForm, error) {
	query := `SELECT ` + examFormColumns + ` FROM exam_forms WHERE id = $1`

	form, err := scanExamForm(r.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exam form: %w", err)
	}

	return form, nil
}

// ListOpenByGroup получает открытые формы группы
func (r *ExamFormRepository) ListOpenByGroup(ctx context.Context, groupID uuid.UUID) ([]*model.ExamForm, error) {
	query := `SELECT ` + examFormColumns + `
		FROM exam_forms
		WHERE group_id = $1 AND is_open
		ORDER BY exam_date, exam_time, id
	`

	rows, err := r.Conn(ctx).Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("get open exam forms: %w", err)
	}
	defer rows.Close()

	var forms []*model.ExamForm
	for rows.Next() {
		form, err := scanExamForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exam form: %w", err)
		}
		forms = append(forms, form)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exam forms: %w", err)
	}

	return forms, nil
}

// IncrementRequests занимает место в открытой форме (инкремент current_requests)
func (r *ExamFormRepository) IncrementRequests(ctx context.Context, id int64) error {
	query := `
		UPDATE exam_forms
		SET current_requests = current_requests + 1
		WHERE id = $1 AND is_open AND current_requests < max_requests
	`

	result, err := r.Conn(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("use exam form: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("use exam form %d: %w", id, base.ErrNoCapacity)
	}

	return nil
}

// DecrementRequests возвращает место в форму
func (r *ExamFormRepository) DecrementRequests(ctx context.Context, id int64) error {
	query := `
		UPDATE exam_forms
		SET current_requests = current_requests - 1
		WHERE id = $1 AND current_requests > 0
	`

	result, err := r.Conn(ctx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("release exam form: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("release exam form %d: %w", id, base.ErrStaleState)
	}

	return nil
}

// Close закрывает форму
func (r *ExamFormRepository) Close(ctx context.Context, id int64) error {
	result, err := r.Conn(ctx).Exec(ctx, `UPDATE exam_forms SET is_open = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("close exam form: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("close exam form %d: %w", id, base.ErrStaleState)
	}

	return nil
}

// CloseBefore закрывает формы, дата экзамена которых раньше date
func (r *ExamFormRepository) CloseBefore(ctx context.Context, date string) (int64, error) {
	query := `UPDATE exam_forms SET is_open = false WHERE is_open AND exam_date < $1::date`

	result, err := r.Conn(ctx).Exec(ctx, query, date)
	if err != nil {
		return 0, fmt.Errorf("close expired exam forms: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanExamForm(row pgx.Row) (*model.ExamForm, error) {
	var f model.ExamForm
	err := row.Scan(
		&f.ID,
		&f.TeacherID,
		&f.GroupID,
		&f.ExamDate,
		&f.ExamTime,
		&f.ExamType,
		&f.IsOpen,
		&f.MaxRequests,
		&f.CurrentRequests,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ExamRequestRepository хранит заявки на экзамен
type ExamRequestRepository struct {
	*base.Repository
}

func NewExamRequestRepository(b *base.Repository) *ExamRequestRepository {
	return &ExamRequestRepository{Repository: b}
}

// Create создает заявку
func (r *ExamRequestRepository) Create(ctx context.Context, req *model.ExamRequest) error {
	query := `
		INSERT INTO exam_requests (student_id, group_id, teacher_id, form_id, exam_type, status, student_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.Conn(ctx).QueryRow(
		ctx, query,
		req.StudentID,
		req.GroupID,
		req.TeacherID,
		req.FormID,
		req.ExamType,
		req.Status,
		req.StudentNotes,
	).Scan(&req.ID, &req.CreatedAt)

	if err != nil {
		return base.UniqueErr("create exam request", err)
	}

	return nil
}

// GetByID получает заявку по ID
func (r *ExamRequestRepository) GetByID(ctx context.Context, id int64) (*model.ExamRequest, error) {
	query := `SELECT ` + examRequestColumns + ` FROM exam_requests WHERE id = $1`

	req, err := scanExamRequest(r.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get exam request: %w", err)
	}

	return req, nil
}

// FindActive получает активную заявку студента на тип экзамена
func (r *ExamRequestRepository) FindActive(ctx context.Context, studentID int64, examType model.ExamType) (*model.ExamRequest, error) {
	query := `SELECT ` + examRequestColumns + `
		FROM exam_requests
		WHERE student_id = $1 AND exam_type = $2 AND status IN ('pending', 'approved')
		LIMIT 1
	`

	req, err := scanExamRequest(r.Conn(ctx).QueryRow(ctx, query, studentID, examType))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active exam request: %w", err)
	}

	return req, nil
}

// List получает заявки по фильтру
func (r *ExamRequestRepository) List(ctx context.Context, filter model.ExamRequestFilter) ([]*model.ExamRequest, error) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.StudentID != 0 {
		add("student_id = $%d", filter.StudentID)
	}
	if filter.TeacherID != 0 {
		add("teacher_id = $%d", filter.TeacherID)
	}
	if filter.FormID != 0 {
		add("form_id = $%d", filter.FormID)
	}
	if filter.GroupID != nil {
		add("group_id = $%d", *filter.GroupID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	query := `SELECT ` + examRequestColumns + ` FROM exam_requests`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exam requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.ExamRequest
	for rows.Next() {
		req, err := scanExamRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exam request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exam requests: %w", err)
	}

	return requests, nil
}

// MarkReviewed сохраняет решение администратора по pending заявке
func (r *ExamRequestRepository) MarkReviewed(ctx context.Context, id int64, status model.ExamRequestStatus, reviewedBy int64, notes, reason *string, at time.Time) error {
	query := `
		UPDATE exam_requests
		SET status = $2, reviewed_by = $3, reviewed_at = $4, admin_notes = $5, rejection_reason = $6
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.Conn(ctx).Exec(ctx, query, id, status, reviewedBy, at, notes, reason)
	if err != nil {
		return fmt.Errorf("review exam request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("review exam request %d: %w", id, base.ErrStaleState)
	}

	return nil
}

// MarkResult сохраняет результат экзамена по одобренной заявке
func (r *ExamRequestRepository) MarkResult(ctx context.Context, id int64, result model.ExamRequestStatus, setBy int64, notes *string, at time.Time) error {
	query := `
		UPDATE exam_requests
		SET status = $2, result = $2, result_set_by = $3, result_notes = $4, result_set_at = $5
		WHERE id = $1 AND status = 'approved'
	`

	tag, err := r.Conn(ctx).Exec(ctx, query, id, result, setBy, notes, at)
	if err != nil {
		return fmt.Errorf("set exam result: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set exam result %d: %w", id, base.ErrStaleState)
	}

	return nil
}

func scanExamRequest(row pgx.Row) (*model.ExamRequest, error) {
	var req model.ExamRequest
	err := row.Scan(
		&req.ID,
		&req.StudentID,
		&req.GroupID,
		&req.TeacherID,
		&req.FormID,
		&req.ExamType,
		&req.Status,
		&req.StudentNotes,
		&req.CreatedAt,
		&req.ReviewedBy,
		&req.ReviewedAt,
		&req.AdminNotes,
		&req.RejectionReason,
		&req.Result,
		&req.ResultNotes,
		&req.ResultSetBy,
		&req.ResultSetAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
