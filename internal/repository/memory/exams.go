package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
)

type ExamFormRepository struct {
	s *Store
}

// Create создаёт форму
func (r *ExamFormRepository) Create(ctx context.Context, form *model.ExamForm) error {
	defer r.s.lock(ctx)()

	form.ID = r.s.nextID()
	form.CurrentRequests = 0
	form.CreatedAt = r.s.now()
	r.s.d.forms[form.ID] = *form
	return nil
}

// GetByID получает форму по ID
func (r *ExamFormRepository) GetByID(ctx context.Context, id int64) (*model.ExamForm, error) {
	defer r.s.lock(ctx)()

	f, ok := r.s.d.forms[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// ListOpenByGroup получает открытые формы группы
func (r *ExamFormRepository) ListOpenByGroup(ctx context.Context, groupID uuid.UUID) ([]*model.ExamForm, error) {
	defer r.s.lock(ctx)()

	var out []*model.ExamForm
	for _, f := range r.s.d.forms {
		if f.GroupID == groupID && f.IsOpen {
			out = append(out, &f)
		}
	}

	slices.SortFunc(out, func(a, b *model.ExamForm) int {
		if c := cmp.Compare(a.ExamDate, b.ExamDate); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ExamTime, b.ExamTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// IncrementRequests занимает место в открытой форме
func (r *ExamFormRepository) IncrementRequests(ctx context.Context, id int64) error {
	defer r.s.lock(ctx)()

	f, ok := r.s.d.forms[id]
	if !ok || !f.CanAccept() {
		return fmt.Errorf("use exam form %d: %w", id, base.ErrNoCapacity)
	}
	f.CurrentRequests++
	r.s.d.forms[id] = f
	return nil
}

// DecrementRequests возвращает место в форму
func (r *ExamFormRepository) DecrementRequests(ctx context.Context, id int64) error {
	defer r.s.lock(ctx)()

	f, ok := r.s.d.forms[id]
	if !ok || f.CurrentRequests == 0 {
		return fmt.Errorf("release exam form %d: %w", id, base.ErrStaleState)
	}
	f.CurrentRequests--
	r.s.d.forms[id] = f
	return nil
}

// Close закрывает форму
func (r *ExamFormRepository) Close(ctx context.Context, id int64) error {
	defer r.s.lock(ctx)()

	f, ok := r.s.d.forms[id]
	if !ok {
		return fmt.Errorf("close exam form %d: %w", id, base.ErrStaleState)
	}
	f.IsOpen = false
	r.s.d.forms[id] = f
	return nil
}

// CloseBefore закрывает открытые формы с датой экзамена раньше date
func (r *ExamFormRepository) CloseBefore(ctx context.Context, date string) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, f := range r.s.d.forms {
		if f.IsOpen && f.ExamDate < date {
			f.IsOpen = false
			r.s.d.forms[id] = f
			n++
		}
	}
	return n, nil
}

type ExamRequestRepository struct {
	s *Store
}

// Create создаёт заявку. Вторая активная заявка студента на тот же тип экзамена запрещена.
func (r *ExamRequestRepository) Create(ctx context.Context, req *model.ExamRequest) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.d.requests {
		if existing.StudentID == req.StudentID && existing.ExamType == req.ExamType && existing.IsActive() {
			return fmt.Errorf("create exam request: %w", base.ErrUniqueViolation)
		}
	}

	req.ID = r.s.nextID()
	req.CreatedAt = r.s.now()
	r.s.d.requests[req.ID] = *req
	return nil
}

// GetByID получает заявку по ID
func (r *ExamRequestRepository) GetByID(ctx context.Context, id int64) (*model.ExamRequest, error) {
	defer r.s.lock(ctx)()

	req, ok := r.s.d.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

// FindActive получает активную заявку студента на тип экзамена
func (r *ExamRequestRepository) FindActive(ctx context.Context, studentID int64, examType model.ExamType) (*model.ExamRequest, error) {
	defer r.s.lock(ctx)()

	for _, req := range r.s.d.requests {
		if req.StudentID == studentID && req.ExamType == examType && req.IsActive() {
			return &req, nil
		}
	}
	return nil, nil
}

// List получает заявки по фильтру
func (r *ExamRequestRepository) List(ctx context.Context, filter model.ExamRequestFilter) ([]*model.ExamRequest, error) {
	defer r.s.lock(ctx)()

	var out []*model.ExamRequest
	for _, req := range r.s.d.requests {
		switch {
		case filter.StudentID != 0 && req.StudentID != filter.StudentID:
			continue
		case filter.TeacherID != 0 && req.TeacherID != filter.TeacherID:
			continue
		case filter.FormID != 0 && req.FormID != filter.FormID:
			continue
		case filter.GroupID != nil && req.GroupID != *filter.GroupID:
			continue
		case filter.Status != "" && req.Status != filter.Status:
			continue
		}
		out = append(out, &req)
	}

	slices.SortFunc(out, func(a, b *model.ExamRequest) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// MarkReviewed сохраняет решение по pending заявке
func (r *ExamRequestRepository) MarkReviewed(ctx context.Context, id int64, status model.ExamRequestStatus, reviewedBy int64, notes, reason *string, at time.Time) error {
	defer r.s.lock(ctx)()

	req, ok := r.s.d.requests[id]
	if !ok || req.Status != model.ExamRequestPending {
		return fmt.Errorf("review exam request %d: %w", id, base.ErrStaleState)
	}

	req.Status = status
	req.ReviewedBy = &reviewedBy
	req.ReviewedAt = &at
	req.AdminNotes = notes
	req.RejectionReason = reason
	r.s.d.requests[id] = req
	return nil
}

// MarkResult сохраняет результат по одобренной заявке
func (r *ExamRequestRepository) MarkResult(ctx context.Context, id int64, result model.ExamRequestStatus, setBy int64, notes *string, at time.Time) error {
	defer r.s.lock(ctx)()

	req, ok := r.s.d.requests[id]
	if !ok || req.Status != model.ExamRequestApproved {
		return fmt.Errorf("set exam result %d: %w", id, base.ErrStaleState)
	}

	req.Status = result
	req.Result = &result
	req.ResultSetBy = &setBy
	req.ResultNotes = notes
	req.ResultSetAt = &at
	r.s.d.requests[id] = req
	return nil
}
