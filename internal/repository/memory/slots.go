package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/repository/base"
)

type SlotRepository struct {
	s *Store
}

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	defer r.s.lock(ctx)()

	slot.ID = r.s.nextID()
	slot.CurrentBookings = 0
	slot.CreatedAt = r.s.now()
	r.s.d.slots[slot.ID] = *slot
	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	defer r.s.lock(ctx)()

	slot, ok := r.s.d.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

// ListAvailable получает ещё не начавшиеся слоты со свободными местами
func (r *SlotRepository) ListAvailable(ctx context.Context, filter model.SlotFilter, today, clock string) ([]*model.Slot, error) {
	defer r.s.lock(ctx)()

	var out []*model.Slot
	for _, slot := range r.s.d.slots {
		if slot.IsFull() || slot.Date < today {
			continue
		}
		if slot.Date == today && slot.StartTime <= clock {
			continue
		}
		if filter.DateFrom != "" && slot.Date < filter.DateFrom {
			continue
		}
		if filter.DateTo != "" && slot.Date > filter.DateTo {
			continue
		}
		if filter.LessonType != "" && slot.LessonType != filter.LessonType {
			continue
		}
		if filter.TeacherID != 0 && slot.TeacherID != filter.TeacherID {
			continue
		}
		if filter.TeacherIDs != nil && !slices.Contains(filter.TeacherIDs, slot.TeacherID) {
			continue
		}
		out = append(out, &slot)
	}

	slices.SortFunc(out, compareSlots)
	return out, nil
}

// ListByTeacher получает все слоты учителя в диапазоне дат
func (r *SlotRepository) ListByTeacher(ctx context.Context, teacherID int64, from, to string) ([]*model.Slot, error) {
	defer r.s.lock(ctx)()

	var out []*model.Slot
	for _, slot := range r.s.d.slots {
		if slot.TeacherID == teacherID && slot.Date >= from && slot.Date <= to {
			out = append(out, &slot)
		}
	}

	slices.SortFunc(out, compareSlots)
	return out, nil
}

// IncrementBookings занимает место в слоте, если оно есть
func (r *SlotRepository) IncrementBookings(ctx context.Context, id int64) error {
	defer r.s.lock(ctx)()

	slot, ok := r.s.d.slots[id]
	if !ok || slot.IsFull() {
		return fmt.Errorf("reserve slot %d: %w", id, base.ErrNoCapacity)
	}
	slot.CurrentBookings++
	r.s.d.slots[id] = slot
	return nil
}

// DecrementBookings освобождает место в слоте
func (r *SlotRepository) DecrementBookings(ctx context.Context, id int64) error {
	defer r.s.lock(ctx)()

	slot, ok := r.s.d.slots[id]
	if !ok || slot.CurrentBookings == 0 {
		return fmt.Errorf("release slot %d: %w", id, base.ErrStaleState)
	}
	slot.CurrentBookings--
	r.s.d.slots[id] = slot
	return nil
}

// Delete удаляет слот без записей
func (r *SlotRepository) Delete(ctx context.Context, id int64) error {
	defer r.s.lock(ctx)()

	slot, ok := r.s.d.slots[id]
	if !ok || slot.CurrentBookings > 0 {
		return fmt.Errorf("delete slot %d: %w", id, base.ErrStaleState)
	}
	for _, b := range r.s.d.bookings {
		if b.ScheduleID == id {
			return fmt.Errorf("delete slot %d: %w", id, base.ErrStaleState)
		}
	}
	delete(r.s.d.slots, id)
	return nil
}

func compareSlots(a, b *model.Slot) int {
	if c := cmp.Compare(a.Date, b.Date); c != 0 {
		return c
	}
	if c := cmp.Compare(a.StartTime, b.StartTime); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
