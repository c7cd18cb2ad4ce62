// Package memory хранилище в памяти процесса с теми же гарантиями, что и Postgres:
// транзакция держит общий мьютекс от чтения до записи и откатывается целиком при ошибке.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/driving_booking/internal/model"
)

type txKey struct{}

type data struct {
	seq           int64
	slots         map[int64]model.Slot
	bookings      map[int64]model.Booking
	forms         map[int64]model.ExamForm
	requests      map[int64]model.ExamRequest
	users         map[int64]model.User
	studentGroups map[int64]uuid.UUID
	groupTeachers map[uuid.UUID][]int64
}

func (d *data) clone() *data {
	c := &data{
		seq:           d.seq,
		slots:         maps.Clone(d.slots),
		bookings:      maps.Clone(d.bookings),
		forms:         maps.Clone(d.forms),
		requests:      maps.Clone(d.requests),
		users:         maps.Clone(d.users),
		studentGroups: maps.Clone(d.studentGroups),
		groupTeachers: make(map[uuid.UUID][]int64, len(d.groupTeachers)),
	}
	for k, v := range d.groupTeachers {
		c.groupTeachers[k] = slices.Clone(v)
	}
	return c
}

// Store общее состояние всех in-memory репозиториев
type Store struct {
	mu  sync.Mutex
	d   *data
	now func() time.Time
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	return &Store{
		d: &data{
			slots:         make(map[int64]model.Slot),
			bookings:      make(map[int64]model.Booking),
			forms:         make(map[int64]model.ExamForm),
			requests:      make(map[int64]model.ExamRequest),
			users:         make(map[int64]model.User),
			studentGroups: make(map[int64]uuid.UUID),
			groupTeachers: make(map[uuid.UUID][]int64),
		},
		now: time.Now,
	}
}

// WithinTx выполняет fn под мьютексом хранилища. При ошибке состояние возвращается к снимку.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

// lock берёт мьютекс, если вызов не внутри транзакции
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) nextID() int64 {
	s.d.seq++
	return s.d.seq
}

// AddUser добавляет пользователя. Группа студента попадает в справочник групп.
func (s *Store) AddUser(user model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.users[user.ID] = user
	if user.Role == model.RoleStudent && user.GroupID != nil {
		s.d.studentGroups[user.ID] = *user.GroupID
	}
}

// GetByID получает пользователя по ID
func (s *Store) GetByID(ctx context.Context, id int64) (*model.User, error) {
	defer s.lock(ctx)()
	u, ok := s.d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *Store) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	defer s.lock(ctx)()
	for _, u := range s.d.users {
		if u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, nil
}

// AssignStudent записывает студента в группу
func (s *Store) AssignStudent(studentID int64, groupID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.studentGroups[studentID] = groupID
}

// AssignTeacher назначает учителя на группу
func (s *Store) AssignTeacher(teacherID int64, groupID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.d.groupTeachers[groupID], teacherID) {
		s.d.groupTeachers[groupID] = append(s.d.groupTeachers[groupID], teacherID)
	}
}

// GroupOfStudent возвращает группу студента или nil
func (s *Store) GroupOfStudent(ctx context.Context, studentID int64) (*uuid.UUID, error) {
	defer s.lock(ctx)()
	g, ok := s.d.studentGroups[studentID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

// TeachersOfGroup возвращает учителей группы
func (s *Store) TeachersOfGroup(ctx context.Context, groupID uuid.UUID) ([]int64, error) {
	defer s.lock(ctx)()
	ids := slices.Clone(s.d.groupTeachers[groupID])
	slices.Sort(ids)
	return ids, nil
}

// Slots репозиторий слотов поверх хранилища
func (s *Store) Slots() *SlotRepository { return &SlotRepository{s: s} }

// Bookings репозиторий записей поверх хранилища
func (s *Store) Bookings() *BookingRepository { return &BookingRepository{s: s} }

// ExamForms репозиторий форм поверх хранилища
func (s *Store) ExamForms() *ExamFormRepository { return &ExamFormRepository{s: s} }

// ExamRequests репозиторий заявок поверх хранилища
func (s *Store) ExamRequests() *ExamRequestRepository { return &ExamRequestRepository{s: s} }
