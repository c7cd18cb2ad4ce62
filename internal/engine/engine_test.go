package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/cache"
	"github.com/Freeeeeet/driving_booking/internal/events"
	"github.com/Freeeeeet/driving_booking/internal/metrics"
	"github.com/Freeeeeet/driving_booking/internal/model"
	"github.com/Freeeeeet/driving_booking/internal/progress"
	"github.com/Freeeeeet/driving_booking/internal/repository/memory"
	"github.com/Freeeeeet/driving_booking/internal/service"
)

const (
	adminID    int64 = 1
	teacherID  int64 = 10
	otherTeach int64 = 11
	studentA   int64 = 100
	studentB   int64 = 101
)

var (
	groupA = uuid.MustParse("6f1c2d1e-8a3b-4c55-9d2e-0b7a1f3c4d5e")
	groupB = uuid.MustParse("0a9b8c7d-6e5f-4a3b-8c1d-2e3f4a5b6c7d")

	admin   = model.Actor{UserID: adminID, Role: model.RoleAdmin}
	teacher = model.Actor{UserID: teacherID, Role: model.RoleTeacher}
	alice   = model.Actor{UserID: studentA, Role: model.RoleStudent}
	bob     = model.Actor{UserID: studentB, Role: model.RoleStudent}
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fixture struct {
	engine   *Engine
	store    *memory.Store
	recorder *events.Recorder
	clock    *testClock
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()

	clock := &testClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	store.AssignTeacher(teacherID, groupA)
	store.AssignTeacher(otherTeach, groupB)
	store.AssignStudent(studentA, groupA)
	store.AssignStudent(studentB, groupA)

	rec := &events.Recorder{}
	m := metrics.New()

	o := Options{
		Now:              clock.Now,
		Location:         time.UTC,
		LeadTime:         2 * time.Hour,
		Thresholds:       progress.Thresholds{MinHours: 2, MinRating: 4},
		RequireReadiness: false,
		ProgressCache:    cache.NewMemoryProgress(time.Hour),
		Publisher:        rec,
		Metrics:          m,
	}
	for _, fn := range opts {
		fn(&o)
	}

	return &fixture{
		engine:   Build(MemoryStores(store), o, zap.NewNop()),
		store:    store,
		recorder: rec,
		clock:    clock,
		metrics:  m,
	}
}

func (f *fixture) publishSlot(t *testing.T, lessonType model.LessonType, capacity int) *model.Slot {
	t.Helper()
	res := f.engine.PublishSlot(context.Background(), teacher, service.PublishSlotInput{
		TeacherID:   teacherID,
		LessonType:  lessonType,
		Date:        "2026-03-03",
		StartTime:   "10:00",
		EndTime:     "11:30",
		MaxCapacity: capacity,
	})
	require.True(t, res.Success, "publish slot: %+v", res.Error)
	return res.Data
}

func (f *fixture) publishForm(t *testing.T, examType model.ExamType, maxRequests int) *model.ExamForm {
	t.Helper()
	res := f.engine.PublishForm(context.Background(), teacher, service.PublishFormInput{
		TeacherID:   teacherID,
		GroupID:     groupA,
		ExamDate:    "2026-03-20",
		ExamTime:    "09:00",
		ExamType:    examType,
		MaxRequests: maxRequests,
	})
	require.True(t, res.Success, "publish form: %+v", res.Error)
	return res.Data
}

func kindOf[T any](res apperr.Result[T]) apperr.Kind {
	if res.Error == nil {
		return ""
	}
	return res.Error.Kind
}

func TestPublishSlotValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	valid := service.PublishSlotInput{
		TeacherID:   teacherID,
		LessonType:  model.LessonTypeTheoretical,
		Date:        "2026-03-03",
		StartTime:   "10:00",
		EndTime:     "11:00",
		MaxCapacity: 8,
	}

	tests := []struct {
		name   string
		actor  model.Actor
		mutate func(in *service.PublishSlotInput)
		kind   apperr.Kind
	}{
		{"valid", teacher, func(*service.PublishSlotInput) {}, ""},
		{"admin on behalf of teacher", admin, func(*service.PublishSlotInput) {}, ""},
		{"start equals end", teacher, func(in *service.PublishSlotInput) { in.EndTime = "10:00" }, apperr.KindValidation},
		{"start after end", teacher, func(in *service.PublishSlotInput) { in.StartTime = "12:00" }, apperr.KindValidation},
		{"date in the past", teacher, func(in *service.PublishSlotInput) { in.Date = "2026-03-01" }, apperr.KindValidation},
		{"malformed date", teacher, func(in *service.PublishSlotInput) { in.Date = "03/03/2026" }, apperr.KindValidation},
		{"malformed time", teacher, func(in *service.PublishSlotInput) { in.StartTime = "ten" }, apperr.KindValidation},
		{"unknown lesson type", teacher, func(in *service.PublishSlotInput) { in.LessonType = "yoga" }, apperr.KindValidation},
		{"zero capacity", teacher, func(in *service.PublishSlotInput) { in.MaxCapacity = 0 }, apperr.KindValidation},
		{"practical with two seats", teacher, func(in *service.PublishSlotInput) {
			in.LessonType = model.LessonTypePractical
			in.MaxCapacity = 2
		}, apperr.KindValidation},
		{"practical one to one", teacher, func(in *service.PublishSlotInput) {
			in.LessonType = model.LessonTypePractical
			in.MaxCapacity = 1
		}, ""},
		{"teacher for another teacher", teacher, func(in *service.PublishSlotInput) { in.TeacherID = otherTeach }, apperr.KindForbidden},
		{"student", alice, func(*service.PublishSlotInput) {}, apperr.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			res := f.engine.PublishSlot(ctx, tt.actor, in)
			assert.Equal(t, tt.kind, kindOf(res))
			if tt.kind == "" {
				require.NotNil(t, res.Data)
				assert.Zero(t, res.Data.CurrentBookings)
			}
		})
	}
}

func TestNoOverbooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.publishSlot(t, model.LessonTypeTheoretical, 3)

	const students = 12
	for i := range students {
		f.store.AssignStudent(int64(200+i), groupA)
	}

	var wg sync.WaitGroup
	results := make([]apperr.Result[*model.Booking], students)
	for i := range students {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := int64(200 + i)
			results[i] = f.engine.CreateBooking(ctx, model.Actor{UserID: id, Role: model.RoleStudent}, id, slot.ID, nil)
		}(i)
	}
	wg.Wait()

	var ok, full int
	for _, res := range results {
		switch {
		case res.Success:
			ok++
		case kindOf(res) == apperr.KindSlotFull:
			full++
		default:
			t.Fatalf("unexpected error: %+v", res.Error)
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, students-3, full)

	stored, err := f.store.Slots().GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.CurrentBookings)

	teacherBookings := f.engine.ListForTeacher(ctx, teacherID)
	require.True(t, teacherBookings.Success)
	assert.Len(t, teacherBookings.Data, 3)

	available := f.engine.ListAvailable(ctx, model.SlotFilter{})
	require.True(t, available.Success)
	assert.Empty(t, available.Data, "full slot is not listed")
}

func TestDuplicateBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.publishSlot(t, model.LessonTypeTheoretical, 5)

	first := f.engine.CreateBooking(ctx, alice, studentA, slot.ID, nil)
	require.True(t, first.Success)
	assert.Equal(t, model.BookingStatusConfirmed, first.Data.Status)
	assert.Equal(t, slot.Date, first.Data.Date)
	assert.Equal(t, slot.StartTime, first.Data.StartTime)
	assert.Equal(t, slot.LessonType, first.Data.LessonType)

	second := f.engine.CreateBooking(ctx, alice, studentA, slot.ID, nil)
	assert.Equal(t, apperr.KindAlreadyBooked, kindOf(second))

	mine := f.engine.ListForStudent(ctx, studentA)
	require.True(t, mine.Success)
	assert.Len(t, mine.Data, 1)

	stored, err := f.store.Slots().GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentBookings)

	confirmed := f.recorder.OfType(events.BookingConfirmed)
	require.Len(t, confirmed, 2)
	assert.ElementsMatch(t, []int64{studentA, teacherID}, []int64{confirmed[0].RecipientID, confirmed[1].RecipientID})
}

func TestCreateBookingRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.publishSlot(t, model.LessonTypePractical, 1)

	t.Run("unknown slot", func(t *testing.T) {
		assert.Equal(t, apperr.KindNotFound, kindOf(f.engine.CreateBooking(ctx, alice, studentA, 9999, nil)))
	})

	t.Run("booking for someone else", func(t *testing.T) {
		assert.Equal(t, apperr.KindForbidden, kindOf(f.engine.CreateBooking(ctx, alice, studentB, slot.ID, nil)))
	})

	t.Run("inside lead time", func(t *testing.T) {
		f.clock.Set(time.Date(2026, 3, 3, 8, 30, 0, 0, time.UTC))
		defer f.clock.Set(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
		assert.Equal(t, apperr.KindTooLate, kindOf(f.engine.CreateBooking(ctx, alice, studentA, slot.ID, nil)))
	})

	t.Run("exactly at lead time", func(t *testing.T) {
		f.clock.Set(time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC))
		defer f.clock.Set(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
		res := f.engine.CreateBooking(ctx, alice, studentA, slot.ID, nil)
		require.True(t, res.Success, "%+v", res.Error)
	})

	t.Run("practical slot is exclusive", func(t *testing.T) {
		assert.Equal(t, apperr.KindSlotFull, kindOf(f.engine.CreateBooking(ctx, bob, studentB, slot.ID, nil)))
	})
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.publishSlot(t, model.LessonTypePractical, 1)

	booked := f.engine.CreateBooking(ctx, alice, studentA, slot.ID, nil)
	require.True(t, booked.Success)

	assert.Equal(t, apperr.KindNotFound, kindOf(f.engine.CancelBooking(ctx, alice, 9999, nil)))
	assert.Equal(t, apperr.KindForbidden, kindOf(f.engine.CancelBooking(ctx, bob, booked.Data.ID, nil)))
	otherTeacher := model.Actor{UserID: otherTeach, Role: model.RoleTeacher}
	assert.Equal(t, apperr.KindForbidden, kindOf(f.engine.CancelBooking(ctx, otherTeacher, booked.Data.ID, nil)))

	reason := "  sick  "
	cancelled := f.engine.CancelBooking(ctx, alice, booked.Data.ID, &reason)
	require.True(t, cancelled.Success)
	assert.Equal(t, model.BookingStatusCancelled, cancelled.Data.Status)
	require.NotNil(t, cancelled.Data.CancellationReason)
	assert.Equal(t, "sick", *cancelled.Data.CancellationReason)
	require.NotNil(t, cancelled.Data.CancelledBy)
	assert.Equal(t, studentA, *cancelled.Data.CancelledBy)

	assert.Equal(t, apperr.KindAlreadyCancelled, kindOf(f.engine.CancelBooking(ctx, admin, booked.Data.ID, nil)))

	stored, err := f.store.Slots().GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.CurrentBookings)

	// место освободилось, тот же студент может записаться снова
	again := f.engine.CreateBooking(ctx, alice, studentA, slot.ID, nil)
	require.True(t, again.Success, "%+v", again.Error)

	// учитель слота может отменить запись
	byTeacher := f.engine.CancelBooking(ctx, teacher, again.Data.ID, nil)
	require.True(t, byTeacher.Success)

	assert.Len(t, f.recorder.OfType(events.BookingCancelled), 4)
}

func TestIdempotentCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.publishSlot(t, model.LessonTypeTheoretical, 4)

	booked := f.engine.CreateBooking(ctx, alice, studentA, slot.ID, nil)
	require.True(t, booked.Success)

	first := model.Completion{
		HoursCompleted:    1.5,
		PerformanceRating: 4,
		SkillsImproved:    []string{"parking", " ", "mirrors "},
		AreasToImprove:    "roundabouts",
		ReadyForNextLevel: true,
	}

	early := f.engine.CompleteBooking(ctx, teacher, booked.Data.ID, first)
	assert.Equal(t, apperr.KindNotYetOccurred, kindOf(early))

	f.clock.Set(time.Date(2026, 3, 3, 11, 45, 0, 0, time.UTC))

	assert.Equal(t, apperr.KindForbidden, kindOf(f.engine.CompleteBooking(ctx, alice, booked.Data.ID, first)))

	done := f.engine.CompleteBooking(ctx, teacher, booked.Data.ID, first)
	require.True(t, done.Success, "%+v", done.Error)
	assert.Equal(t, model.BookingStatusCompleted, done.Data.Status)
	assert.Equal(t, []string{"parking", "mirrors"}, done.Data.SkillsImproved)

	second := model.Completion{HoursCompleted: 3, PerformanceRating: 1}
	repeat := f.engine.CompleteBooking(ctx, admin, booked.Data.ID, second)
	assert.Equal(t, apperr.KindAlreadyCompleted, kindOf(repeat))

	stored, err := f.store.Bookings().GetByID(ctx, booked.Data.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.HoursCompleted)
	assert.Equal(t, 1.5, *stored.HoursCompleted)
	require.NotNil(t, stored.PerformanceRating)
	assert.Equal(t, 4, *stored.PerformanceRating)

	assert.Equal(t, apperr.KindInvalidTransition, kindOf(f.engine.CancelBooking(ctx, alice, booked.Data.ID, nil)))
}

func TestCompletionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		c    model.Completion
	}{
		{"zero hours", model.Completion{HoursCompleted: 0, PerformanceRating: 3}},
		{"too many hours", model.Completion{HoursCompleted: 13, PerformanceRating: 3}},
		{"rating below range", model.Completion{HoursCompleted: 1, PerformanceRating: 0}},
		{"rating above range", model.Completion{HoursCompleted: 1, PerformanceRating: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, apperr.KindValidation, kindOf(f.engine.CompleteBooking(ctx, teacher, 1, tt.c)))
		})
	}
}

func TestProgressFollowsCompletions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.publishSlot(t, model.LessonTypeTheoretical, 4)
	second := f.engine.PublishSlot(ctx, teacher, service.PublishSlotInput{
		TeacherID:   teacherID,
		LessonType:  model.LessonTypePractical,
		Date:        "2026-03-04",
		StartTime:   "14:00",
		EndTime:     "16:00",
		MaxCapacity: 1,
	})
	require.True(t, second.Success)

	b1 := f.engine.CreateBooking(ctx, alice, studentA, first.ID, nil)
	b2 := f.engine.CreateBooking(ctx, alice, studentA, second.Data.ID, nil)
	require.True(t, b1.Success)
	require.True(t, b2.Success)

	empty := f.engine.Summarize(ctx, studentA)
	require.True(t, empty.Success)
	assert.Zero(t, empty.Data.TotalLessons)
	assert.Nil(t, empty.Data.LastLesson)

	f.clock.Set(time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))

	require.True(t, f.engine.CompleteBooking(ctx, teacher, b1.Data.ID, model.Completion{
		HoursCompleted: 2, PerformanceRating: 4, SkillsImproved: []string{"signals"},
	}).Success)
	require.True(t, f.engine.CompleteBooking(ctx, teacher, b2.Data.ID, model.Completion{
		HoursCompleted: 3, PerformanceRating: 5, SkillsImproved: []string{"parking", "signals"}, ReadyForNextLevel: true,
	}).Success)

	summary := f.engine.Summarize(ctx, studentA)
	require.True(t, summary.Success)
	assert.Equal(t, 5.0, summary.Data.TotalHours)
	assert.Equal(t, 2, summary.Data.TotalLessons)
	assert.Equal(t, 4.5, summary.Data.AverageRating)
	assert.Equal(t, []string{"signals", "parking"}, summary.Data.TopSkills)
	assert.True(t, summary.Data.ReadyForExam)
	require.NotNil(t, summary.Data.LastLesson)
	assert.Equal(t, "2026-03-04", *summary.Data.LastLesson)
	assert.Equal(t, map[model.LessonType]int{
		model.LessonTypeTheoretical: 1,
		model.LessonTypePractical:   1,
	}, summary.Data.BookingsByType)
}

func TestExamRequestExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	theory1 := f.publishForm(t, model.ExamTypeTheory, 5)
	theory2 := f.publishForm(t, model.ExamTypeTheory, 5)
	practical := f.publishForm(t, model.ExamTypePractical, 5)

	first := f.engine.SubmitRequest(ctx, alice, studentA, theory1.ID, nil)
	require.True(t, first.Success, "%+v", first.Error)
	assert.Equal(t, model.ExamRequestPending, first.Data.Status)

	assert.Equal(t, apperr.KindDuplicateActive, kindOf(f.engine.SubmitRequest(ctx, alice, studentA, theory2.ID, nil)))

	// другой тип экзамена не конфликтует
	require.True(t, f.engine.SubmitRequest(ctx, alice, studentA, practical.ID, nil).Success)

	require.True(t, f.engine.Review(ctx, admin, first.Data.ID, model.ReviewApprove, nil, nil).Success)
	assert.Equal(t, apperr.KindDuplicateActive, kindOf(f.engine.SubmitRequest(ctx, alice, studentA, theory2.ID, nil)))

	failed := f.engine.SetResult(ctx, teacher, first.Data.ID, model.ExamRequestFailed, nil)
	require.True(t, failed.Success)
	assert.Equal(t, model.ExamRequestFailed, failed.Data.Status)

	retry := f.engine.SubmitRequest(ctx, alice, studentA, theory2.ID, nil)
	require.True(t, retry.Success, "%+v", retry.Error)
}

func TestExamFormEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.publishForm(t, model.ExamTypeTheory, 1)

	var wg sync.WaitGroup
	results := make([]apperr.Result[*model.ExamRequest], 2)
	for i, actor := range []model.Actor{alice, bob} {
		wg.Add(1)
		go func(i int, actor model.Actor) {
			defer wg.Done()
			results[i] = f.engine.SubmitRequest(ctx, actor, actor.UserID, form.ID, nil)
		}(i, actor)
	}
	wg.Wait()

	var winner *model.ExamRequest
	var fullCount int
	for _, res := range results {
		if res.Success {
			require.Nil(t, winner, "only one submission may succeed")
			winner = res.Data
			continue
		}
		assert.Equal(t, apperr.KindFormFull, kindOf(res))
		fullCount++
	}
	require.NotNil(t, winner)
	assert.Equal(t, 1, fullCount)
	assert.Equal(t, model.ExamRequestPending, winner.Status)

	stored, err := f.store.ExamForms().GetByID(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentRequests)

	pending := f.engine.ListExamRequests(ctx, model.ExamRequestFilter{FormID: form.ID})
	require.True(t, pending.Success)
	assert.Len(t, pending.Data, 1)

	assert.Equal(t, apperr.KindForbidden, kindOf(f.engine.Review(ctx, teacher, winner.ID, model.ReviewApprove, nil, nil)))

	approved := f.engine.Review(ctx, admin, winner.ID, model.ReviewApprove, nil, nil)
	require.True(t, approved.Success)
	assert.Equal(t, model.ExamRequestApproved, approved.Data.Status)
	require.NotNil(t, approved.Data.ReviewedBy)
	assert.Equal(t, adminID, *approved.Data.ReviewedBy)

	passed := f.engine.SetResult(ctx, admin, winner.ID, model.ExamRequestPassed, nil)
	require.True(t, passed.Success)
	assert.Equal(t, model.ExamRequestPassed, passed.Data.Status)
	require.NotNil(t, passed.Data.Result)
	assert.Equal(t, model.ExamRequestPassed, *passed.Data.Result)

	again := f.engine.Review(ctx, admin, winner.ID, model.ReviewApprove, nil, nil)
	assert.Equal(t, apperr.KindInvalidTransition, kindOf(again))
	assert.Equal(t, apperr.KindInvalidTransition, kindOf(f.engine.SetResult(ctx, admin, winner.ID, model.ExamRequestFailed, nil)))

	final, err := f.store.ExamRequests().GetByID(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExamRequestPassed, final.Status)

	passedEvents := f.recorder.OfType(events.ExamPassed)
	require.Len(t, passedEvents, 2)
	assert.False(t, passedEvents[0].Activity)
	assert.True(t, passedEvents[1].Activity)
	assert.Len(t, f.recorder.OfType(events.ExamRequestSubmitted), 1)
	assert.Len(t, f.recorder.OfType(events.ExamRequestApproved), 1)
}

func TestReviewReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.publishForm(t, model.ExamTypePractical, 1)

	req := f.engine.SubmitRequest(ctx, alice, studentA, form.ID, nil)
	require.True(t, req.Success)

	blank := "   "
	assert.Equal(t, apperr.KindValidation, kindOf(f.engine.Review(ctx, admin, req.Data.ID, model.ReviewReject, nil, nil)))
	assert.Equal(t, apperr.KindValidation, kindOf(f.engine.Review(ctx, admin, req.Data.ID, model.ReviewReject, nil, &blank)))
	assert.Equal(t, apperr.KindValidation, kindOf(f.engine.Review(ctx, admin, req.Data.ID, "maybe", nil, nil)))

	reason := "medical certificate missing"
	rejected := f.engine.Review(ctx, admin, req.Data.ID, model.ReviewReject, nil, &reason)
	require.True(t, rejected.Success)
	assert.Equal(t, model.ExamRequestRejected, rejected.Data.Status)

	assert.Equal(t, apperr.KindInvalidTransition, kindOf(f.engine.SetResult(ctx, admin, req.Data.ID, model.ExamRequestPassed, nil)))

	// отклонённая заявка освобождает место в форме
	other := f.engine.SubmitRequest(ctx, bob, studentB, form.ID, nil)
	require.True(t, other.Success, "%+v", other.Error)

	rejectedEvents := f.recorder.OfType(events.ExamRequestRejected)
	require.Len(t, rejectedEvents, 1)
	assert.Equal(t, reason, rejectedEvents[0].Payload["reason"])
}

func TestSubmitRequestGuards(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RequireReadiness = true })
	ctx := context.Background()
	form := f.publishForm(t, model.ExamTypeTheory, 3)

	assert.Equal(t, apperr.KindNotEligible, kindOf(f.engine.SubmitRequest(ctx, alice, studentA, form.ID, nil)))

	slot := f.publishSlot(t, model.LessonTypeTheoretical, 2)
	booked := f.engine.CreateBooking(ctx, alice, studentA, slot.ID, nil)
	require.True(t, booked.Success)
	f.clock.Set(time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC))
	require.True(t, f.engine.CompleteBooking(ctx, teacher, booked.Data.ID, model.Completion{
		HoursCompleted: 2, PerformanceRating: 5, ReadyForNextLevel: true,
	}).Success)

	require.True(t, f.engine.SubmitRequest(ctx, alice, studentA, form.ID, nil).Success)

	t.Run("foreign group", func(t *testing.T) {
		g := newFixture(t)
		g.store.AssignStudent(300, groupB)
		outsider := model.Actor{UserID: 300, Role: model.RoleStudent}
		groupAForm := g.publishForm(t, model.ExamTypeTheory, 3)
		assert.Equal(t, apperr.KindForbidden, kindOf(g.engine.SubmitRequest(ctx, outsider, 300, groupAForm.ID, nil)))
	})

	t.Run("closed form", func(t *testing.T) {
		g := newFixture(t)
		closed := g.publishForm(t, model.ExamTypeTheory, 3)
		assert.Equal(t, apperr.KindForbidden, kindOf(g.engine.CloseForm(ctx, alice, closed.ID)))
		require.True(t, g.engine.CloseForm(ctx, teacher, closed.ID).Success)
		assert.Equal(t, apperr.KindFormClosed, kindOf(g.engine.SubmitRequest(ctx, alice, studentA, closed.ID, nil)))

		open := g.engine.ListOpenForms(ctx, groupA)
		require.True(t, open.Success)
		assert.Empty(t, open.Data)
	})

	t.Run("unknown form", func(t *testing.T) {
		g := newFixture(t)
		assert.Equal(t, apperr.KindNotFound, kindOf(g.engine.SubmitRequest(ctx, alice, studentA, 4242, nil)))
	})
}

func TestCloseExpiredForms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := f.publishForm(t, model.ExamTypeTheory, 3)

	res := f.engine.CloseExpiredForms(ctx)
	require.True(t, res.Success)
	assert.Zero(t, res.Data)

	f.clock.Set(time.Date(2026, 3, 21, 8, 0, 0, 0, time.UTC))
	res = f.engine.CloseExpiredForms(ctx)
	require.True(t, res.Success)
	assert.Equal(t, int64(1), res.Data)

	stored, err := f.store.ExamForms().GetByID(ctx, form.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOpen)
}

func TestPublishFormRequiresGroupTeacher(t *testing.T) {
	f := newFixture(t)
	res := f.engine.PublishForm(context.Background(), admin, service.PublishFormInput{
		TeacherID:   otherTeach,
		GroupID:     groupA,
		ExamDate:    "2026-03-20",
		ExamTime:    "09:00",
		ExamType:    model.ExamTypeTheory,
		MaxRequests: 2,
	})
	assert.Equal(t, apperr.KindForbidden, kindOf(res))
}

func TestGroupScopedAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.publishSlot(t, model.LessonTypeTheoretical, 3)

	foreign := f.engine.PublishSlot(ctx, model.Actor{UserID: otherTeach, Role: model.RoleTeacher}, service.PublishSlotInput{
		TeacherID:   otherTeach,
		LessonType:  model.LessonTypeTheoretical,
		Date:        "2026-03-03",
		StartTime:   "08:00",
		EndTime:     "09:00",
		MaxCapacity: 3,
	})
	require.True(t, foreign.Success)

	all := f.engine.ListAvailable(ctx, model.SlotFilter{})
	require.True(t, all.Success)
	require.Len(t, all.Data, 2)
	assert.Equal(t, foreign.Data.ID, all.Data[0].ID, "ordered by start time")

	forGroup := f.engine.ListAvailableForGroup(ctx, groupA)
	require.True(t, forGroup.Success)
	require.Len(t, forGroup.Data, 1)
	assert.Equal(t, mine.ID, forGroup.Data[0].ID)

	forStudent := f.engine.ListAvailableForStudent(ctx, studentA)
	require.True(t, forStudent.Success)
	assert.Len(t, forStudent.Data, 1)

	orphan := f.engine.ListAvailableForStudent(ctx, 999)
	require.True(t, orphan.Success)
	assert.Empty(t, orphan.Data)
}

func TestDeleteSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.publishSlot(t, model.LessonTypeTheoretical, 2)

	booked := f.engine.CreateBooking(ctx, alice, studentA, slot.ID, nil)
	require.True(t, booked.Success)
	assert.Equal(t, apperr.KindValidation, kindOf(f.engine.DeleteSlot(ctx, teacher, slot.ID)))

	empty := f.publishSlot(t, model.LessonTypeTheoretical, 2)
	assert.Equal(t, apperr.KindForbidden, kindOf(f.engine.DeleteSlot(ctx, alice, empty.ID)))
	require.True(t, f.engine.DeleteSlot(ctx, teacher, empty.ID).Success)
	assert.Equal(t, apperr.KindNotFound, kindOf(f.engine.DeleteSlot(ctx, teacher, empty.ID)))
}

func TestPanicBecomesUnavailable(t *testing.T) {
	e := &Engine{logger: zap.NewNop()}
	res := e.Summarize(context.Background(), studentA)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, apperr.KindUnavailable, res.Error.Kind)
	assert.Equal(t, "service temporarily unavailable", res.Error.Message)
}

func TestStartedSlotsAreNotAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sameDay := func(start, end string) apperr.Result[*model.Slot] {
		return f.engine.PublishSlot(ctx, teacher, service.PublishSlotInput{
			TeacherID:   teacherID,
			LessonType:  model.LessonTypeTheoretical,
			Date:        "2026-03-02",
			StartTime:   start,
			EndTime:     end,
			MaxCapacity: 4,
		})
	}

	// 09:00 сейчас
	assert.Equal(t, apperr.KindValidation, kindOf(sameDay("07:00", "08:00")))
	assert.Equal(t, apperr.KindValidation, kindOf(sameDay("09:00", "10:00")))

	later := sameDay("11:00", "12:00")
	require.True(t, later.Success, "%+v", later.Error)
	tomorrow := f.publishSlot(t, model.LessonTypeTheoretical, 4)

	listed := f.engine.ListAvailable(ctx, model.SlotFilter{})
	require.True(t, listed.Success)
	require.Len(t, listed.Data, 2)

	f.clock.Set(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))

	listed = f.engine.ListAvailable(ctx, model.SlotFilter{})
	require.True(t, listed.Success)
	require.Len(t, listed.Data, 1)
	assert.Equal(t, tomorrow.ID, listed.Data[0].ID)

	forStudent := f.engine.ListAvailableForStudent(ctx, studentA)
	require.True(t, forStudent.Success)
	require.Len(t, forStudent.Data, 1)
	assert.Equal(t, tomorrow.ID, forStudent.Data[0].ID)
}
