package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/model"
)

func TestAuthorize(t *testing.T) {
	admin := model.Actor{UserID: 1, Role: model.RoleAdmin}
	teacher := model.Actor{UserID: 10, Role: model.RoleTeacher}
	student := model.Actor{UserID: 100, Role: model.RoleStudent}

	tests := []struct {
		name    string
		actor   model.Actor
		op      Operation
		owners  []int64
		allowed bool
	}{
		{"student books for self", student, OpCreateBooking, []int64{100}, true},
		{"student books for another", student, OpCreateBooking, []int64{101}, false},
		{"teacher cannot book", teacher, OpCreateBooking, []int64{10}, false},
		{"student cancels own booking", student, OpCancelBooking, []int64{100, 10}, true},
		{"teacher cancels own slot booking", teacher, OpCancelBooking, []int64{100, 10}, true},
		{"other teacher cannot cancel", model.Actor{UserID: 11, Role: model.RoleTeacher}, OpCancelBooking, []int64{100, 10}, false},
		{"admin cancels anything", admin, OpCancelBooking, []int64{100, 10}, true},
		{"student cannot complete", student, OpCompleteBooking, []int64{10}, false},
		{"owning teacher completes", teacher, OpCompleteBooking, []int64{10}, true},
		{"only admin reviews", teacher, OpReviewRequest, nil, false},
		{"admin reviews", admin, OpReviewRequest, nil, true},
		{"form teacher sets result", teacher, OpSetResult, []int64{10}, true},
		{"admin publishes on behalf", admin, OpPublishSlot, []int64{10}, true},
		{"unknown role", model.Actor{UserID: 5, Role: "guest"}, OpCreateBooking, []int64{5}, false},
		{"zero user", model.Actor{Role: model.RoleAdmin}, OpReviewRequest, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.op, tt.owners...)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrForbidden))
		})
	}
}
