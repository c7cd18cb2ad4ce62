// Package auth решает, может ли актор выполнить команду над ресурсом.
// Вызывается в начале каждой команды движка.
package auth

import (
	"slices"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
	"github.com/Freeeeeet/driving_booking/internal/model"
)

// Operation команда движка, для которой проверяются права
type Operation string

const (
	OpPublishSlot     Operation = "publish_slot"
	OpDeleteSlot      Operation = "delete_slot"
	OpCreateBooking   Operation = "create_booking"
	OpCancelBooking   Operation = "cancel_booking"
	OpCompleteBooking Operation = "complete_booking"
	OpPublishForm     Operation = "publish_form"
	OpCloseForm       Operation = "close_form"
	OpSubmitRequest   Operation = "submit_request"
	OpReviewRequest   Operation = "review_request"
	OpSetResult       Operation = "set_result"
)

// rule роль, которой разрешена операция; ownOnly требует чтобы актор был владельцем ресурса
type rule struct {
	role    model.Role
	ownOnly bool
}

var policy = map[Operation][]rule{
	OpPublishSlot:     {{model.RoleAdmin, false}, {model.RoleTeacher, true}},
	OpDeleteSlot:      {{model.RoleAdmin, false}, {model.RoleTeacher, true}},
	OpCreateBooking:   {{model.RoleStudent, true}},
	OpCancelBooking:   {{model.RoleAdmin, false}, {model.RoleTeacher, true}, {model.RoleStudent, true}},
	OpCompleteBooking: {{model.RoleAdmin, false}, {model.RoleTeacher, true}},
	OpPublishForm:     {{model.RoleAdmin, false}, {model.RoleTeacher, true}},
	OpCloseForm:       {{model.RoleAdmin, false}, {model.RoleTeacher, true}},
	OpSubmitRequest:   {{model.RoleStudent, true}},
	OpReviewRequest:   {{model.RoleAdmin, false}},
	OpSetResult:       {{model.RoleAdmin, false}, {model.RoleTeacher, true}},
}

// Authorize проверяет роль и владение. owners: идентификаторы пользователей,
// которым принадлежит ресурс (студент записи, учитель слота и т.п.).
func Authorize(actor model.Actor, op Operation, owners ...int64) error {
	if !actor.Role.Valid() || actor.UserID == 0 {
		return apperr.New(apperr.KindForbidden, string(op), "unknown actor")
	}

	for _, r := range policy[op] {
		if r.role != actor.Role {
			continue
		}
		if !r.ownOnly || slices.Contains(owners, actor.UserID) {
			return nil
		}
	}

	return apperr.Newf(apperr.KindForbidden, string(op), "%s %d may not %s", actor.Role, actor.UserID, op)
}
