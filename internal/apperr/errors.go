// Package apperr содержит типизированные ошибки движка бронирования
// и конверт результата, который отдаётся наружу вместо паники или голой ошибки.
package apperr

import (
	"errors"
	"fmt"
)

// Kind вид ошибки, по которому вызывающая сторона решает что делать дальше
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindAlreadyBooked     Kind = "already_booked"
	KindAlreadyCancelled  Kind = "already_cancelled"
	KindAlreadyCompleted  Kind = "already_completed"
	KindDuplicateActive   Kind = "duplicate_active_request"
	KindCapacityExceeded  Kind = "capacity_exceeded"
	KindSlotFull          Kind = "slot_full"
	KindFormFull          Kind = "form_full"
	KindFormClosed        Kind = "form_closed"
	KindNotEligible       Kind = "not_eligible"
	KindTooLate           Kind = "too_late"
	KindNotYetOccurred    Kind = "not_yet_occurred"
	KindInvalidTransition Kind = "invalid_transition"
	KindContention        Kind = "contention"
	KindUnavailable       Kind = "unavailable"
)

// Базовые ошибки для проверки через errors.Is()
var (
	ErrValidation        = errors.New(string(KindValidation))
	ErrNotFound          = errors.New(string(KindNotFound))
	ErrForbidden         = errors.New(string(KindForbidden))
	ErrAlreadyBooked     = errors.New(string(KindAlreadyBooked))
	ErrAlreadyCancelled  = errors.New(string(KindAlreadyCancelled))
	ErrAlreadyCompleted  = errors.New(string(KindAlreadyCompleted))
	ErrDuplicateActive   = errors.New(string(KindDuplicateActive))
	ErrCapacityExceeded  = errors.New(string(KindCapacityExceeded))
	ErrSlotFull          = errors.New(string(KindSlotFull))
	ErrFormFull          = errors.New(string(KindFormFull))
	ErrFormClosed        = errors.New(string(KindFormClosed))
	ErrNotEligible       = errors.New(string(KindNotEligible))
	ErrTooLate           = errors.New(string(KindTooLate))
	ErrNotYetOccurred    = errors.New(string(KindNotYetOccurred))
	ErrInvalidTransition = errors.New(string(KindInvalidTransition))
	ErrContention        = errors.New(string(KindContention))
	ErrUnavailable       = errors.New(string(KindUnavailable))
)

var sentinels = map[Kind]error{
	KindValidation:        ErrValidation,
	KindNotFound:          ErrNotFound,
	KindForbidden:         ErrForbidden,
	KindAlreadyBooked:     ErrAlreadyBooked,
	KindAlreadyCancelled:  ErrAlreadyCancelled,
	KindAlreadyCompleted:  ErrAlreadyCompleted,
	KindDuplicateActive:   ErrDuplicateActive,
	KindCapacityExceeded:  ErrCapacityExceeded,
	KindSlotFull:          ErrSlotFull,
	KindFormFull:          ErrFormFull,
	KindFormClosed:        ErrFormClosed,
	KindNotEligible:       ErrNotEligible,
	KindTooLate:           ErrTooLate,
	KindNotYetOccurred:    ErrNotYetOccurred,
	KindInvalidTransition: ErrInvalidTransition,
	KindContention:        ErrContention,
	KindUnavailable:       ErrUnavailable,
}

// Error ошибка операции движка с видом и контекстом
type Error struct {
	Kind    Kind   // вид ошибки
	Op      string // операция, например "booking.Create"
	Message string // сообщение для пользователя
	Err     error  // исходная ошибка (необязательно)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is() matching by kind.
func (e *Error) Is(target error) bool {
	if s, ok := sentinels[e.Kind]; ok && s == target {
		return true
	}
	return false
}

// New создаёт ошибку указанного вида
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf создаёт ошибку с форматированным сообщением
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает инфраструктурную ошибку
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf возвращает вид ошибки. Всё, что не является *Error, считается unavailable.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnavailable
}

// IsBusiness отличает бизнес-отказ от сбоя инфраструктуры
func IsBusiness(err error) bool {
	k := KindOf(err)
	return k != "" && k != KindUnavailable && k != KindContention
}

// IsRetryable сообщает, имеет ли смысл повторить вызов с задержкой
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindContention || k == KindUnavailable
}
