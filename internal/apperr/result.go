package apperr

import "errors"

// ErrorBody описание ошибки в конверте результата
type ErrorBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Result конверт {success, data} / {success:false, error}
type Result[T any] struct {
	Success bool       `json:"success"`
	Data    T          `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// OK упаковывает успешный результат
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail упаковывает ошибку. Сообщения инфраструктурных ошибок наружу не отдаются.
func Fail[T any](err error) Result[T] {
	var appErr *Error
	if errors.As(err, &appErr) {
		msg := appErr.Message
		if appErr.Kind == KindUnavailable {
			msg = "service temporarily unavailable"
		}
		return Result[T]{Error: &ErrorBody{Kind: appErr.Kind, Message: msg}}
	}
	return Result[T]{Error: &ErrorBody{Kind: KindUnavailable, Message: "service temporarily unavailable"}}
}

// From собирает конверт из пары (значение, ошибка)
func From[T any](data T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return OK(data)
}

// Err восстанавливает ошибку из конверта, nil для успешного результата
func (r Result[T]) Err() error {
	if r.Success || r.Error == nil {
		return nil
	}
	return New(r.Error.Kind, "", r.Error.Message)
}
