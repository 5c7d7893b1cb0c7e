package api

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrModelNotFound  = errors.New("model_not_found")
)

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

type modelNotFoundError struct {
	msg string
}

func (e modelNotFoundError) Error() string {
	return e.msg
}

func (e modelNotFoundError) Unwrap() error {
	return ErrModelNotFound
}

func newModelNotFound(msg string) error {
	return modelNotFoundError{msg: msg}
}
