package models

import (
	"errors"
	"fmt"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrUsernameTaken  = errors.New("username already exists")

	ErrInvalidCredentials = errors.New("invalid player credentials")
	ErrInvalidCode        = errors.New("invalid authentication code")

	ErrTrainNotFound    = errors.New("train not found")
	ErrTrainUnavailable = errors.New("train unavailable")

	ErrMalformedFilename = errors.New("malformed train filename")
	ErrMissingPayload    = errors.New("no train file attached")
	ErrMalformedDate     = errors.New("malformed upload_before, must be YYYY-MM-DD")
)

// BadRequestError reports a missing or malformed request field
type BadRequestError struct {
	Field  string
	Reason string
	Err    error
}

// NewBadRequest creates a BadRequestError for field
func NewBadRequest(field, reason string) *BadRequestError {
	return &BadRequestError{Field: field, Reason: reason}
}

func (e *BadRequestError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *BadRequestError) Unwrap() error { return e.Err }

// IsBadRequest reports whether err is a request validation failure
func IsBadRequest(err error) bool {
	var bre *BadRequestError
	return errors.As(err, &bre)
}
