package usecase

import (
	"errors"

	"github.com/rotisserie/eris"
)

var (
	ErrNoValidToken    = eris.New("no valid access token")
	ErrRefreshFailed   = eris.New("access token refresh failed")
	ErrBatchInProgress = eris.New("another batch run is in progress")
)

// DomainError is a failure caused by the caller's input. Handlers answer 4xx.
type DomainError struct {
	Code    string
	Message string
	Fields  []ValidationError
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError is an infrastructure failure. Handlers answer 5xx.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}
