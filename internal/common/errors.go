package common

import "errors"

// Error kinds shared by every layer. Lower layers wrap them with fmt.Errorf("%w"),
// the HTTP layer maps them to status codes with errors.Is.
var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUpstreamFailure    = errors.New("upstream failure")
)

// Storage wraps a backend error as ErrStorageUnavailable, keeping the cause in the message.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storageError{op: op, err: err}
}

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string { return e.op + ": " + ErrStorageUnavailable.Error() + ": " + e.err.Error() }

func (e *storageError) Is(target error) bool { return target == ErrStorageUnavailable }

func (e *storageError) Unwrap() error { return e.err }
