package profile

import (
	"errors"
	"fmt"

	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/storage"
)

// Kind is the error class reported to callers for a failed step.
type Kind string

const (
	KindValidation     Kind = "ValidationError"
	KindAuthentication Kind = "AuthenticationError"
	KindNotFound       Kind = "NotFoundError"
	KindPersistence    Kind = "PersistenceError"
	KindStorage        Kind = "StorageError"
)

var (
	ErrWrongSecret       = errors.New("current password does not match")
	ErrNameRequired      = errors.New("name is required")
	ErrTooManyImages     = errors.New("too many gallery images")
	ErrInvalidExperience = errors.New("experience must not be negative")
	ErrInvalidRate       = errors.New("hourly rate must not be negative")
)

type StepError struct {
	Step  Step
	Index int
	Kind  Kind
	Err   error
}

func (e *StepError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s[%d]: %s: %v", e.Step, e.Index, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// withKind pins the reported kind of err regardless of the step's boundary kind.
func withKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}

	return &kindError{kind: kind, err: err}
}

// classify maps err to a Kind. Anything unrecognised, timeouts included,
// takes the kind of the boundary it crossed.
func classify(err error, boundary Kind) Kind {
	var ke *kindError

	if errors.As(err, &ke) {
		return ke.kind
	}

	switch {
	case errors.Is(err, user.ErrNotFound), errors.Is(err, artisan.ErrNotFound):
		return KindNotFound
	case errors.Is(err, storage.ErrUnsafeName), errors.Is(err, storage.ErrExists), errors.Is(err, storage.ErrInvalidArea):
		return KindStorage
	case errors.Is(err, storage.ErrNotImage), errors.Is(err, storage.ErrEmptyPayload):
		return KindValidation
	}

	return boundary
}
