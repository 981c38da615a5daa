package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/parking-reservation/internal/repository"
)

// The service layer re-exports the repository sentinels so that handlers
// and jobs depend on one package for error classification.
var (
	ErrLotNotFound         = repository.ErrLotNotFound
	ErrLotExists           = repository.ErrLotExists
	ErrSpotNotFound        = repository.ErrSpotNotFound
	ErrSpotNotAvailable    = repository.ErrSpotOccupied
	ErrReservationNotFound = repository.ErrReservationNotFound
	ErrForbidden           = repository.ErrForbidden
	ErrAlreadyClosed       = repository.ErrAlreadyClosed
	ErrConflict            = repository.ErrConflict
	ErrInconsistent        = repository.ErrInconsistent
	ErrEmailExists         = repository.ErrEmailExists
)

// ErrInvalidInput wraps every validation failure; the wrapped message is
// safe to show to clients.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnavailable wraps storage and backend failures.  Callers decide
// whether to retry.
var ErrUnavailable = errors.New("storage unavailable")

var knownErrors = []error{
	ErrLotNotFound, ErrLotExists, ErrSpotNotFound, ErrSpotNotAvailable,
	ErrReservationNotFound, ErrForbidden, ErrAlreadyClosed, ErrConflict,
	ErrInconsistent, ErrEmailExists, ErrInvalidInput, ErrUnavailable,
}

// classify passes known sentinels through untouched and wraps anything
// else as ErrUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range knownErrors {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// reason is the metric label for a failed booking operation.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrSpotNotAvailable):
		return "spot_not_available"
	case errors.Is(err, ErrSpotNotFound), errors.Is(err, ErrLotNotFound), errors.Is(err, ErrReservationNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyClosed):
		return "already_closed"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInconsistent):
		return "inconsistent"
	default:
		return "unavailable"
	}
}
