package ledger

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRoundNotFound is returned when no round exists for the given ID.
	ErrRoundNotFound = errors.New("round not found")
	// ErrForbidden is returned when a run report carries the wrong secret.
	ErrForbidden = errors.New("secret does not match round")
	// ErrInvalidRun is returned when a run report is malformed.
	ErrInvalidRun = errors.New("invalid run")
	// ErrInvalidRound is returned when a submission cannot become a round.
	ErrInvalidRound = errors.New("invalid round")
)

// Submitter identifies who asked for a round.
type Submitter struct {
	User  string `json:"user"`
	Email string `json:"email,omitempty"`
}

// Result is the outcome of appending a run, as reported back to questioners.
type Result int

const (
	Created Result = iota + 1
	NotFound
	Forbidden
	Invalid
)

func (r Result) String() string {
	switch r {
	case Created:
		return "created"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// StatusCode maps a result onto the HTTP status the report endpoint answers with.
func (r Result) StatusCode() int {
	switch r {
	case Created:
		return http.StatusCreated
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Invalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Classify turns an AppendRun error into a Result. Errors that are not part
// of the report protocol (storage failures) are returned unchanged.
func Classify(err error) (Result, error) {
	switch {
	case err == nil:
		return Created, nil
	case errors.Is(err, ErrRoundNotFound):
		return NotFound, nil
	case errors.Is(err, ErrForbidden):
		return Forbidden, nil
	case errors.Is(err, ErrInvalidRun):
		return Invalid, nil
	default:
		return 0, err
	}
}
