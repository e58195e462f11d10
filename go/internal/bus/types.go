package bus

import (
	"context"
	"errors"
	"fmt"
)

// PlayRequest asks a questioner to play one game against a player and report
// the result back to the ledger.
type PlayRequest struct {
	RoundID   string `json:"contest_round"`
	PlayerURL string `json:"player_url"`
	ResultURL string `json:"result_url"`
	Secret    string `json:"secret"`
}

func (r PlayRequest) Validate() error {
	switch {
	case r.RoundID == "":
		return fmt.Errorf("%w: contest_round is required", ErrMalformedRequest)
	case r.PlayerURL == "":
		return fmt.Errorf("%w: player_url is required", ErrMalformedRequest)
	case r.ResultURL == "":
		return fmt.Errorf("%w: result_url is required", ErrMalformedRequest)
	case r.Secret == "":
		return fmt.Errorf("%w: secret is required", ErrMalformedRequest)
	}
	return nil
}

var (
	// ErrMalformedRequest marks a message that can never be processed.
	ErrMalformedRequest = errors.New("malformed play request")
	// ErrTerminal wraps handler errors that redelivery cannot fix.
	ErrTerminal = errors.New("terminal handler error")
)

// Terminal marks err so consumers acknowledge instead of redelivering.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTerminal, err)
}

// IsTerminal reports whether redelivering the message would be pointless.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminal) || errors.Is(err, ErrMalformedRequest)
}

// Publisher announces new rounds to every questioner.
type Publisher interface {
	Publish(ctx context.Context, req PlayRequest) error
}

// Handler processes one delivered PlayRequest. A nil error or a terminal error
// acknowledges the message; anything else asks for redelivery.
type Handler func(ctx context.Context, req PlayRequest) error
