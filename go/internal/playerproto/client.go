package playerproto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/contest/go/clients"
)

const (
	// DefaultTurnTimeout bounds a single guess request.
	DefaultTurnTimeout = 10 * time.Second

	maxGuessResponseSize = 4 << 10
)

// ErrPlayerFault marks any failure to obtain a valid guess from a player:
// transport errors, timeouts, non-2xx answers and non-integer bodies.
var ErrPlayerFault = errors.New("player fault")

// HTTPPlayer talks to a remote player over the JSON guessing protocol.
type HTTPPlayer struct {
	client      *clients.BaseClient
	turnTimeout time.Duration
}

// NewHTTPPlayer creates a client for the player served at url.
func NewHTTPPlayer(url string, turnTimeout time.Duration) *HTTPPlayer {
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	client := clients.NewBaseClient(url)
	client.SetTimeout(turnTimeout)
	client.SetMaxResponseSize(maxGuessResponseSize)
	return &HTTPPlayer{client: client, turnTimeout: turnTimeout}
}

// SetHTTPClient replaces the transport client.
func (p *HTTPPlayer) SetHTTPClient(c *http.Client) {
	p.client.SetHTTPClient(c)
}

// Guess posts the state and decodes a JSON integer reply.
func (p *HTTPPlayer) Guess(ctx context.Context, state GameState) (int, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("marshal game state: %w", err)
	}

	turnCtx, cancel := context.WithTimeout(ctx, p.turnTimeout)
	defer cancel()

	resp, err := p.client.PostJSON(turnCtx, "", body)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPlayerFault, err)
	}

	guess, err := DecodeGuess(resp)
	if err != nil {
		return 0, err
	}
	return guess, nil
}

// DecodeGuess parses a player's reply, which must be a bare JSON integer.
func DecodeGuess(data []byte) (int, error) {
	// null would unmarshal into an int without error
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, fmt.Errorf("%w: empty response", ErrPlayerFault)
	}

	var guess int
	if err := json.Unmarshal(data, &guess); err != nil {
		return 0, fmt.Errorf("%w: response is not an integer: %w", ErrPlayerFault, err)
	}
	return guess, nil
}
