package playerproto

import (
	"context"
	"fmt"
)

// Comparison tells the player where the hidden target lies relative to a guess.
type Comparison string

const (
	// Lower means the hidden target is lower than the guess.
	Lower Comparison = "lower"
	// Higher means the hidden target is higher than the guess.
	Higher Comparison = "higher"
)

// Move is one prior guess and how it compared to the target.
type Move struct {
	Guess  int        `json:"guess"`
	Result Comparison `json:"result"`
}

// GameState is the body sent to a player on every turn. Minimum and Maximum
// are the current bounds, already narrowed by every recorded move.
type GameState struct {
	Minimum int    `json:"minimum"`
	Maximum int    `json:"maximum"`
	History []Move `json:"history"`
}

// NewGameState returns an empty game over [minimum, maximum].
func NewGameState(minimum, maximum int) GameState {
	return GameState{
		Minimum: minimum,
		Maximum: maximum,
		History: []Move{},
	}
}

// Record appends a guess and its comparison to the history and narrows the
// bounds to match. Bounds never widen.
func (s *GameState) Record(guess int, result Comparison) {
	s.History = append(s.History, Move{Guess: guess, Result: result})
	switch result {
	case Lower:
		s.Maximum = min(s.Maximum, guess-1)
	case Higher:
		s.Minimum = max(s.Minimum, guess+1)
	}
}

// Bounds narrows [Minimum, Maximum] using the history, for states built
// without Record. The range may be empty (lower > upper) if the history is
// inconsistent with any target.
func (s GameState) Bounds() (lower, upper int) {
	lower, upper = s.Minimum, s.Maximum
	for _, move := range s.History {
		switch move.Result {
		case Lower:
			if upper >= move.Guess {
				upper = move.Guess - 1
			}
		case Higher:
			if lower <= move.Guess {
				lower = move.Guess + 1
			}
		}
	}
	return lower, upper
}

// Validate rejects states a player cannot reason about.
func (s GameState) Validate() error {
	if s.Minimum > s.Maximum {
		return fmt.Errorf("minimum %d is greater than maximum %d", s.Minimum, s.Maximum)
	}
	for i, move := range s.History {
		if move.Result != Lower && move.Result != Higher {
			return fmt.Errorf("history[%d]: unknown result %q", i, move.Result)
		}
	}
	return nil
}

// Player produces the next guess for a game state.
type Player interface {
	Guess(ctx context.Context, state GameState) (int, error)
}
