package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/contest/go/internal/models"
	"github.com/mcdev12/contest/go/internal/playerproto"
)

// Config fixes one questioner's game. None of these values are negotiated
// with the player.
type Config struct {
	Minimum    int
	Maximum    int
	Target     int
	MaxGuesses int
}

// Validate checks Minimum <= Target <= Maximum and a positive guess budget.
func (c Config) Validate() error {
	if c.Minimum > c.Maximum {
		return fmt.Errorf("minimum %d is greater than maximum %d", c.Minimum, c.Maximum)
	}
	if c.Target < c.Minimum || c.Target > c.Maximum {
		return fmt.Errorf("target %d is outside [%d, %d]", c.Target, c.Minimum, c.Maximum)
	}
	if c.MaxGuesses <= 0 {
		return fmt.Errorf("max guesses must be positive, got %d", c.MaxGuesses)
	}
	return nil
}

// Result is the terminal outcome of one play attempt.
type Result struct {
	Outcome models.Outcome
	Moves   int
}

// Engine runs the turn-based guessing loop.
type Engine struct {
	config Config
}

// New validates cfg and returns an engine for it.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &Engine{config: cfg}, nil
}

// Play runs one game against player. It always returns a terminal outcome:
// won and crashed report the turn they happened on, failed reports the
// whole guess budget.
func (e *Engine) Play(ctx context.Context, player playerproto.Player) Result {
	state := playerproto.NewGameState(e.config.Minimum, e.config.Maximum)

	for turn := 1; turn <= e.config.MaxGuesses; turn++ {
		guess, err := player.Guess(ctx, state)
		if err != nil {
			log.Debug().
				Err(err).
				Int("turn", turn).
				Msg("player crashed")
			return Result{Outcome: models.OutcomeCrashed, Moves: turn}
		}

		log.Debug().
			Int("turn", turn).
			Int("guess", guess).
			Msg("player guessed")

		if guess == e.config.Target {
			return Result{Outcome: models.OutcomeWon, Moves: turn}
		}

		if guess < e.config.Target {
			state.Record(guess, playerproto.Higher)
		} else {
			state.Record(guess, playerproto.Lower)
		}
	}

	return Result{Outcome: models.OutcomeFailed, Moves: e.config.MaxGuesses}
}
