package strategy

import (
	"context"
	"fmt"
	"sort"

	"github.com/mcdev12/contest/go/internal/playerproto"
)

// Strategy decides the next guess from the state a questioner sent.
type Strategy interface {
	Name() string
	Guess(state playerproto.GameState) int
}

// BinarySearch guesses the midpoint of the range left open by the history.
type BinarySearch struct{}

func (BinarySearch) Name() string { return "binary" }

func (BinarySearch) Guess(state playerproto.GameState) int {
	lower, upper := state.Bounds()
	return floorDiv(lower+upper, 2)
}

// LinearWalk starts at the minimum and steps just past every guess that the
// history rules out.
type LinearWalk struct{}

func (LinearWalk) Name() string { return "linear" }

func (LinearWalk) Guess(state playerproto.GameState) int {
	guess := state.Minimum
	for _, move := range state.History {
		switch move.Result {
		case playerproto.Lower:
			if guess >= move.Guess {
				guess = move.Guess - 1
			}
		case playerproto.Higher:
			if guess <= move.Guess {
				guess = move.Guess + 1
			}
		}
	}
	return guess
}

// floorDiv rounds toward negative infinity so negative ranges bisect the same
// way as positive ones.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

var registry = map[string]Strategy{
	BinarySearch{}.Name(): BinarySearch{},
	LinearWalk{}.Name():   LinearWalk{},
}

// Get returns a registered strategy by name.
func Get(name string) (Strategy, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, Names())
	}
	return s, nil
}

// Names lists the registered strategies.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LocalPlayer adapts a Strategy to the playerproto.Player interface without
// any network hop.
type LocalPlayer struct {
	Strategy Strategy
}

func (p LocalPlayer) Guess(ctx context.Context, state playerproto.GameState) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", playerproto.ErrPlayerFault, err)
	}
	return p.Strategy.Guess(state), nil
}
