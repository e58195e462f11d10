package engine

import (
	"context"
	"math/bits"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/contest/go/internal/models"
	"github.com/mcdev12/contest/go/internal/playerproto"
	"github.com/mcdev12/contest/go/internal/strategy"
)

// scriptedPlayer replays fixed guesses and records every state it was sent.
type scriptedPlayer struct {
	guesses []int
	crashAt int
	states  []playerproto.GameState
}

func (p *scriptedPlayer) Guess(ctx context.Context, state playerproto.GameState) (int, error) {
	snapshot := state
	snapshot.History = make([]playerproto.Move, len(state.History))
	copy(snapshot.History, state.History)
	p.states = append(p.states, snapshot)

	turn := len(p.states)
	if turn == p.crashAt {
		return 0, playerproto.ErrPlayerFault
	}
	return p.guesses[(turn-1)%len(p.guesses)], nil
}

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New(%+v): %v", cfg, err)
	}
	return e
}

func TestPlayBinaryWinsWithinLogTurns(t *testing.T) {
	ranges := []struct{ min, max int }{
		{1, 1}, {1, 2}, {1, 10}, {1, 16}, {0, 99}, {-50, 50}, {1, 1000},
	}
	player := strategy.LocalPlayer{Strategy: strategy.BinarySearch{}}

	for _, r := range ranges {
		size := r.max - r.min + 1
		bound := bits.Len(uint(size))
		for target := r.min; target <= r.max; target++ {
			e := mustEngine(t, Config{Minimum: r.min, Maximum: r.max, Target: target, MaxGuesses: 20})
			got := e.Play(context.Background(), player)
			if got.Outcome != models.OutcomeWon {
				t.Fatalf("[%d,%d] target %d: outcome %s, want won", r.min, r.max, target, got.Outcome)
			}
			if got.Moves > bound {
				t.Fatalf("[%d,%d] target %d: won in %d moves, want <= %d", r.min, r.max, target, got.Moves, bound)
			}
		}
	}
}

// midpointPlayer ignores the history and trusts the bounds it is sent.
type midpointPlayer struct{}

func (midpointPlayer) Guess(_ context.Context, state playerproto.GameState) (int, error) {
	return (state.Minimum + state.Maximum) / 2, nil
}

func TestPlayMidpointOfSentBoundsWins(t *testing.T) {
	e := mustEngine(t, Config{Minimum: 1, Maximum: 10, Target: 7, MaxGuesses: 20})
	got := e.Play(context.Background(), midpointPlayer{})
	want := Result{Outcome: models.OutcomeWon, Moves: 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Play mismatch (-want +got):\n%s", diff)
	}

	for _, r := range []struct{ min, max int }{{1, 1}, {1, 10}, {1, 16}, {0, 99}, {1, 1000}} {
		bound := bits.Len(uint(r.max - r.min + 1))
		for target := r.min; target <= r.max; target++ {
			e := mustEngine(t, Config{Minimum: r.min, Maximum: r.max, Target: target, MaxGuesses: 20})
			got := e.Play(context.Background(), midpointPlayer{})
			if got.Outcome != models.OutcomeWon || got.Moves > bound {
				t.Fatalf("[%d,%d] target %d: got %+v, want won within %d", r.min, r.max, target, got, bound)
			}
		}
	}
}

func TestPlayLinearWins(t *testing.T) {
	e := mustEngine(t, Config{Minimum: 1, Maximum: 10, Target: 7, MaxGuesses: 20})

	got := e.Play(context.Background(), strategy.LocalPlayer{Strategy: strategy.LinearWalk{}})
	want := Result{Outcome: models.OutcomeWon, Moves: 7}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Play mismatch (-want +got):\n%s", diff)
	}
}

func TestPlayFailsAfterBudget(t *testing.T) {
	e := mustEngine(t, Config{Minimum: 1, Maximum: 10, Target: 7, MaxGuesses: 5})
	player := &scriptedPlayer{guesses: []int{1}}

	got := e.Play(context.Background(), player)
	want := Result{Outcome: models.OutcomeFailed, Moves: 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Play mismatch (-want +got):\n%s", diff)
	}
	if len(player.states) != 5 {
		t.Errorf("player asked %d times, want 5", len(player.states))
	}
}

func TestPlayCrashReportsTurn(t *testing.T) {
	e := mustEngine(t, Config{Minimum: 1, Maximum: 10, Target: 7, MaxGuesses: 20})
	player := &scriptedPlayer{guesses: []int{2, 9}, crashAt: 3}

	got := e.Play(context.Background(), player)
	want := Result{Outcome: models.OutcomeCrashed, Moves: 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Play mismatch (-want +got):\n%s", diff)
	}
}

func TestPlayHistory(t *testing.T) {
	e := mustEngine(t, Config{Minimum: 1, Maximum: 10, Target: 7, MaxGuesses: 20})
	player := &scriptedPlayer{guesses: []int{3, 9, 7}}

	got := e.Play(context.Background(), player)
	if got.Outcome != models.OutcomeWon || got.Moves != 3 {
		t.Fatalf("got %+v, want won in 3", got)
	}

	want := []playerproto.GameState{
		{Minimum: 1, Maximum: 10, History: []playerproto.Move{}},
		{Minimum: 4, Maximum: 10, History: []playerproto.Move{
			{Guess: 3, Result: playerproto.Higher},
		}},
		{Minimum: 4, Maximum: 8, History: []playerproto.Move{
			{Guess: 3, Result: playerproto.Higher},
			{Guess: 9, Result: playerproto.Lower},
		}},
	}
	if diff := cmp.Diff(want, player.states); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestPlayWrongGuessOutsideRange(t *testing.T) {
	e := mustEngine(t, Config{Minimum: 1, Maximum: 10, Target: 7, MaxGuesses: 2})
	player := &scriptedPlayer{guesses: []int{100, -100}}

	got := e.Play(context.Background(), player)
	if got.Outcome != models.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", got.Outcome)
	}
	if player.states[1].History[0].Result != playerproto.Lower {
		t.Errorf("guess above target recorded as %q", player.states[1].History[0].Result)
	}
	if player.states[1].Minimum != 1 || player.states[1].Maximum != 10 {
		t.Errorf("out of range guess moved bounds to [%d, %d]", player.states[1].Minimum, player.states[1].Maximum)
	}
}

func TestPlayCancelledContextCrashes(t *testing.T) {
	e := mustEngine(t, Config{Minimum: 1, Maximum: 10, Target: 7, MaxGuesses: 20})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := e.Play(ctx, strategy.LocalPlayer{Strategy: strategy.BinarySearch{}})
	want := Result{Outcome: models.OutcomeCrashed, Moves: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Play mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"inverted range", Config{Minimum: 10, Maximum: 1, Target: 5, MaxGuesses: 3}},
		{"target below", Config{Minimum: 1, Maximum: 10, Target: 0, MaxGuesses: 3}},
		{"target above", Config{Minimum: 1, Maximum: 10, Target: 11, MaxGuesses: 3}},
		{"no guesses", Config{Minimum: 1, Maximum: 10, Target: 5, MaxGuesses: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

