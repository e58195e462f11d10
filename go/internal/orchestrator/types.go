package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/mcdev12/contest/go/internal/ledger"
	"github.com/mcdev12/contest/go/internal/models"
)

// ErrInvalidPlayerURL is returned by Submit for URLs questioners cannot call.
var ErrInvalidPlayerURL = errors.New("player url must be an absolute http or https url")

// Ledger is the part of ledger.App the orchestrator drives.
type Ledger interface {
	CreateRound(ctx context.Context, submitter ledger.Submitter, playerURL string) (string, string, error)
	AppendRun(ctx context.Context, roundID, secret, questioner string, outcome models.Outcome, moves int) error
}

// Report is the body a questioner posts once its game is over.
type Report struct {
	RoundID    string         `json:"contest_round"`
	Outcome    models.Outcome `json:"outcome"`
	Moves      int            `json:"moves"`
	Questioner string         `json:"questioner"`
	Secret     string         `json:"secret"`
}

type EventType string

const (
	RoundCreated EventType = "round_created"
	RunRecorded  EventType = "run_recorded"
)

// Event is pushed to live viewers. It never carries a secret.
type Event struct {
	Type       EventType      `json:"type"`
	RoundID    string         `json:"contest_round"`
	User       string         `json:"user,omitempty"`
	PlayerURL  string         `json:"player_url,omitempty"`
	Questioner string         `json:"questioner,omitempty"`
	Outcome    models.Outcome `json:"outcome,omitempty"`
	Moves      int            `json:"moves,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Notifier receives round events. Notify must not block.
type Notifier interface {
	Notify(event Event)
}
