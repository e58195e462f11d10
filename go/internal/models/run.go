package models

import (
	"fmt"
	"time"
)

// Outcome is the terminal result of one questioner's game against a player.
type Outcome string

const (
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
	OutcomeCrashed Outcome = "crashed"
	OutcomeFailed  Outcome = "failed"
)

// ParseOutcome validates a reported outcome string.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeWon, OutcomeLost, OutcomeCrashed, OutcomeFailed:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", s)
	}
}

func (o Outcome) String() string {
	return string(o)
}

// Run is one questioner's recorded outcome for a Round.
type Run struct {
	ID         string    `json:"id"`
	RoundID    string    `json:"contest_round"`
	Questioner string    `json:"questioner"`
	Outcome    Outcome   `json:"outcome"`
	Moves      int       `json:"moves"`
	ReportedAt time.Time `json:"reported_at"`
}
