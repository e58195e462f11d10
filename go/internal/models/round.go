package models

import (
	"time"
)

// Round is one contest submission cycle for a single player URL.
type Round struct {
	ID        string    `json:"contest_round"`
	User      string    `json:"user"`
	Email     string    `json:"email,omitempty"`
	PlayerURL string    `json:"player_url"`
	CreatedAt time.Time `json:"timestamp"`
	Runs      []Run     `json:"runs"`

	// Secret authenticates run reports for this round. It is set once at
	// creation and must never be serialized to clients.
	Secret string `json:"-"`
}
