package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/contest/go/internal/models"
)

const (
	// DefaultListLimit caps ListRounds when the caller passes a non-positive limit.
	DefaultListLimit = 100

	// MaxMoves is the largest move count runs.moves (INTEGER) can hold.
	MaxMoves = math.MaxInt32
)

// Repository is what the ledger needs from storage. It exposes no update or
// delete: rounds are only created and runs only appended.
type Repository interface {
	InsertRound(ctx context.Context, round models.Round) error
	GetRoundSecret(ctx context.Context, roundID string) (string, error)
	InsertRun(ctx context.Context, run models.Run) error
	GetRound(ctx context.Context, roundID string) (*models.Round, error)
	ListRounds(ctx context.Context, limit int) ([]models.Round, error)
}

// App holds the authoritative state of contest rounds.
type App struct {
	repo      Repository
	clock     clockwork.Clock
	newSecret func() (string, error)
}

// NewApp creates a ledger over repo. A nil clock means the real clock.
func NewApp(repo Repository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:      repo,
		clock:     clock,
		newSecret: NewSecret,
	}
}

// CreateRound records a new round and issues its secret. The secret is only
// ever returned here.
func (a *App) CreateRound(ctx context.Context, submitter Submitter, playerURL string) (string, string, error) {
	if strings.TrimSpace(playerURL) == "" {
		return "", "", fmt.Errorf("%w: player url is required", ErrInvalidRound)
	}

	secret, err := a.newSecret()
	if err != nil {
		return "", "", fmt.Errorf("failed to issue secret: %w", err)
	}

	round := models.Round{
		ID:        uuid.NewString(),
		User:      submitter.User,
		Email:     submitter.Email,
		PlayerURL: playerURL,
		CreatedAt: a.clock.Now().UTC(),
		Secret:    secret,
	}

	if err := a.repo.InsertRound(ctx, round); err != nil {
		return "", "", fmt.Errorf("failed to create round: %w", err)
	}

	log.Info().
		Str("contest_round", round.ID).
		Str("user", round.User).
		Str("player_url", round.PlayerURL).
		Msg("round created")

	return round.ID, secret, nil
}

// AppendRun adds one questioner's outcome to a round if secret matches the
// round's secret. It returns ErrRoundNotFound, ErrForbidden or ErrInvalidRun
// without touching the round's runs, or nil once the run is stored.
func (a *App) AppendRun(ctx context.Context, roundID, secret, questioner string, outcome models.Outcome, moves int) error {
	if roundID == "" {
		return fmt.Errorf("%w: contest_round is required", ErrRoundNotFound)
	}

	stored, err := a.repo.GetRoundSecret(ctx, roundID)
	if err != nil {
		return fmt.Errorf("failed to look up round: %w", err)
	}

	if !SecretsEqual(stored, secret) {
		log.Warn().
			Str("contest_round", roundID).
			Str("questioner", questioner).
			Msg("rejected run report with bad secret")
		return ErrForbidden
	}

	if _, err := models.ParseOutcome(string(outcome)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRun, err)
	}
	if moves < 0 || moves > MaxMoves {
		return fmt.Errorf("%w: moves must be between 0 and %d", ErrInvalidRun, MaxMoves)
	}
	if strings.TrimSpace(questioner) == "" {
		return fmt.Errorf("%w: questioner is required", ErrInvalidRun)
	}

	run := models.Run{
		ID:         uuid.NewString(),
		RoundID:    roundID,
		Questioner: questioner,
		Outcome:    outcome,
		Moves:      moves,
		ReportedAt: a.clock.Now().UTC(),
	}

	if err := a.repo.InsertRun(ctx, run); err != nil {
		return fmt.Errorf("failed to append run: %w", err)
	}

	log.Info().
		Str("contest_round", roundID).
		Str("questioner", questioner).
		Str("outcome", outcome.String()).
		Int("moves", moves).
		Msg("run recorded")

	return nil
}

// GetRound retrieves a round and its runs.
func (a *App) GetRound(ctx context.Context, roundID string) (*models.Round, error) {
	round, err := a.repo.GetRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return round, nil
}

// ListRounds returns rounds newest first, each with its runs.
func (a *App) ListRounds(ctx context.Context, limit int) ([]models.Round, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rounds, err := a.repo.ListRounds(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	return rounds, nil
}
