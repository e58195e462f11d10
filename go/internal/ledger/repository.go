package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/contest/go/internal/models"
	"github.com/mcdev12/contest/go/internal/sqlutil"
)

//go:embed schema.sql
var schemaSQL string

// PostgresRepository stores rounds and runs in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the rounds and runs tables if they do not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) InsertRound(ctx context.Context, round models.Round) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rounds (id, user_name, email, player_url, secret, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		round.ID, round.User, round.Email, round.PlayerURL, round.Secret, round.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert round: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetRoundSecret(ctx context.Context, roundID string) (string, error) {
	var secret string
	err := r.pool.QueryRow(ctx, `SELECT secret FROM rounds WHERE id = $1`, roundID).Scan(&secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrRoundNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get round secret: %w", err)
	}
	return secret, nil
}

func (r *PostgresRepository) InsertRun(ctx context.Context, run models.Run) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO runs (id, round_id, questioner, outcome, moves, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.RoundID, run.Questioner, string(run.Outcome), run.Moves, run.ReportedAt,
	)
	if sqlutil.IsForeignKeyViolation(err) {
		return ErrRoundNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetRound(ctx context.Context, roundID string) (*models.Round, error) {
	var round models.Round
	err := sqlutil.Run(ctx, r.pool, sqlutil.ReadOnlySnapshot, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, user_name, email, player_url, created_at
			FROM rounds WHERE id = $1`, roundID,
		).Scan(&round.ID, &round.User, &round.Email, &round.PlayerURL, &round.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRoundNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get round: %w", err)
		}

		runs, err := selectRuns(ctx, tx, []string{roundID})
		if err != nil {
			return err
		}
		round.Runs = runs[roundID]
		return nil
	})
	if err != nil {
		return nil, err
	}
	if round.Runs == nil {
		round.Runs = []models.Run{}
	}
	return &round, nil
}

func (r *PostgresRepository) ListRounds(ctx context.Context, limit int) ([]models.Round, error) {
	var rounds []models.Round
	err := sqlutil.Run(ctx, r.pool, sqlutil.ReadOnlySnapshot, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, user_name, email, player_url, created_at
			FROM rounds
			ORDER BY created_at DESC, id DESC
			LIMIT $1`, limit,
		)
		if err != nil {
			return fmt.Errorf("failed to list rounds: %w", err)
		}

		rounds, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Round, error) {
			var round models.Round
			err := row.Scan(&round.ID, &round.User, &round.Email, &round.PlayerURL, &round.CreatedAt)
			return round, err
		})
		if err != nil {
			return fmt.Errorf("failed to scan rounds: %w", err)
		}
		if len(rounds) == 0 {
			return nil
		}

		ids := make([]string, len(rounds))
		for i, round := range rounds {
			ids[i] = round.ID
		}
		runs, err := selectRuns(ctx, tx, ids)
		if err != nil {
			return err
		}
		for i := range rounds {
			rounds[i].Runs = runs[rounds[i].ID]
			if rounds[i].Runs == nil {
				rounds[i].Runs = []models.Run{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rounds == nil {
		rounds = []models.Round{}
	}
	return rounds, nil
}

// selectRuns loads the runs of the given rounds keyed by round ID, in display order.
func selectRuns(ctx context.Context, tx pgx.Tx, roundIDs []string) (map[string][]models.Run, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, round_id, questioner, outcome, moves, reported_at
		FROM runs
		WHERE round_id = ANY($1::text[])
		ORDER BY questioner DESC, reported_at ASC`, roundIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	byRound := make(map[string][]models.Run, len(roundIDs))
	for rows.Next() {
		var (
			run     models.Run
			outcome string
		)
		if err := rows.Scan(&run.ID, &run.RoundID, &run.Questioner, &outcome, &run.Moves, &run.ReportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Outcome = models.Outcome(outcome)
		byRound[run.RoundID] = append(byRound[run.RoundID], run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return byRound, nil
}
