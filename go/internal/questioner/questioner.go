package questioner

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/contest/go/internal/bus"
	"github.com/mcdev12/contest/go/internal/engine"
	"github.com/mcdev12/contest/go/internal/orchestrator"
	"github.com/mcdev12/contest/go/internal/playerproto"
)

// Questioner plays one configured game against every player it is asked to
// judge and reports the outcome.
type Questioner struct {
	config     Config
	reporter   *Reporter
	metrics    *Metrics
	httpClient *http.Client
	intn       func(n int) int
}

func New(cfg Config, reporter *Reporter, metrics *Metrics) (*Questioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid questioner config: %w", err)
	}
	if reporter == nil {
		reporter = NewReporter(nil)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Questioner{
		config:   cfg,
		reporter: reporter,
		metrics:  metrics,
		intn:     rand.IntN,
	}, nil
}

func (q *Questioner) Name() string {
	return q.config.Name
}

func (q *Questioner) Config() Config {
	return q.config
}

// SetPlayerHTTPClient overrides the client used to reach players.
func (q *Questioner) SetPlayerHTTPClient(c *http.Client) {
	q.httpClient = c
}

func (q *Questioner) target() int {
	if q.config.TargetPolicy == TargetRandom {
		return q.config.Minimum + q.intn(q.config.Maximum-q.config.Minimum+1)
	}
	return q.config.Target
}

// Play runs one game against the player at playerURL.
func (q *Questioner) Play(ctx context.Context, playerURL string) (engine.Result, error) {
	e, err := engine.New(q.config.engineConfig(q.target()))
	if err != nil {
		return engine.Result{}, err
	}

	player := playerproto.NewHTTPPlayer(playerURL, q.config.TurnTimeout)
	if q.httpClient != nil {
		player.SetHTTPClient(q.httpClient)
	}
	return e.Play(ctx, player), nil
}

// HandlePlayRequest plays the requested game and reports it. If ctx ends
// before the game does, nothing is reported.
func (q *Questioner) HandlePlayRequest(ctx context.Context, req bus.PlayRequest) error {
	logger := log.With().
		Str("questioner", q.config.Name).
		Str("contest_round", req.RoundID).
		Logger()

	logger.Info().Str("player_url", req.PlayerURL).Msg("starting game")

	result, err := q.Play(ctx, req.PlayerURL)
	if err != nil {
		return bus.Terminal(err)
	}
	if err := ctx.Err(); err != nil {
		logger.Warn().Err(err).Msg("game abandoned")
		return err
	}

	q.metrics.Games.WithLabelValues(q.config.Name, result.Outcome.String()).Inc()
	q.metrics.Moves.WithLabelValues(q.config.Name).Observe(float64(result.Moves))

	reportCtx, cancel := context.WithTimeout(ctx, q.config.ReportTimeout)
	defer cancel()

	err = q.reporter.Report(reportCtx, req.ResultURL, orchestrator.Report{
		RoundID:    req.RoundID,
		Outcome:    result.Outcome,
		Moves:      result.Moves,
		Questioner: q.config.Name,
		Secret:     req.Secret,
	})
	if err != nil {
		return fmt.Errorf("report %s: %w", result.Outcome, err)
	}

	logger.Info().
		Str("outcome", result.Outcome.String()).
		Int("moves", result.Moves).
		Msg("game reported")
	return nil
}
