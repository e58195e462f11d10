package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/contest/go/internal/bus"
	"github.com/mcdev12/contest/go/internal/ledger"
)

type Config struct {
	// ResultURL is where questioners post their reports.
	ResultURL string
	Clock     clockwork.Clock
	Notifier  Notifier
	Metrics   *Metrics
}

// Orchestrator turns submissions into rounds and relays reports to the ledger.
// It never waits for questioners.
type Orchestrator struct {
	ledger    Ledger
	publisher bus.Publisher
	resultURL string
	clock     clockwork.Clock
	notifier  Notifier
	metrics   *Metrics
}

func New(l Ledger, publisher bus.Publisher, cfg Config) (*Orchestrator, error) {
	if cfg.ResultURL == "" {
		return nil, fmt.Errorf("result url is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	return &Orchestrator{
		ledger:    l,
		publisher: publisher,
		resultURL: cfg.ResultURL,
		clock:     cfg.Clock,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
	}, nil
}

// Submit creates a round and publishes one play request for it. A publish
// failure is logged and counted but the round still exists, with no runs.
func (o *Orchestrator) Submit(ctx context.Context, submitter ledger.Submitter, playerURL string) (string, error) {
	playerURL = strings.TrimSpace(playerURL)
	if err := validatePlayerURL(playerURL); err != nil {
		return "", err
	}

	roundID, secret, err := o.ledger.CreateRound(ctx, submitter, playerURL)
	if err != nil {
		return "", err
	}
	o.metrics.RoundsSubmitted.Inc()

	req := bus.PlayRequest{
		RoundID:   roundID,
		PlayerURL: playerURL,
		ResultURL: o.resultURL,
		Secret:    secret,
	}
	if err := o.publisher.Publish(ctx, req); err != nil {
		o.metrics.PublishFailures.Inc()
		log.Error().
			Err(err).
			Str("contest_round", roundID).
			Msg("failed to publish play request")
	}

	o.notify(Event{
		Type:      RoundCreated,
		RoundID:   roundID,
		User:      submitter.User,
		PlayerURL: playerURL,
		Timestamp: o.clock.Now().UTC(),
	})

	return roundID, nil
}

// ReceiveReport decodes a questioner's report and appends it to the ledger.
// The returned error is only set for failures outside the report protocol.
func (o *Orchestrator) ReceiveReport(ctx context.Context, body []byte) (ledger.Result, error) {
	var report Report
	if err := json.Unmarshal(body, &report); err != nil {
		log.Warn().Err(err).Msg("rejected undecodable run report")
		o.metrics.Reports.WithLabelValues(ledger.Invalid.String()).Inc()
		return ledger.Invalid, nil
	}

	appendErr := o.ledger.AppendRun(ctx, report.RoundID, report.Secret, report.Questioner, report.Outcome, report.Moves)
	result, err := ledger.Classify(appendErr)
	if err != nil {
		return 0, err
	}
	o.metrics.Reports.WithLabelValues(result.String()).Inc()

	if result != ledger.Created {
		log.Warn().
			Err(appendErr).
			Str("contest_round", report.RoundID).
			Str("questioner", report.Questioner).
			Str("result", result.String()).
			Msg("run report rejected")
		return result, nil
	}

	o.notify(Event{
		Type:       RunRecorded,
		RoundID:    report.RoundID,
		Questioner: report.Questioner,
		Outcome:    report.Outcome,
		Moves:      report.Moves,
		Timestamp:  o.clock.Now().UTC(),
	})

	return result, nil
}

func (o *Orchestrator) notify(event Event) {
	if o.notifier != nil {
		o.notifier.Notify(event)
	}
}

func validatePlayerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w: %w", ledger.ErrInvalidRound, ErrInvalidPlayerURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %w", ledger.ErrInvalidRound, ErrInvalidPlayerURL)
	}
	return nil
}
