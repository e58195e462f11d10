package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConsumer delivers play requests to one questioner. Each questioner
// owns a durable consumer, so every questioner sees every round.
type JetStreamConsumer struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   JetStreamConfig
	cc       ConsumerConfig
}

func NewJetStreamConsumer(ctx context.Context, cfg JetStreamConfig, cc ConsumerConfig) (*JetStreamConsumer, error) {
	if cc.Durable == "" {
		return nil, fmt.Errorf("consumer durable name is required")
	}
	if cc.Workers <= 0 {
		cc.Workers = 1
	}

	nc, js, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	if err := ensureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	c := &JetStreamConsumer{nc: nc, js: js, config: cfg, cc: cc}
	if err := c.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// ensureConsumer creates or gets the durable JetStream consumer.
func (c *JetStreamConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := c.js.Stream(ctx, c.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          c.cc.Durable,
		Durable:       c.cc.Durable,
		Description:   "Questioner play request consumer",
		FilterSubject: c.config.SubjectPrefix + ".request",
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    c.cc.MaxDeliver,
		AckWait:       c.cc.AckWait,
		MaxAckPending: c.cc.MaxAckPending,
	}

	consumer, err := stream.Consumer(ctx, c.cc.Durable)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().Str("consumer", c.cc.Durable).Msg("created JetStream consumer")
	} else {
		log.Info().Str("consumer", c.cc.Durable).Msg("using existing JetStream consumer")
	}

	c.consumer = consumer
	return nil
}

// Run feeds delivered messages to a pool of workers until ctx is cancelled.
func (c *JetStreamConsumer) Run(ctx context.Context, handle Handler) error {
	msgCh := make(chan jetstream.Msg, c.cc.BufferSize)

	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case msgCh <- msg:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start JetStream consumer: %w", err)
	}
	defer consumeCtx.Stop()

	log.Info().
		Str("consumer", c.cc.Durable).
		Int("workers", c.cc.Workers).
		Msg("consuming play requests")

	var wg sync.WaitGroup
	for i := 0; i < c.cc.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-msgCh:
					c.process(ctx, workerID, msg, handle)
				}
			}
		}(i)
	}

	<-ctx.Done()
	log.Info().Str("consumer", c.cc.Durable).Msg("consumer shutdown requested")
	wg.Wait()
	return nil
}

func (c *JetStreamConsumer) process(ctx context.Context, workerID int, msg jetstream.Msg, handle Handler) {
	var req PlayRequest
	err := json.Unmarshal(msg.Data(), &req)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	} else if err = req.Validate(); err == nil {
		err = handle(ctx, req)
	}

	logger := log.With().
		Str("consumer", c.cc.Durable).
		Int("worker_id", workerID).
		Str("contest_round", req.RoundID).
		Logger()

	switch {
	case err == nil:
		_ = msg.Ack()
	case IsTerminal(err):
		logger.Warn().Err(err).Msg("dropping play request")
		_ = msg.Ack()
	case ctx.Err() != nil:
		// Shutting down mid-game: leave it for redelivery.
		_ = msg.Nak()
	default:
		logger.Error().Err(err).Msg("failed to handle play request")
		_ = msg.Nak()
	}
}

func (c *JetStreamConsumer) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
