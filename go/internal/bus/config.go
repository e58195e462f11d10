package bus

import (
	"time"

	"github.com/nats-io/nats.go"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int           // Number of replicas for the stream
	DuplicateWindow time.Duration // Window for duplicate detection
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "CONTEST_PLAY",
		SubjectPrefix:   "contest.play",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1, // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// ConsumerConfig tunes one questioner's durable consumer.
type ConsumerConfig struct {
	// Durable is the consumer name; one per questioner so every questioner
	// sees every round.
	Durable       string
	Workers       int
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	BufferSize    int
}

func DefaultConsumerConfig(durable string) ConsumerConfig {
	return ConsumerConfig{
		Durable:       durable,
		Workers:       4,
		MaxDeliver:    5,
		AckWait:       5 * time.Minute,
		MaxAckPending: 100,
		BufferSize:    100,
	}
}
