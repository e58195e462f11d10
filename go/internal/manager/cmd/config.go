package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mcdev12/contest/go/internal/questioner"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"

	busJetStream = "jetstream"
	busMemory    = "memory"
)

type Config struct {
	Port      string
	Store     string
	Bus       string
	NATSURL   string
	ResultURL string

	// QuestionerConfigs are only read in memory bus mode, where the
	// questioners run inside the manager process.
	QuestionerConfigs []string

	RedisAddr  string
	RateLimit  int64
	RateWindow time.Duration
}

func loadConfig() (Config, error) {
	cfg := Config{
		Port:       getEnv("PORT", "8080"),
		Store:      getEnv("STORE", storePostgres),
		Bus:        getEnv("BUS", busJetStream),
		NATSURL:    getEnv("NATS_URL", nats.DefaultURL),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
		RateLimit:  int64(getEnvAsInt("RATE_LIMIT", 10)),
		RateWindow: getEnvAsDuration("RATE_WINDOW", time.Minute),
	}
	cfg.ResultURL = getEnv("RESULT_URL", fmt.Sprintf("http://localhost:%s/report-result", cfg.Port))

	for _, path := range strings.Split(os.Getenv("QUESTIONER_CONFIGS"), ",") {
		if path = strings.TrimSpace(path); path != "" {
			cfg.QuestionerConfigs = append(cfg.QuestionerConfigs, path)
		}
	}

	if cfg.Store != storePostgres && cfg.Store != storeMemory {
		return Config{}, fmt.Errorf("unknown STORE %q", cfg.Store)
	}
	if cfg.Bus != busJetStream && cfg.Bus != busMemory {
		return Config{}, fmt.Errorf("unknown BUS %q", cfg.Bus)
	}
	return cfg, nil
}

// loadQuestioners builds the embedded judges. With no files configured the
// default easy questioner runs alone.
func loadQuestioners(paths []string) ([]questioner.Config, error) {
	if len(paths) == 0 {
		return []questioner.Config{questioner.DefaultConfig()}, nil
	}

	configs := make([]questioner.Config, 0, len(paths))
	seen := make(map[string]bool)
	for _, path := range paths {
		cfg, err := questioner.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		if seen[cfg.Name] {
			return nil, fmt.Errorf("duplicate questioner name %q in %s", cfg.Name, path)
		}
		seen[cfg.Name] = true
		configs = append(configs, cfg)
	}
	return configs, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
