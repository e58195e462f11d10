package manager

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type Config struct {
	Orchestrator Orchestrator
	Rounds       RoundReader
	Live         *LiveFeed
	Limiter      *RateLimiter
	// Gatherer backs /metrics; nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
}

// Routes builds the manager's HTTP handler.
func Routes(cfg Config) http.Handler {
	mux := http.NewServeMux()

	h := &handlers{
		orch:    cfg.Orchestrator,
		rounds:  cfg.Rounds,
		limiter: cfg.Limiter,
	}

	mux.HandleFunc("POST /request-trial", h.requestTrial)
	mux.HandleFunc("POST /report-result", h.reportResult)
	mux.HandleFunc("GET /rounds", h.listRounds)
	mux.HandleFunc("GET /rounds/{id}", h.getRound)
	if cfg.Live != nil {
		mux.Handle("GET /rounds/live", cfg.Live)
	}
	mux.HandleFunc("GET /health", health)
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return c.Handler(mux)
}

// NewServer serves handler over HTTP/1.1 and cleartext HTTP/2.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
