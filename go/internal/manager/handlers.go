package manager

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/contest/go/internal/ledger"
	"github.com/mcdev12/contest/go/internal/models"
)

const (
	iapEmailHeader = "X-Goog-Authenticated-User-Email"
	iapEmailPrefix = "accounts.google.com:"

	maxBodySize = 64 << 10
)

// Orchestrator is what the manager needs to start rounds and accept reports.
type Orchestrator interface {
	Submit(ctx context.Context, submitter ledger.Submitter, playerURL string) (string, error)
	ReceiveReport(ctx context.Context, body []byte) (ledger.Result, error)
}

// RoundReader serves the public views of the ledger.
type RoundReader interface {
	GetRound(ctx context.Context, roundID string) (*models.Round, error)
	ListRounds(ctx context.Context, limit int) ([]models.Round, error)
}

type trialRequest struct {
	User      string `json:"user"`
	PlayerURL string `json:"player_url"`
}

type handlers struct {
	orch    Orchestrator
	rounds  RoundReader
	limiter *RateLimiter
}

func (h *handlers) requestTrial(w http.ResponseWriter, r *http.Request) {
	var req trialRequest
	if isJSON(r) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil || json.Unmarshal(body, &req) != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		req.User = r.PostForm.Get("user")
		req.PlayerURL = r.PostForm.Get("player_url")
	}

	req.User = strings.TrimSpace(req.User)
	if req.User == "" || strings.TrimSpace(req.PlayerURL) == "" {
		writeError(w, http.StatusBadRequest, "user and player_url are required")
		return
	}

	submitter := ledger.Submitter{User: req.User, Email: authenticatedEmail(r)}
	if !h.limiter.Allow(r.Context(), limitKey(r, submitter)) {
		writeError(w, http.StatusTooManyRequests, "too many submissions, try again later")
		return
	}

	roundID, err := h.orch.Submit(r.Context(), submitter, req.PlayerURL)
	if errors.Is(err, ledger.ErrInvalidRound) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user", submitter.User).Msg("failed to submit round")
		writeError(w, http.StatusInternalServerError, "failed to submit round")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"contest_round": roundID})
}

func (h *handlers) reportResult(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeError(w, http.StatusUnsupportedMediaType, "reports must be application/json")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	result, err := h.orch.ReceiveReport(r.Context(), body)
	if err != nil {
		log.Error().Err(err).Msg("failed to record run report")
		writeError(w, http.StatusInternalServerError, "failed to record report")
		return
	}

	writeJSON(w, result.StatusCode(), map[string]string{"result": result.String()})
}

func (h *handlers) listRounds(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rounds, err := h.rounds.ListRounds(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list rounds")
		writeError(w, http.StatusInternalServerError, "failed to list rounds")
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (h *handlers) getRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.rounds.GetRound(r.Context(), r.PathValue("id"))
	if errors.Is(err, ledger.ErrRoundNotFound) {
		writeError(w, http.StatusNotFound, "round not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to get round")
		writeError(w, http.StatusInternalServerError, "failed to get round")
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// authenticatedEmail reads the identity-aware proxy header, if any.
func authenticatedEmail(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get(iapEmailHeader), iapEmailPrefix)
}

func limitKey(r *http.Request, submitter ledger.Submitter) string {
	if submitter.Email != "" {
		return "email:" + submitter.Email
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
