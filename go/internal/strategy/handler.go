package strategy

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/contest/go/internal/playerproto"
)

const maxStateSize = 1 << 20

// Handler serves a strategy as a player endpoint: POST / with a game state,
// answered by a bare JSON integer.
func Handler(s Strategy) http.Handler {
	router := httprouter.New()

	router.POST("/", serveGuess(s))
	router.GET("/health", serveHealth)

	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		log.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("player handler panicked")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}

	return router
}

func serveGuess(s Strategy) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxStateSize))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		var state playerproto.GameState
		if err := json.Unmarshal(body, &state); err != nil {
			http.Error(w, "invalid game state", http.StatusBadRequest)
			return
		}
		if err := state.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		guess := s.Guess(state)

		log.Debug().
			Str("strategy", s.Name()).
			Int("history", len(state.History)).
			Int("guess", guess).
			Msg("answered guess request")

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(guess); err != nil {
			log.Error().Err(err).Msg("failed to write guess")
		}
	}
}

func serveHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
