package strategy

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/contest/go/internal/playerproto"
)

func TestBinarySearchGuess(t *testing.T) {
	state := playerproto.NewGameState(1, 10)
	if got := (BinarySearch{}).Guess(state); got != 5 {
		t.Errorf("first guess = %d, want 5", got)
	}

	state.Record(5, playerproto.Higher)
	if got := (BinarySearch{}).Guess(state); got != 8 {
		t.Errorf("second guess = %d, want 8", got)
	}

	negative := playerproto.NewGameState(-10, -1)
	if got := (BinarySearch{}).Guess(negative); got != -6 {
		t.Errorf("negative range guess = %d, want -6", got)
	}
}

func TestLinearWalkGuess(t *testing.T) {
	state := playerproto.NewGameState(1, 10)
	if got := (LinearWalk{}).Guess(state); got != 1 {
		t.Errorf("first guess = %d, want 1", got)
	}
	state.Record(1, playerproto.Higher)
	state.Record(2, playerproto.Higher)
	if got := (LinearWalk{}).Guess(state); got != 3 {
		t.Errorf("third guess = %d, want 3", got)
	}
}

func TestRegistry(t *testing.T) {
	if diff := cmp.Diff([]string{"binary", "linear"}, Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	s, err := Get("binary")
	if err != nil || s.Name() != "binary" {
		t.Fatalf("Get(binary) = %v, %v", s, err)
	}
	if _, err := Get("psychic"); err == nil {
		t.Error("expected unknown strategy error")
	}
}

func TestLocalPlayerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LocalPlayer{Strategy: BinarySearch{}}.Guess(ctx, playerproto.NewGameState(1, 10))
	if !errors.Is(err, playerproto.ErrPlayerFault) {
		t.Fatalf("err = %v, want ErrPlayerFault", err)
	}
}

func TestHandlerServesGuess(t *testing.T) {
	h := Handler(BinarySearch{})

	body := `{"minimum":1,"maximum":10,"history":[{"guess":5,"result":"higher"}]}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "8" {
		t.Errorf("body = %q, want 8", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestHandlerRejectsBadState(t *testing.T) {
	h := Handler(LinearWalk{})

	for _, body := range []string{"not json", `{"minimum":9,"maximum":1,"history":[]}`} {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestHandlerHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(BinarySearch{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHTTPPlayerAgainstHandler(t *testing.T) {
	srv := httptest.NewServer(Handler(BinarySearch{}))
	defer srv.Close()

	state := playerproto.NewGameState(1, 100)
	guess, err := playerproto.NewHTTPPlayer(srv.URL, 0).Guess(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if guess != 50 {
		t.Errorf("guess = %d, want 50", guess)
	}
}
