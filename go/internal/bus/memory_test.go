package bus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testRequest(id string) PlayRequest {
	return PlayRequest{
		RoundID:   id,
		PlayerURL: "http://player",
		ResultURL: "http://manager/report-result",
		Secret:    "s3cret",
	}
}

func TestMemoryBusFansOut(t *testing.T) {
	b := NewMemoryBus(context.Background())

	var (
		mu   sync.Mutex
		seen []string
	)
	for _, name := range []string{"easy", "hard", "medium"} {
		name := name
		b.Subscribe(name, func(ctx context.Context, req PlayRequest) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, fmt.Sprintf("%s:%s", name, req.RoundID))
			return nil
		})
	}

	if err := b.Publish(context.Background(), testRequest("r1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	b.Wait()

	sort.Strings(seen)
	want := []string{"easy:r1", "hard:r1", "medium:r1"}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("deliveries mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryBusRejectsMalformed(t *testing.T) {
	b := NewMemoryBus(context.Background())
	called := false
	b.Subscribe("q", func(ctx context.Context, req PlayRequest) error {
		called = true
		return nil
	})

	req := testRequest("r1")
	req.Secret = ""
	err := b.Publish(context.Background(), req)
	if !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("err = %v, want ErrMalformedRequest", err)
	}
	b.Wait()
	if called {
		t.Error("handler called for malformed request")
	}
}

func TestMemoryBusHandlerErrorDoesNotBlockOthers(t *testing.T) {
	b := NewMemoryBus(context.Background())

	done := make(chan struct{}, 1)
	b.Subscribe("broken", func(ctx context.Context, req PlayRequest) error {
		return errors.New("boom")
	})
	b.Subscribe("ok", func(ctx context.Context, req PlayRequest) error {
		done <- struct{}{}
		return nil
	})

	if err := b.Publish(context.Background(), testRequest("r2")); err != nil {
		t.Fatal(err)
	}
	b.Wait()

	select {
	case <-done:
	default:
		t.Fatal("healthy subscriber did not receive the request")
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("network"), false},
		{"terminal", Terminal(errors.New("403")), true},
		{"malformed", fmt.Errorf("%w: bad json", ErrMalformedRequest), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTerminal(tt.err); got != tt.want {
				t.Errorf("IsTerminal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
	if Terminal(nil) != nil {
		t.Error("Terminal(nil) should be nil")
	}
}
