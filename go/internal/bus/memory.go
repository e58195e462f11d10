package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// MemoryBus fans play requests out to in-process subscribers. Every
// subscriber receives every request on its own goroutine.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	ctx      context.Context
	wg       sync.WaitGroup
}

// NewMemoryBus returns a bus whose deliveries run under ctx.
func NewMemoryBus(ctx context.Context) *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string]Handler),
		ctx:      ctx,
	}
}

// Subscribe registers handle under name, replacing any earlier handler with
// the same name.
func (b *MemoryBus) Subscribe(name string, handle Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = handle
}

// Publish never blocks on handlers.
func (b *MemoryBus) Publish(ctx context.Context, req PlayRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for name, handle := range b.handlers {
		b.wg.Add(1)
		go func(name string, handle Handler) {
			defer b.wg.Done()
			if err := handle(b.ctx, req); err != nil {
				log.Error().
					Err(err).
					Str("subscriber", name).
					Str("contest_round", req.RoundID).
					Msg("play request handler failed")
			}
		}(name, handle)
	}
	return nil
}

// Wait blocks until every delivery started so far has returned.
func (b *MemoryBus) Wait() {
	b.wg.Wait()
}
