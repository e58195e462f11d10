package manager

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/contest/go/internal/orchestrator"
)

// LiveConfig holds configuration for live feed connections.
type LiveConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// LiveFeed pushes round events to websocket viewers. A viewer may follow a
// single round or everything.
type LiveFeed struct {
	viewers map[*viewer]struct{}
	mu      sync.RWMutex

	upgrader websocket.Upgrader
	config   LiveConfig

	broadcastCh chan orchestrator.Event
}

type viewer struct {
	id      string
	roundID string
	conn    *websocket.Conn
	send    chan []byte
	feed    *LiveFeed
}

func NewLiveFeed(config LiveConfig) *LiveFeed {
	return &LiveFeed{
		viewers: make(map[*viewer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan orchestrator.Event, 1000),
	}
}

// Start fans queued events out until ctx is done.
func (f *LiveFeed) Start(ctx context.Context) {
	log.Info().Msg("live feed started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("live feed shutting down")
			f.closeAll()
			return
		case event := <-f.broadcastCh:
			f.broadcast(event)
		}
	}
}

// Notify implements orchestrator.Notifier. Events are dropped when the queue
// is full.
func (f *LiveFeed) Notify(event orchestrator.Event) {
	select {
	case f.broadcastCh <- event:
	default:
		log.Warn().Str("contest_round", event.RoundID).Msg("live feed queue full, dropping event")
	}
}

// ServeHTTP upgrades the request. ?round=<id> limits the feed to one round.
func (f *LiveFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade live feed connection")
		return
	}

	v := &viewer{
		id:      uuid.NewString(),
		roundID: r.URL.Query().Get("round"),
		conn:    conn,
		send:    make(chan []byte, f.config.SendBuffer),
		feed:    f,
	}
	f.register(v)

	go v.writePump()
	go v.readPump()
}

func (f *LiveFeed) ViewerCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.viewers)
}

func (f *LiveFeed) register(v *viewer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewers[v] = struct{}{}

	log.Debug().
		Str("viewer_id", v.id).
		Str("contest_round", v.roundID).
		Int("total_viewers", len(f.viewers)).
		Msg("viewer registered")
}

func (f *LiveFeed) unregister(v *viewer) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.viewers[v]; ok {
		delete(f.viewers, v)
		close(v.send)
		log.Debug().Str("viewer_id", v.id).Msg("viewer unregistered")
	}
}

func (f *LiveFeed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for v := range f.viewers {
		delete(f.viewers, v)
		close(v.send)
	}
}

func (f *LiveFeed) broadcast(event orchestrator.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal live event")
		return
	}

	// Sends happen under the read lock so unregister cannot close a channel
	// mid-send.
	var slow []*viewer
	f.mu.RLock()
	for v := range f.viewers {
		if v.roundID != "" && v.roundID != event.RoundID {
			continue
		}
		select {
		case v.send <- data:
		default:
			slow = append(slow, v)
		}
	}
	f.mu.RUnlock()

	for _, v := range slow {
		log.Warn().Str("viewer_id", v.id).Msg("viewer send buffer full, closing connection")
		f.unregister(v)
		v.conn.Close()
	}
}

func (v *viewer) writePump() {
	ticker := time.NewTicker(v.feed.config.PingInterval)
	defer func() {
		ticker.Stop()
		v.conn.Close()
		v.feed.unregister(v)
	}()

	for {
		select {
		case message, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(v.feed.config.WriteTimeout))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("viewer_id", v.id).Msg("failed to write live event")
				return
			}

		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(v.feed.config.WriteTimeout))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the connection alive; viewers have nothing to say.
func (v *viewer) readPump() {
	defer func() {
		v.feed.unregister(v)
		v.conn.Close()
	}()

	v.conn.SetReadLimit(v.feed.config.MaxMessageSize)
	v.conn.SetReadDeadline(time.Now().Add(v.feed.config.ReadTimeout))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(v.feed.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("viewer_id", v.id).Msg("unexpected live feed close")
			}
			return
		}
	}
}
