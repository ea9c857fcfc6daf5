package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/rupeeq/callagent/internal/event"
)

// feedFrame is one websocket message on the live feed.
type feedFrame struct {
	Type string `json:"type"` // "transcript" | "call_ended"
	Data any    `json:"data"`
}

// subscriberBuffer bounds the per-client queue. A client that cannot keep
// up is dropped rather than allowed to stall the engine.
const subscriberBuffer = 64

// writeTimeout bounds a single websocket write.
const writeTimeout = 5 * time.Second

// LiveFeed pushes transcript entries and call lifecycle events to
// connected websocket clients. It implements event.Sink, so the engine
// treats it like any other sink; delivery is best-effort.
type LiveFeed struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewLiveFeed creates an empty feed.
func NewLiveFeed(logger *slog.Logger) *LiveFeed {
	return &LiveFeed{
		logger: logger.With("subsystem", "livefeed"),
		subs:   make(map[chan []byte]struct{}),
	}
}

// Handle upgrades the request to a websocket and streams feed frames
// until the client disconnects.
func (f *LiveFeed) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin enforcement happens in the CORS middleware; the feed is
		// read-only.
		InsecureSkipVerify: true,
	})
	if err != nil {
		f.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "feed closed")

	ch := f.subscribe()
	defer f.unsubscribe(ch)

	f.logger.Debug("live feed client connected", "remote_addr", r.RemoteAddr)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-ch:
			if !ok {
				// Dropped for falling behind.
				conn.Close(websocket.StatusPolicyViolation, "client too slow")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Append broadcasts a transcript entry to all clients.
func (f *LiveFeed) Append(_ context.Context, e event.TranscriptEntry) error {
	f.broadcast(feedFrame{Type: "transcript", Data: e})
	return nil
}

// Notify broadcasts a call-ended event to all clients.
func (f *LiveFeed) Notify(_ context.Context, e event.SessionEnded) error {
	f.broadcast(feedFrame{Type: "call_ended", Data: e})
	return nil
}

// SubscriberCount returns the number of connected clients.
func (f *LiveFeed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *LiveFeed) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *LiveFeed) unsubscribe(ch chan []byte) {
	f.mu.Lock()
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
	f.mu.Unlock()
}

// broadcast fans a frame out to every subscriber without blocking the
// engine: a full queue means the client is too slow and gets dropped.
func (f *LiveFeed) broadcast(frame feedFrame) {
	msg, err := json.Marshal(frame)
	if err != nil {
		f.logger.Error("encoding feed frame", "error", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- msg:
		default:
			delete(f.subs, ch)
			close(ch)
			f.logger.Warn("dropping slow live feed client")
		}
	}
}

// Ensure LiveFeed satisfies event.Sink.
var _ event.Sink = (*LiveFeed)(nil)
