package events

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nwstad/overlayctl/internal/logging"
)

const (
	// EventPath is the device's WebSocket event channel
	EventPath = "/config/cgi/events.cgi"

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Wake topics are the session-visibility events that trigger a store
// refresh, the desktop analog of a browser tab becoming visible again.
var wakeTopics = map[string]bool{
	"session/resume": true,
	"client/visible": true,
}

// Event is a JSON event pushed by the device over the event channel.
type Event struct {
	Topic string         `json:"topic"`
	Data  map[string]any `json:"data,omitempty"`
}

// Watcher subscribes to a device's event channel and invokes registered
// hooks when the device signals that a stale view may need refreshing.
//
// The watcher does not reconnect: a dropped connection ends Run with an
// error, and restarting it is the caller's decision. This mirrors the
// no-automatic-retry recovery model of the rest of the tool.
type Watcher struct {
	url    string
	header http.Header

	mu      sync.Mutex
	onWake  []func()
	onEvent []func(Event)
}

// NewWatcher creates a watcher for a device's event channel.
// baseURL is the device's HTTP base URL (e.g. "http://192.168.0.90:80").
func NewWatcher(baseURL, username, password string) (*Watcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// Already a websocket URL
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + EventPath

	header := http.Header{}
	if username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		header.Set("Authorization", "Basic "+cred)
	}

	return &Watcher{
		url:    u.String(),
		header: header,
	}, nil
}

// OnWake registers a hook invoked on session-visibility events. Hooks run
// on the watcher's read goroutine; long work belongs elsewhere.
func (w *Watcher) OnWake(hook func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onWake = append(w.onWake, hook)
}

// OnEvent registers a hook invoked for every decoded event.
func (w *Watcher) OnEvent(hook func(Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onEvent = append(w.onEvent, hook)
}

// Run dials the event channel and processes events until the context is
// canceled or the connection drops.
func (w *Watcher) Run(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, w.url, w.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("event channel handshake failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("event channel unreachable: %w", err)
	}
	defer func() { _ = conn.Close() }()

	logging.Info("Event channel connected", zap.String("url", w.url))

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Ping loop keeps the connection alive and notices a dead peer
	pingDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				// Unblock the read loop
				_ = conn.Close()
				return
			case <-pingDone:
				return
			}
		}
	}()
	defer close(pingDone)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event channel closed: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			logging.Warn("Undecodable event", zap.ByteString("payload", data), zap.Error(err))
			continue
		}

		w.dispatch(ev)
	}
}

func (w *Watcher) dispatch(ev Event) {
	logging.LogEvent(ev.Topic)

	w.mu.Lock()
	onEvent := append(([]func(Event))(nil), w.onEvent...)
	onWake := append(([]func())(nil), w.onWake...)
	w.mu.Unlock()

	for _, hook := range onEvent {
		hook(ev)
	}
	if wakeTopics[ev.Topic] {
		for _, hook := range onWake {
			hook()
		}
	}
}
