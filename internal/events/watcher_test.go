package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// eventServer is an httptest server that speaks the device's event channel
// protocol and pushes scripted events to every subscriber.
func eventServer(t *testing.T, events []Event) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != EventPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestNewWatcherURLDerivation(t *testing.T) {
	w, err := NewWatcher("http://192.168.0.90:80", "root", "secret")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if w.url != "ws://192.168.0.90:80"+EventPath {
		t.Errorf("url = %s", w.url)
	}
	if w.header.Get("Authorization") == "" {
		t.Error("credentials should produce an Authorization header")
	}

	w, err = NewWatcher("https://192.168.0.90", "", "")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if w.url != "wss://192.168.0.90"+EventPath {
		t.Errorf("url = %s", w.url)
	}
	if w.header.Get("Authorization") != "" {
		t.Error("no credentials should mean no Authorization header")
	}

	if _, err := NewWatcher("ftp://192.168.0.90", "", ""); err == nil {
		t.Error("unsupported scheme should fail")
	}
}

func TestWatcherDispatchesWakeEvents(t *testing.T) {
	server := eventServer(t, []Event{
		{Topic: "stats/update"},
		{Topic: "session/resume"},
		{Topic: "client/visible"},
	})
	defer server.Close()

	watcher, err := NewWatcher(server.URL, "root", "pass")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	var mu sync.Mutex
	var topics []string
	wakes := 0
	done := make(chan struct{})

	watcher.OnEvent(func(ev Event) {
		mu.Lock()
		topics = append(topics, ev.Topic)
		if len(topics) == 3 {
			close(done)
		}
		mu.Unlock()
	})
	watcher.OnWake(func() {
		mu.Lock()
		wakes++
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- watcher.Run(ctx) }()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for events")
	}
	cancel()
	<-errCh

	mu.Lock()
	defer mu.Unlock()
	if len(topics) != 3 || topics[0] != "stats/update" {
		t.Errorf("topics = %v", topics)
	}
	// Only the two session-visibility topics wake
	if wakes != 2 {
		t.Errorf("wakes = %d, want 2", wakes)
	}
}

func TestWatcherRunEndsWhenConnectionDrops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close() // Drop immediately
	}))
	defer server.Close()

	watcher, err := NewWatcher(server.URL, "", "")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// No reconnect: Run returns an error and stays returned
	if err := watcher.Run(ctx); err == nil {
		t.Error("Run should report the dropped connection")
	}
}

func TestWatcherHandshakeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	watcher, err := NewWatcher(server.URL, "root", "wrong")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := watcher.Run(ctx); err == nil {
		t.Error("handshake failure should end Run with an error")
	}
}

func TestWatcherSkipsUndecodableEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteJSON(Event{Topic: "session/resume"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	watcher, err := NewWatcher(server.URL, "", "")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	woke := make(chan struct{})
	var once sync.Once
	watcher.OnWake(func() {
		once.Do(func() { close(woke) })
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = watcher.Run(ctx) }()

	select {
	case <-woke:
		// Garbage was skipped; the following event still dispatched
	case <-ctx.Done():
		t.Fatal("wake event never arrived")
	}
}
