package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/gpio-buttons/internal/button"
	"github.com/sweeney/gpio-buttons/internal/gpio"
	"github.com/sweeney/gpio-buttons/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *Hub) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Chip:           "gpiochip0",
		Pins:           button.FormatTable(button.DefaultTable),
		HoldIntervalMs: 100,
		Broker:         "tcp://192.168.1.200:1883",
		HTTPAddr:       ":8080",
	}
	tr := status.NewTracker(start, cfg)
	tr.SetButtons(button.DefaultTable, []error{
		&button.InitError{Spec: button.Spec{Name: "LEFT", Pin: 16}, Err: gpio.ErrInUse},
	})
	hub := NewHub(zaptest.NewLogger(t).Sugar())
	srv := New(":0", tr, hub)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return ts, tr, hub
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Notify(button.Event{Button: "DOWN", Type: button.EventPressed})
	tr.Notify(button.Event{Button: "DOWN", Type: button.EventHeld, Tick: 1})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	sj := getStatus(t, ts.URL)
	if len(sj.Status.Buttons) != 7 {
		t.Fatalf("expected 7 buttons, got %d", len(sj.Status.Buttons))
	}
	down := sj.Status.Buttons[0]
	if down.Name != "DOWN" || !down.Pressed || down.Presses != 1 || down.Holds != 1 {
		t.Errorf("DOWN: got %+v", down)
	}
	left := sj.Status.Buttons[2]
	if left.Initialized || left.Error != "already in use" {
		t.Errorf("LEFT: got %+v", left)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Config.HoldIntervalMs != 100 {
		t.Errorf("Config.HoldIntervalMs: got %d, want 100", sj.Status.Config.HoldIntervalMs)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"BACKSPACE", "already in use", "/events"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	up := getStatus(t, ts.URL).Status.Buttons[1]
	if up.Pressed {
		t.Error("expected UP idle initially")
	}

	tr.Notify(button.Event{Button: "UP", Type: button.EventPressed})
	up = getStatus(t, ts.URL).Status.Buttons[1]
	if !up.Pressed {
		t.Error("expected UP pressed after event")
	}

	tr.Notify(button.Event{Button: "UP", Type: button.EventReleased})
	up = getStatus(t, ts.URL).Status.Buttons[1]
	if up.Pressed || up.Releases != 1 {
		t.Errorf("expected UP released, got %+v", up)
	}
}

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients: got %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventsStream(t *testing.T) {
	ts, _, hub := newTestServer(t)
	conn := dialEvents(t, ts)
	waitClients(t, hub, 1)

	ts0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	hub.Notify(button.Event{Timestamp: ts0, Button: "ENTER", Pin: 27, Type: button.EventPressed})
	hub.Notify(button.Event{Timestamp: ts0, Button: "ENTER", Pin: 27, Type: button.EventHeld, Tick: 1})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []EventJSON
	for i := 0; i < 2; i++ {
		var ev EventJSON
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event %d: %v", i, err)
		}
		got = append(got, ev)
	}

	if got[0].Event != "PRESSED" || got[0].Name != "ENTER" || got[0].Pin != 27 {
		t.Errorf("event 0: got %+v", got[0])
	}
	if got[1].Event != "HELD" || got[1].Tick != 1 {
		t.Errorf("event 1: got %+v", got[1])
	}
	if got[0].Timestamp != "2026-01-01T12:00:00Z" {
		t.Errorf("timestamp: got %q", got[0].Timestamp)
	}
}

func TestEventsClientDisconnect(t *testing.T) {
	ts, _, hub := newTestServer(t)
	conn := dialEvents(t, ts)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	ts, _, hub := newTestServer(t)
	conn := dialEvents(t, ts)
	waitClients(t, hub, 1)

	hub.Close()
	waitClients(t, hub, 0)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed")
	}

	// New clients are turned away.
	late := dialEvents(t, ts)
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("expected late client to be closed")
	}
}

func TestHubNotifyWithoutClients(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t).Sugar())
	hub.Notify(button.Event{Button: "UP", Type: button.EventPressed})
	if hub.Clients() != 0 {
		t.Error("expected no clients")
	}
}
