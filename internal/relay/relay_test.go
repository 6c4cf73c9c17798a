package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/emilabos/scrappy-chat/internal/config"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}
}

func newTestServer(t *testing.T, adURIs []string) (*httptest.Server, *Hub, Transcript) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	transcript := NewMemoryTranscript(100)
	hub := NewHub(transcript)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := gin.New()
	NewHandler(hub, transcript, adURIs, testWSConfig()).RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, hub, transcript
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("never reached %d registered clients", n)
}

func dial(t *testing.T, srv *httptest.Server, username string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + username
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readLine(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestBroadcastIncludesSender(t *testing.T) {
	srv, hub, _ := newTestServer(t, nil)

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitForClients(t, hub, 2)

	if err := alice.WriteMessage(websocket.TextMessage, []byte("hello from alice")); err != nil {
		t.Fatal(err)
	}

	want := "alice:hello from alice"
	if got := readLine(t, bob); got != want {
		t.Fatalf("bob received %q, want %q", got, want)
	}
	// The sender gets their own line echoed back.
	if got := readLine(t, alice); got != want {
		t.Fatalf("alice received %q, want %q", got, want)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _, transcript := newTestServer(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := transcript.Append(ctx, fmt.Sprintf("bob:line %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := http.Get(srv.URL + "/api/v1/history")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Lines []string `json:"lines"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if !env.Success {
		t.Fatal("success = false")
	}
	if len(env.Data.Lines) != 3 || env.Data.Lines[0] != "bob:line 0" {
		t.Fatalf("lines = %v", env.Data.Lines)
	}
}

func TestSentLinesLandInTranscript(t *testing.T) {
	srv, hub, transcript := newTestServer(t, nil)

	alice := dial(t, srv, "alice")
	waitForClients(t, hub, 1)
	if err := alice.WriteMessage(websocket.TextMessage, []byte("for the record")); err != nil {
		t.Fatal(err)
	}
	// Wait for the echo so the append has happened.
	readLine(t, alice)

	lines, err := transcript.Lines(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "alice:for the record" {
		t.Fatalf("transcript = %v", lines)
	}
}

func TestAdsEndpoint(t *testing.T) {
	uris := []string{"/assets/ad1.mp4", "/assets/ad2.mp4"}
	srv, _, _ := newTestServer(t, uris)

	resp, err := http.Get(srv.URL + "/assets/ads.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got []string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != uris[0] || got[1] != uris[1] {
		t.Fatalf("ads = %v, want %v", got, uris)
	}
}

func TestMemoryTranscriptBounded(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTranscript(3)

	for i := 0; i < 5; i++ {
		if err := tr.Append(ctx, fmt.Sprintf("bob:line %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	lines, err := tr.Lines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("len = %d, want 3", len(lines))
	}
	if lines[0] != "bob:line 2" || lines[2] != "bob:line 4" {
		t.Fatalf("lines = %v", lines)
	}
}

func TestRejectsEmptyUsername(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/%20"
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("dial with blank username succeeded")
	}
}
