package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/kresnabayu/cermin/server/domain/entities"
)

func newFeedServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	hub := NewHub(logger)
	go hub.Run()

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, logger)
	})

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return hub, server
}

func dialFeed(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	if sessionID != "" {
		url += "?session_id=" + sessionID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForClients blocks until the hub has registered the expected number of
// feed clients; registration races the dial, so notifying before it lands
// would drop the event.
func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d feed clients, have %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testResolvedExpression(questionID string) entities.QuestionExpression {
	return entities.NewQuestionExpression(
		entities.CaptureKey{RoundID: "technical", QuestionID: questionID, Ordinal: 0},
		entities.EmotionVector{{Label: "Joy", Score: 0.9}},
		entities.SourceReal,
	)
}

func TestHubDeliversExpressionEvents(t *testing.T) {
	hub, server := newFeedServer(t)
	conn := dialFeed(t, server, "session-1")
	waitForClients(t, hub, 1)

	hub.NotifyExpression("session-1", testResolvedExpression("q1"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}

	var event ExpressionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	if event.Type != "expression.recorded" {
		t.Errorf("Expected event type expression.recorded, got %s", event.Type)
	}
	if event.SessionID != "session-1" {
		t.Errorf("Expected session-1, got %s", event.SessionID)
	}
	if event.Expression.QuestionID != "q1" {
		t.Errorf("Expected question q1, got %s", event.Expression.QuestionID)
	}
}

func TestHubScopesEventsBySession(t *testing.T) {
	hub, server := newFeedServer(t)
	conn := dialFeed(t, server, "session-2")
	waitForClients(t, hub, 1)

	hub.NotifyExpression("session-1", testResolvedExpression("q1"))
	hub.NotifyExpression("session-2", testResolvedExpression("q2"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}

	var event ExpressionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	if event.SessionID != "session-2" || event.Expression.QuestionID != "q2" {
		t.Errorf("Client should only see its session's events, got %s/%s",
			event.SessionID, event.Expression.QuestionID)
	}
}
