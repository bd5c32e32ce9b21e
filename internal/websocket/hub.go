// Package websocket pushes resolved expressions to reporting clients as they
// reach the store, so a live dashboard can follow an interview without
// polling.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kresnabayu/cermin/server/domain/entities"
	"github.com/kresnabayu/cermin/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Clients only listen; anything
	// beyond a control frame is unexpected.
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ExpressionEvent is the wire format of one resolved expression
type ExpressionEvent struct {
	Type       string                      `json:"type"`
	SessionID  string                      `json:"session_id"`
	Expression entities.QuestionExpression `json:"expression"`
}

// Hub fans resolved expressions out to subscribed clients. A client
// subscribes to one session; an empty session ID subscribes to all.
type Hub struct {
	clients     map[*Client]struct{} // owned by the Run loop
	clientCount atomic.Int32
	register    chan *Client
	unregister  chan *Client
	events      chan ExpressionEvent
	logger      *zap.Logger
}

// Ensure Hub satisfies the pipeline's notifier contract
var _ usecase.ExpressionNotifier = (*Hub)(nil)

// NewHub creates a new expression feed hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan ExpressionEvent, 100),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.clientCount.Store(int32(len(h.clients)))
			h.logger.Info("Feed client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientCount.Store(int32(len(h.clients)))
			h.logger.Info("Feed client unregistered", zap.String("sessionID", client.sessionID))

		case event := <-h.events:
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("Failed to encode expression event", zap.Error(err))
				continue
			}
			for client := range h.clients {
				if client.sessionID != "" && client.sessionID != event.SessionID {
					continue
				}
				select {
				case client.send <- payload:
				default:
					// A slow reader must not stall resolution delivery
					h.logger.Warn("Feed client too slow, dropping event",
						zap.String("sessionID", client.sessionID))
				}
			}
		}
	}
}

// ClientCount reports how many feed clients are currently attached
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

// NotifyExpression implements usecase.ExpressionNotifier. It never blocks;
// when the event buffer is full the event is dropped and logged.
func (h *Hub) NotifyExpression(sessionID string, expr entities.QuestionExpression) {
	event := ExpressionEvent{
		Type:       "expression.recorded",
		SessionID:  sessionID,
		Expression: expr,
	}
	select {
	case h.events <- event:
	default:
		h.logger.Warn("Event buffer full, dropping expression event",
			zap.String("sessionID", sessionID),
			zap.String("questionID", expr.QuestionID))
	}
}

// Client is a middleman between one websocket connection and the hub
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	logger    *zap.Logger
}

// HandleWebSocket upgrades the connection and attaches it to the hub. The
// session_id query parameter scopes the subscription; absent means all
// sessions.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 64),
		sessionID: c.QueryParam("session_id"),
		logger:    logger,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump drains the connection until it closes. Subscribers do not send
// application messages; the read loop exists to process control frames and
// detect disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Feed connection closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps events from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("Feed write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
