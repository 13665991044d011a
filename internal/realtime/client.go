package realtime

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/orbita-social/backend/internal/auth"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size
	maxMessageSize = 8192

	// Outbound frame buffer per connection
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one WebSocket connection bound to a single resolved user identity
// for its lifetime. Reconnection creates a new, independent Client.
type Client struct {
	id     string
	userID uint
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
}

// UserID returns the identity resolved at handshake
func (c *Client) UserID() uint { return c.userID }

// Enqueue hands a frame to the write pump, dropping it if the buffer is full
func (c *Client) Enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ServeWS authenticates the handshake and runs the connection's event loop.
// A connection without a valid credential is rejected before it ever enters
// the loop.
func ServeWS(hub *Hub, gateway *Gateway) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := handshakeToken(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing credential")
		}

		claims, err := auth.Verify(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credential")
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		client := &Client{
			id:     uuid.NewString(),
			userID: claims.UserID,
			conn:   conn,
			hub:    hub,
			send:   make(chan []byte, sendBufferSize),
		}
		log.Printf("user %d connected (%s)", client.userID, client.id)

		go client.writePump()
		client.readPump(gateway)
		return nil
	}
}

// handshakeToken extracts the bearer credential from the query string or the
// Authorization header
func handshakeToken(c echo.Context) string {
	if token := c.QueryParam("token"); token != "" {
		return token
	}
	authHeader := c.Request().Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func (c *Client) readPump(gateway *Gateway) {
	defer func() {
		c.hub.LeaveAll(c)
		close(c.send)
		c.conn.Close()
		log.Printf("user %d disconnected (%s)", c.userID, c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("read error for user %d: %v", c.userID, err)
			}
			return
		}
		gateway.Dispatch(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
