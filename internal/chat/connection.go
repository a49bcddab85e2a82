package chat

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/teris-io/shortid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Transport is the engine-facing view of the realtime channel.
type Transport interface {
	Events() <-chan *Envelope
	Emit(event string, data any) error
	Close() error
}

// Emitter is the subset of Transport needed to push events upstream.
type Emitter interface {
	Emit(event string, data any) error
}

// Connection owns a websocket channel for one identity. Inbound frames are
// decoded by a single read pump and delivered in arrival order on Events;
// the channel is closed when the transport goes away. Outbound frames pass
// through a buffered queue drained by a write pump with ping keepalive.
type Connection struct {
	conn      *websocket.Conn
	log       *log.Logger
	send      chan *Envelope
	events    chan *Envelope
	stop      chan struct{}
	closeOnce sync.Once
}

// Dial opens the channel for identity and announces presence with a join
// event. The returned connection is live until Close.
func Dial(serverURL, token string, identity types.Identity, logger *log.Logger) (*Connection, error) {
	if identity.Id == "" {
		return nil, NewConnectionError("missing identity", nil)
	}

	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return nil, NewConnectionError("invalid server url", err)
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return nil, NewConnectionError("dial "+wsURL, err)
	}

	c := &Connection{
		conn:   conn,
		log:    logger,
		send:   make(chan *Envelope, 256),
		events: make(chan *Envelope, 256),
		stop:   make(chan struct{}),
	}

	go c.readPump()
	go c.writePump()

	if err := c.Emit(EventJoin, JoinPayload{
		UserId:   identity.Id,
		Username: identity.Username,
	}); err != nil {
		c.Close()
		return nil, NewConnectionError("announce presence", err)
	}

	return c, nil
}

// websocketURL rewrites an http(s) base URL to its ws(s) /ws endpoint.
func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Events exposes the inbound event stream. Closed when the channel is torn
// down; no events are delivered after that.
func (c *Connection) Events() <-chan *Envelope {
	return c.events
}

// Emit queues an outbound event. Fails without blocking if the queue is
// full or the connection is closed.
func (c *Connection) Emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return NewConnectionError("serialize "+event, err)
	}

	env := &Envelope{
		Event: event,
		Data:  raw,
	}
	if id, err := shortid.Generate(); err == nil {
		env.Id = id
	}

	select {
	case <-c.stop:
		return NewConnectionError("connection closed", nil)
	default:
	}

	select {
	case c.send <- env:
	default:
		c.log.Printf("send queue full, dropping %q event", event)
		return NewConnectionError("send queue full", nil)
	}

	return nil
}

func (c *Connection) readPump() {
	defer func() {
		c.conn.Close()
		close(c.events)
		c.log.Println("read pump exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Println("dropping frame:", NewMalformedEventError("", err))
			continue
		}

		select {
		case c.events <- &env:
		case <-c.stop:
			return
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write pump exiting")
	}()

	for {
		select {
		case env := <-c.send:
			bytes, err := json.Marshal(env)
			if err != nil {
				c.log.Println("failed to serialize envelope:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Connection) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// Close tears down both pumps and the underlying socket. Idempotent.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.conn.Close()
	})

	return nil
}
