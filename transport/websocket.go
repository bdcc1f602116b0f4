package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketConfig configures WebSocket connection behavior.
type WebsocketConfig struct {
	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration
	// ReadTimeout is the longest silence tolerated before a read fails.
	// Pings and pongs from the server extend it.
	ReadTimeout time.Duration
	// WriteTimeout bounds each write.
	WriteTimeout time.Duration
}

// DefaultWebsocketConfig returns default WebSocket configuration.
func DefaultWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      90 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// WebsocketDialer implements Dialer using gorilla/websocket.
type WebsocketDialer struct {
	config WebsocketConfig
	dialer *websocket.Dialer
}

// NewWebsocketDialer creates a dialer. A nil config selects the defaults.
func NewWebsocketDialer(config *WebsocketConfig) *WebsocketDialer {
	cfg := DefaultWebsocketConfig()
	if config != nil {
		cfg = *config
	}
	return &WebsocketDialer{
		config: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            websocket.DefaultDialer.Proxy,
		},
	}
}

// Dial establishes a WebSocket connection to url.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &wsConn{conn: conn, config: d.config}
	c.extendReadDeadline()

	conn.SetPingHandler(func(appData string) error {
		c.extendReadDeadline()
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(d.config.WriteTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
	return c, nil
}

type wsConn struct {
	conn   *websocket.Conn
	config WebsocketConfig

	// gorilla allows one concurrent writer; heartbeats and subscribes share it.
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) extendReadDeadline() {
	if c.config.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.extendReadDeadline()
	return msg, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

var _ Dialer = (*WebsocketDialer)(nil)
