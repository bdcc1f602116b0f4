// Package transport provides the streaming connection used by feeds.
package transport

import "context"

// Conn is a message-oriented streaming connection.
//
// ReadMessage blocks until a message arrives or the connection fails. Close
// unblocks a pending ReadMessage and may be called from any goroutine.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens streaming connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}
