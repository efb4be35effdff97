package session

import "time"

// Conn is the subset of the websocket connection used by the sender,
// receiver and coordinator. *websocket.Conn satisfies it; tests use an
// in-memory implementation.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}
