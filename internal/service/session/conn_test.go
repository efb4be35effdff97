package session

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ai-speech-stream-client/internal/protocol"
)

type frame struct {
	msgType int
	data    []byte
}

// fakeConn is an in-memory Conn. Outbound frames are recorded with their
// write times; inbound frames are fed through a channel. With echoMarker
// set it behaves like the real endpoint and reflects any Marker frame it
// receives back to the reader.
type fakeConn struct {
	mu          sync.Mutex
	written     []frame
	writeTimes  []time.Time
	closeFrames int
	closed      bool

	inbound    chan frame
	closedCh   chan struct{}
	closeOnce  sync.Once
	echoMarker bool
	writeErr   error
	closeErr   error // read error after close, defaults to a 1000 close
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan frame, 256),
		closedCh: make(chan struct{}),
	}
}

func (c *fakeConn) WriteMessage(msgType int, data []byte) error {
	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	if c.closed {
		c.mu.Unlock()
		return net.ErrClosed
	}
	c.written = append(c.written, frame{msgType: msgType, data: append([]byte(nil), data...)})
	c.writeTimes = append(c.writeTimes, time.Now())
	echo := false
	if c.echoMarker && msgType == websocket.BinaryMessage {
		if msg, err := protocol.Decode(data); err == nil {
			_, echo = msg.(protocol.Marker)
		}
	}
	c.mu.Unlock()

	if echo {
		c.inbound <- frame{msgType: websocket.BinaryMessage, data: data}
	}
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	// Frames queued before the close are still delivered, like a real
	// connection's receive buffer.
	select {
	case f := <-c.inbound:
		return f.msgType, f.data, nil
	default:
	}
	select {
	case f := <-c.inbound:
		return f.msgType, f.data, nil
	case <-c.closedCh:
		c.mu.Lock()
		err := c.closeErr
		c.mu.Unlock()
		if err == nil {
			err = &websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "bye"}
		}
		return 0, nil, err
	}
}

func (c *fakeConn) WriteControl(msgType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msgType == websocket.CloseMessage {
		c.closeFrames++
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closedCh) })
	return nil
}

// push queues an inbound frame as the server would send it.
func (c *fakeConn) push(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		panic(err)
	}
	c.inbound <- frame{msgType: websocket.BinaryMessage, data: data}
}

func (c *fakeConn) pushRaw(msgType int, data []byte) {
	c.inbound <- frame{msgType: msgType, data: data}
}

// serverClose simulates the peer closing the connection.
func (c *fakeConn) serverClose() {
	c.closeOnce.Do(func() { close(c.closedCh) })
}

// sentTypes decodes every recorded binary frame and returns the sequence
// of wire type names.
func (c *fakeConn) sentTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var types []string
	for _, f := range c.written {
		if f.msgType != websocket.BinaryMessage {
			continue
		}
		msg, err := protocol.Decode(f.data)
		if err != nil {
			types = append(types, "invalid")
			continue
		}
		switch msg.(type) {
		case protocol.Audio:
			types = append(types, protocol.TypeAudio)
		case protocol.Word:
			types = append(types, protocol.TypeWord)
		case protocol.EndWord:
			types = append(types, protocol.TypeEndWord)
		case protocol.Step:
			types = append(types, protocol.TypeStep)
		case protocol.Marker:
			types = append(types, protocol.TypeMarker)
		}
	}
	return types
}

func (c *fakeConn) countType(name string) int {
	n := 0
	for _, t := range c.sentTypes() {
		if t == name {
			n++
		}
	}
	return n
}

func (c *fakeConn) closeFrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeFrames
}

// sliceSource yields a fixed sequence of blocks then io.EOF.
type sliceSource struct {
	blocks [][]float32
	next   int
}

func (s *sliceSource) Next(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.blocks) {
		return nil, io.EOF
	}
	b := s.blocks[s.next]
	s.next++
	return b, nil
}

func silenceBlocks(n, samples int) [][]float32 {
	blocks := make([][]float32, n)
	for i := range blocks {
		blocks[i] = make([]float32, samples)
	}
	return blocks
}

// blockingSource never yields a block; it waits until cancellation.
type blockingSource struct{}

func (blockingSource) Next(ctx context.Context) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
