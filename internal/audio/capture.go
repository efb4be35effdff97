package audio

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// CaptureSource adapts a live capture callback to the Source interface.
// The capture device's callback thread calls Push; the session's sender
// goroutine calls Next. The bounded channel between them is the only
// cross-thread boundary in a live session.
type CaptureSource struct {
	blocks  chan []float32
	stopped chan struct{}
	stop    sync.Once
	dropped atomic.Uint64
}

// NewCaptureSource creates a capture source with room for capacity queued
// blocks. A capacity of a few seconds of audio absorbs scheduling jitter
// without letting a stalled session hold unbounded memory.
func NewCaptureSource(capacity int) *CaptureSource {
	if capacity <= 0 {
		capacity = 1
	}
	return &CaptureSource{
		blocks:  make(chan []float32, capacity),
		stopped: make(chan struct{}),
	}
}

// Push hands one block from the capture callback to the session. It never
// blocks: the callback runs on the device's thread and must return promptly.
// Blocks pushed after Stop, or while the queue is full, are dropped.
func (s *CaptureSource) Push(block []float32) {
	select {
	case <-s.stopped:
		return
	default:
	}

	select {
	case s.blocks <- block:
	default:
		s.dropped.Add(1)
	}
}

// Stop ends the stream. Queued blocks are discarded: once the user asks to
// stop, stale audio would only delay the trailer handshake. Idempotent.
func (s *CaptureSource) Stop() {
	s.stop.Do(func() { close(s.stopped) })
}

// Dropped reports how many blocks were discarded because the queue was full.
func (s *CaptureSource) Dropped() uint64 { return s.dropped.Load() }

// Next returns the next captured block, blocking until one arrives, the
// source is stopped (io.EOF), or ctx is done.
func (s *CaptureSource) Next(ctx context.Context) ([]float32, error) {
	select {
	case <-s.stopped:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	case block := <-s.blocks:
		return block, nil
	}
}
