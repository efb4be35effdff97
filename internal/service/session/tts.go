package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-speech-stream-client/internal/observability/logging"
	"ai-speech-stream-client/internal/observability/metrics"
)

// textEOS terminates the word stream on a text-to-speech session.
const textEOS = "\x00"

// TTSConfig holds the parameters for one text-to-speech session.
type TTSConfig struct {
	Dial         DialConfig
	SampleRate   int
	CloseTimeout time.Duration
}

// TTS runs a text-to-speech session: words go out as text frames, audio
// comes back as binary frames until the server closes the stream.
type TTS struct {
	cfg     TTSConfig
	events  Events
	logger  zerolog.Logger
	metrics *metrics.Metrics

	conn      Conn
	closeOnce sync.Once

	// dial is swapped out by tests.
	dial func(ctx context.Context) (Conn, error)
}

// NewTTS creates a text-to-speech session. events may be nil.
func NewTTS(id string, cfg TTSConfig, events Events, logger zerolog.Logger, m *metrics.Metrics) *TTS {
	if events == nil {
		events = NopEvents
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}
	t := &TTS{
		cfg:     cfg,
		events:  events,
		logger:  logging.WithSession(logger, id),
		metrics: m,
	}
	t.dial = func(ctx context.Context) (Conn, error) {
		return Dial(ctx, t.cfg.Dial, t.logger)
	}
	return t
}

// Run sends the words followed by the end-of-stream terminator, then
// collects synthesized audio until the server finishes.
func (t *TTS) Run(ctx context.Context, words []string) (*Result, error) {
	start := time.Now()
	if t.metrics != nil {
		t.metrics.RecordSessionStart()
	}
	outcome := metrics.OutcomeFailed
	defer func() {
		if t.metrics != nil {
			t.metrics.RecordSessionEnd(outcome, time.Since(start).Seconds())
		}
	}()

	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	defer t.close()

	rcv := NewReceiver(conn, t.events, nil, t.cfg.SampleRate, t.logger, t.metrics)
	recvErrCh := make(chan error, 1)
	go func() { recvErrCh <- rcv.Run() }()

	sendErr := t.sendWords(ctx, words)

	var recvErr error
	select {
	case recvErr = <-recvErrCh:
	case <-ctx.Done():
		// Unblock the receiver, then collect it.
		t.close()
		recvErr = <-recvErrCh
	}

	result := &Result{
		Audio:      rcv.Audio(),
		Transcript: rcv.Transcript(),
		MarkerSeen: rcv.MarkerSeen(),
		Cancelled:  ctx.Err() != nil,
	}

	switch {
	case sendErr != nil:
		return result, sendErr
	case recvErr != nil:
		return result, recvErr
	case ctx.Err() != nil:
		outcome = metrics.OutcomeCancelled
		return result, ctx.Err()
	default:
		outcome = metrics.OutcomeSucceeded
		t.logger.Info().
			Int("samples", len(result.Audio)).
			Dur("duration", time.Since(start)).
			Msg("Synthesis complete")
		return result, nil
	}
}

func (t *TTS) sendWords(ctx context.Context, words []string) error {
	for _, w := range words {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := t.conn.WriteMessage(websocket.TextMessage, []byte(w)); err != nil {
			if isConnClosed(err) {
				t.logger.Info().Err(err).Msg("Connection closed during word send")
				return nil
			}
			return fmt.Errorf("send word: %w", err)
		}
	}
	// The terminator goes out even when cancelled mid-stream so the
	// server flushes whatever it already synthesized.
	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(textEOS)); err != nil && !isConnClosed(err) {
		return fmt.Errorf("send end of stream: %w", err)
	}
	return nil
}

func (t *TTS) close() {
	t.closeOnce.Do(func() {
		deadline := time.Now().Add(t.cfg.CloseTimeout)
		frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, CloseReason)
		if err := t.conn.WriteControl(websocket.CloseMessage, frame, deadline); err != nil && !isConnClosed(err) {
			t.logger.Debug().Err(err).Msg("Close frame send failed")
		}
		if err := t.conn.Close(); err != nil && !isConnClosed(err) {
			t.logger.Debug().Err(err).Msg("Connection close failed")
		}
	})
}
