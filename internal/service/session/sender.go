package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-speech-stream-client/internal/audio"
	"ai-speech-stream-client/internal/observability/logging"
	"ai-speech-stream-client/internal/observability/metrics"
	"ai-speech-stream-client/internal/protocol"
)

// SenderConfig holds the pacing and trailer parameters for outbound audio.
type SenderConfig struct {
	SampleRate   int
	FrameSamples int
	// RTF is the real-time factor. 1.0 paces at real time, values above
	// 1.0 send faster than real time.
	RTF float64
	// Silence travels in one-second units: each unit is a single Audio
	// frame holding SampleRate zero samples. LeadOutSeconds units go out
	// before the marker, flushing the model's internal buffer;
	// PostMarkerSeconds units follow it, giving the model time to emit
	// every result attributable to pre-marker audio. Both are protocol
	// constants tuned against the remote model; reducing them truncates
	// transcript tails.
	LeadOutSeconds    int
	PostMarkerSeconds int
	MarkerID          uint32
}

// Sender streams audio blocks over the connection at the configured pace
// and performs the end-of-stream trailer handshake exactly once.
type Sender struct {
	conn    Conn
	src     audio.Source
	cfg     SenderConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics

	// onDrain, when set, is invoked once when the sender stops reading
	// from the source and begins the trailer handshake.
	onDrain func()

	mu          sync.Mutex
	trailerSent bool
}

// NewSender creates a sender for one session.
func NewSender(conn Conn, src audio.Source, cfg SenderConfig, logger zerolog.Logger, m *metrics.Metrics) *Sender {
	return &Sender{
		conn:    conn,
		src:     src,
		cfg:     cfg,
		logger:  logging.WithComponent(logger, "sender"),
		metrics: m,
	}
}

// Run streams the source until exhaustion or cancellation, then performs
// the trailer handshake. The trailer runs even when ctx is already
// cancelled; cancellation decides when streaming stops, never whether the
// trailer is sent.
func (s *Sender) Run(ctx context.Context) error {
	// Lead-in: one second of silence so the model's look-back buffer is
	// populated before the first real sample. It is not paced and does
	// not count toward the pacing clock.
	if err := s.sendBlock(audio.Silence(s.cfg.SampleRate)); err != nil {
		s.trailer()
		return s.sendFailed(err)
	}

	start := time.Now()
	samplesSent := 0

	for {
		if ctx.Err() != nil {
			s.logger.Info().Msg("Cancelled, draining")
			break
		}

		block, err := s.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.logger.Info().Msg("Cancelled while waiting for audio, draining")
				break
			}
			s.trailer()
			return fmt.Errorf("read audio source: %w", err)
		}

		if err := s.sendBlock(block); err != nil {
			s.trailer()
			return s.sendFailed(err)
		}
		samplesSent += len(block)
		if s.metrics != nil {
			s.metrics.AudioSecondsSent.Add(float64(len(block)) / float64(s.cfg.SampleRate))
		}

		s.pace(ctx, start, samplesSent)
	}

	s.trailer()
	return nil
}

// pace suspends until the wall-clock instant at which samplesSent samples
// should have been on the wire. When already behind schedule it yields
// briefly instead of blocking, so a slow network never stalls the stream
// further.
func (s *Sender) pace(ctx context.Context, start time.Time, samplesSent int) {
	audioSeconds := float64(samplesSent) / float64(s.cfg.SampleRate)
	expected := start.Add(time.Duration(audioSeconds / s.cfg.RTF * float64(time.Second)))

	wait := time.Until(expected)
	if wait <= 0 {
		if s.metrics != nil {
			s.metrics.PacingLag.Observe(-wait.Seconds())
		}
		wait = time.Millisecond
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// trailer performs the end-of-stream handshake: lead-out silence, one
// marker, post-marker silence. It runs at most once per session and is
// deliberately independent of any context so a racing cancellation cannot
// truncate it. Write failures are logged and abandoned; by that point the
// connection is gone and there is nothing left to protect.
func (s *Sender) trailer() {
	s.mu.Lock()
	if s.trailerSent {
		s.mu.Unlock()
		return
	}
	s.trailerSent = true
	s.mu.Unlock()

	if s.onDrain != nil {
		s.onDrain()
	}

	s.logger.Debug().
		Int("leadOutSeconds", s.cfg.LeadOutSeconds).
		Int("postMarkerSeconds", s.cfg.PostMarkerSeconds).
		Msg("Sending trailer")

	for i := 0; i < s.cfg.LeadOutSeconds; i++ {
		if err := s.sendBlock(audio.Silence(s.cfg.SampleRate)); err != nil {
			s.logger.Warn().Err(err).Msg("Trailer lead-out interrupted")
			return
		}
	}

	data, err := protocol.Encode(protocol.Marker{ID: s.cfg.MarkerID})
	if err != nil {
		s.logger.Error().Err(err).Msg("Encode marker")
		return
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.logger.Warn().Err(err).Msg("Marker send failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordFrameSent(protocol.TypeMarker)
	}

	for i := 0; i < s.cfg.PostMarkerSeconds; i++ {
		if err := s.sendBlock(audio.Silence(s.cfg.SampleRate)); err != nil {
			s.logger.Warn().Err(err).Msg("Post-marker silence interrupted")
			return
		}
	}

	s.logger.Debug().Msg("Trailer complete")
}

// TrailerSent reports whether the trailer handshake has started.
func (s *Sender) TrailerSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trailerSent
}

func (s *Sender) sendBlock(pcm []float32) error {
	data, err := protocol.Encode(protocol.Audio{PCM: pcm})
	if err != nil {
		return fmt.Errorf("encode audio: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordFrameSent(protocol.TypeAudio)
	}
	return nil
}

// sendFailed maps a mid-stream write failure to the sender's result. A
// peer that already closed the connection is routine during shutdown and
// not an error; anything else is fatal.
func (s *Sender) sendFailed(err error) error {
	if isConnClosed(err) {
		s.logger.Info().Err(err).Msg("Connection closed during send")
		return nil
	}
	return fmt.Errorf("send audio: %w", err)
}

func isConnClosed(err error) bool {
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
