package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-speech-stream-client/internal/audio"
	"ai-speech-stream-client/internal/observability/logging"
	"ai-speech-stream-client/internal/observability/metrics"
	"ai-speech-stream-client/internal/service/transcript"
)

// CloseReason is the reason text carried on the close frame. The remote
// endpoint expects this exact string.
const CloseReason = "client finished streaming"

// DefaultCloseTimeout bounds the close-frame write during shutdown.
const DefaultCloseTimeout = 5 * time.Second

// Config holds everything needed to run one streaming session.
type Config struct {
	Dial   DialConfig
	Sender SenderConfig

	// Pause indication. When ShowPauses is false no detector is wired
	// and Step frames are counted but otherwise ignored.
	ShowPauses     bool
	PauseHeadIndex int
	PauseThreshold float64

	CloseTimeout time.Duration
}

// Result carries what the session produced, partial or complete.
type Result struct {
	Transcript []transcript.Entry
	Audio      []float32
	// MarkerSeen is true when the server confirmed it processed all
	// audio sent before the trailer marker.
	MarkerSeen bool
	// Cancelled is true when the session ended because of external
	// cancellation rather than source exhaustion.
	Cancelled bool
}

// Session coordinates one streaming session: it owns the connection,
// runs the sender and receiver, and performs the close handshake exactly
// once no matter how the session ends.
type Session struct {
	cfg       Config
	events    Events
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	lifecycle *Lifecycle

	conn      Conn
	closeOnce sync.Once

	// dial is swapped out by tests.
	dial func(ctx context.Context) (Conn, error)
}

// New creates a session coordinator. events may be nil.
func New(id string, cfg Config, events Events, logger zerolog.Logger, m *metrics.Metrics) *Session {
	if events == nil {
		events = NopEvents
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}
	s := &Session{
		cfg:       cfg,
		events:    events,
		logger:    logging.WithSession(logger, id),
		metrics:   m,
		lifecycle: NewLifecycle(id),
	}
	s.dial = func(ctx context.Context) (Conn, error) {
		return Dial(ctx, s.cfg.Dial, s.logger)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.lifecycle.State() }

// advance moves the lifecycle forward. A rejected transition means the
// coordinator's bookkeeping is wrong somewhere; log it rather than lose it.
func (s *Session) advance(next State) {
	if err := s.lifecycle.Advance(next); err != nil {
		s.logger.Debug().Err(err).Stringer("state", next).Msg("Lifecycle transition rejected")
	}
}

// Run connects and streams src until exhaustion or cancellation, then
// drains and closes. It returns the partial result alongside any error;
// on external cancellation the error satisfies errors.Is(err,
// context.Canceled) and the result holds everything received up to the
// drain.
func (s *Session) Run(ctx context.Context, src audio.Source) (*Result, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordSessionStart()
	}

	outcome := metrics.OutcomeFailed
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordSessionEnd(outcome, time.Since(start).Seconds())
		}
	}()

	conn, err := s.dial(ctx)
	if err != nil {
		s.advance(StateClosed)
		return nil, err
	}
	s.conn = conn
	// The close handshake runs on every exit path, exactly once.
	defer s.close()

	s.advance(StateStreaming)

	var pauses *transcript.PauseDetector
	if s.cfg.ShowPauses {
		pauses = transcript.NewPauseDetector(s.cfg.PauseHeadIndex, s.cfg.PauseThreshold)
	}

	snd := NewSender(conn, src, s.cfg.Sender, s.logger, s.metrics)
	snd.onDrain = func() { s.advance(StateDraining) }
	rcv := NewReceiver(conn, s.events, pauses, s.cfg.Sender.SampleRate, s.logger, s.metrics)

	// The sender gets its own context so a fatal receive error stops
	// the outbound stream without waiting for the source to run dry.
	senderCtx, stopSender := context.WithCancel(ctx)
	defer stopSender()

	sendErrCh := make(chan error, 1)
	recvErrCh := make(chan error, 1)
	go func() { sendErrCh <- snd.Run(senderCtx) }()
	go func() { recvErrCh <- rcv.Run() }()

	var sendErr, recvErr error
	sendDone, recvDone := false, false
	cancelWatch := ctx.Done()
	for !sendDone || !recvDone {
		select {
		case <-cancelWatch:
			// Latch cancellation, then keep waiting: the sender still
			// owes the trailer and the receiver still owes the marker
			// echo it triggers.
			s.lifecycle.Cancel()
			cancelWatch = nil
		case sendErr = <-sendErrCh:
			sendDone = true
		case recvErr = <-recvErrCh:
			recvDone = true
			if recvErr != nil {
				stopSender()
			}
		}
	}

	s.advance(StateDraining)
	s.advance(StateClosing)
	s.close()
	s.advance(StateClosed)

	result := &Result{
		Transcript: rcv.Transcript(),
		Audio:      rcv.Audio(),
		MarkerSeen: rcv.MarkerSeen(),
		Cancelled:  s.lifecycle.Cancelled(),
	}

	switch {
	case recvErr != nil:
		return result, recvErr
	case sendErr != nil:
		return result, sendErr
	case ctx.Err() != nil:
		outcome = metrics.OutcomeCancelled
		return result, ctx.Err()
	default:
		outcome = metrics.OutcomeSucceeded
		s.logger.Info().
			Int("words", len(result.Transcript)).
			Bool("markerSeen", result.MarkerSeen).
			Dur("duration", time.Since(start)).
			Msg("Session complete")
		return result, nil
	}
}

// close sends the close frame with the fixed reason and releases the
// connection. Independent of any context, and idempotent.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(s.cfg.CloseTimeout)
		frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, CloseReason)
		if err := s.conn.WriteControl(websocket.CloseMessage, frame, deadline); err != nil && !isConnClosed(err) {
			s.logger.Debug().Err(err).Msg("Close frame send failed")
		}
		if err := s.conn.Close(); err != nil && !isConnClosed(err) {
			s.logger.Debug().Err(err).Msg("Connection close failed")
		}
		s.logger.Debug().Msg("Connection closed")
	})
}
