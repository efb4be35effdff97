package session

import (
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-speech-stream-client/internal/observability/logging"
	"ai-speech-stream-client/internal/observability/metrics"
	"ai-speech-stream-client/internal/protocol"
	"ai-speech-stream-client/internal/service/transcript"
)

// Events receives live notifications as the session progresses. Words are
// delivered the moment they open, before their stop time is known.
type Events interface {
	OnWord(e transcript.Entry)
	OnPause()
	OnAudio(pcm []float32)
}

type nopEvents struct{}

func (nopEvents) OnWord(transcript.Entry) {}
func (nopEvents) OnPause()                {}
func (nopEvents) OnAudio([]float32)       {}

// NopEvents is an Events implementation that discards everything.
var NopEvents Events = nopEvents{}

// Receiver consumes inbound frames, assembling the transcript and audio
// timeline, until it observes the marker echo or the connection closes.
type Receiver struct {
	conn       Conn
	events     Events
	sampleRate int
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	builder    transcript.Builder
	pauses     *transcript.PauseDetector
	pcm        []float32
	markerSeen bool
}

// NewReceiver creates a receiver for one session. pauses may be nil when
// pause indication is disabled; events may be nil.
func NewReceiver(conn Conn, events Events, pauses *transcript.PauseDetector, sampleRate int, logger zerolog.Logger, m *metrics.Metrics) *Receiver {
	if events == nil {
		events = NopEvents
	}
	return &Receiver{
		conn:       conn,
		events:     events,
		sampleRate: sampleRate,
		logger:     logging.WithComponent(logger, "receiver"),
		metrics:    m,
		pauses:     pauses,
	}
}

// Run reads frames until the marker echo arrives (nil), the peer closes
// the connection (nil, with MarkerSeen reporting false), or a receive or
// decode failure occurs (error). It returns promptly when the coordinator
// closes the connection out from under it.
func (r *Receiver) Run() error {
	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			// Any close, whatever the code, ends the session with the
			// partial result; losing the tail of a transcript to a
			// server restart is worse than losing the close code.
			if isConnClosed(err) {
				r.logger.Info().Err(err).Msg("Connection closed before marker echo")
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			r.logger.Debug().Int("messageType", msgType).Msg("Ignoring non-binary frame")
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}

		done, err := r.handle(msg)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (r *Receiver) handle(msg protocol.Message) (done bool, err error) {
	switch v := msg.(type) {
	case protocol.Audio:
		r.record(protocol.TypeAudio)
		r.pcm = append(r.pcm, v.PCM...)
		if r.metrics != nil {
			r.metrics.AudioSecondsReceived.Add(float64(len(v.PCM)) / float64(r.sampleRate))
		}
		r.events.OnAudio(v.PCM)

	case protocol.Word:
		r.record(protocol.TypeWord)
		if r.pauses != nil {
			r.pauses.Speech()
		}
		entry := r.builder.Word(v.Text, v.StartTime)
		if r.metrics != nil {
			r.metrics.RecordWord()
		}
		r.events.OnWord(entry)

	case protocol.EndWord:
		r.record(protocol.TypeEndWord)
		if !r.builder.EndWord(v.StopTime) {
			r.logger.Debug().Float64("stopTime", v.StopTime).Msg("EndWord without open word, ignoring")
		}

	case protocol.Step:
		r.record(protocol.TypeStep)
		if r.pauses != nil && r.pauses.Step(v.Prs) {
			if r.metrics != nil {
				r.metrics.RecordPause()
			}
			r.events.OnPause()
		}

	case protocol.Marker:
		r.record(protocol.TypeMarker)
		r.logger.Debug().Uint32("id", v.ID).Msg("Marker echo received")
		r.markerSeen = true
		return true, nil

	default:
		return false, fmt.Errorf("unhandled message %T", msg)
	}
	return false, nil
}

func (r *Receiver) record(msgType string) {
	if r.metrics != nil {
		r.metrics.RecordFrameReceived(msgType)
	}
}

// MarkerSeen reports whether the marker echo arrived before the
// connection closed.
func (r *Receiver) MarkerSeen() bool { return r.markerSeen }

// Transcript returns the entries assembled so far.
func (r *Receiver) Transcript() []transcript.Entry { return r.builder.Entries() }

// Audio returns the concatenated audio timeline received so far.
func (r *Receiver) Audio() []float32 { return r.pcm }
