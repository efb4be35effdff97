// Package protocol implements the wire codec for the speech streaming
// endpoint: self-describing msgpack maps keyed by field name, with a "type"
// tag selecting the message variant.
package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Message type tags as they appear on the wire.
const (
	TypeAudio   = "Audio"
	TypeWord    = "Word"
	TypeEndWord = "EndWord"
	TypeStep    = "Step"
	TypeMarker  = "Marker"
)

// StepHeads is the number of pause-prediction heads carried by a Step
// message. The heads predict pauses of 0.5s, 1.0s, 2.0s and 3.0s.
const StepHeads = 4

// Decode errors. Both are fatal for the session that received the frame.
var (
	// ErrUnknownType is returned when the "type" field names a variant
	// this client does not understand.
	ErrUnknownType = errors.New("protocol: unknown message type")

	// ErrMalformed is returned for frames that are not structurally valid
	// msgpack maps, or whose fields violate the variant's shape.
	ErrMalformed = errors.New("protocol: malformed message")
)

// Message is one wire frame, either direction.
type Message interface {
	messageType() string
}

// Audio carries one block of mono float32 PCM samples.
type Audio struct {
	PCM []float32
}

// Word opens a transcript entry at StartTime (seconds of audio time).
type Word struct {
	Text      string
	StartTime float64
}

// EndWord closes the most recently opened transcript entry.
type EndWord struct {
	StopTime float64
}

// Step reports the semantic VAD pause probabilities, one per head.
// Only sent when the remote model exposes semantic VAD.
type Step struct {
	Prs []float64
}

// Marker is the end-of-stream sentinel. The server echoes it back once all
// audio sent before it has been processed.
type Marker struct {
	ID uint32
}

func (Audio) messageType() string   { return TypeAudio }
func (Word) messageType() string    { return TypeWord }
func (EndWord) messageType() string { return TypeEndWord }
func (Step) messageType() string    { return TypeStep }
func (Marker) messageType() string  { return TypeMarker }

// Wire envelopes. Field names are part of the protocol and must not change.
type audioWire struct {
	Type string    `msgpack:"type"`
	PCM  []float32 `msgpack:"pcm"`
}

type wordWire struct {
	Type      string  `msgpack:"type"`
	Text      string  `msgpack:"text"`
	StartTime float64 `msgpack:"start_time"`
}

type endWordWire struct {
	Type     string  `msgpack:"type"`
	StopTime float64 `msgpack:"stop_time"`
}

type stepWire struct {
	Type string    `msgpack:"type"`
	Prs  []float64 `msgpack:"prs"`
}

type markerWire struct {
	Type string `msgpack:"type"`
	ID   uint32 `msgpack:"id"`
}

// Encode serializes a message to its wire form.
func Encode(m Message) ([]byte, error) {
	var wire any
	switch v := m.(type) {
	case Audio:
		wire = audioWire{Type: TypeAudio, PCM: v.PCM}
	case Word:
		wire = wordWire{Type: TypeWord, Text: v.Text, StartTime: v.StartTime}
	case EndWord:
		wire = endWordWire{Type: TypeEndWord, StopTime: v.StopTime}
	case Step:
		wire = stepWire{Type: TypeStep, Prs: v.Prs}
	case Marker:
		wire = markerWire{Type: TypeMarker, ID: v.ID}
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", m)
	}

	b, err := msgpack.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.messageType(), err)
	}
	return b, nil
}

// Decode parses one wire frame. Unrecognized "type" values yield
// ErrUnknownType; structurally invalid payloads yield ErrMalformed.
func Decode(data []byte) (Message, error) {
	var probe struct {
		Type string `msgpack:"type"`
	}
	if err := msgpack.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch probe.Type {
	case TypeAudio:
		var w audioWire
		if err := msgpack.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, probe.Type, err)
		}
		return Audio{PCM: w.PCM}, nil

	case TypeWord:
		var w wordWire
		if err := msgpack.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, probe.Type, err)
		}
		return Word{Text: w.Text, StartTime: w.StartTime}, nil

	case TypeEndWord:
		var w endWordWire
		if err := msgpack.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, probe.Type, err)
		}
		return EndWord{StopTime: w.StopTime}, nil

	case TypeStep:
		var w stepWire
		if err := msgpack.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, probe.Type, err)
		}
		if len(w.Prs) != StepHeads {
			return nil, fmt.Errorf("%w: Step carries %d heads, expected %d",
				ErrMalformed, len(w.Prs), StepHeads)
		}
		return Step{Prs: w.Prs}, nil

	case TypeMarker:
		var w markerWire
		if err := msgpack.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, probe.Type, err)
		}
		return Marker{ID: w.ID}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type field", ErrMalformed)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, probe.Type)
	}
}
