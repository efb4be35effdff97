// Package models defines the data structures for transcript events.
package models

// EventTypeWord labels per-word events; EventTypeFinal labels the
// end-of-session transcript event.
const (
	EventTypeWord  = "transcript.word"
	EventTypeFinal = "transcript.final"
)

// WordEvent represents a single recognized word, emitted as soon as the
// word opens. StopTime is zero while the word is still open.
type WordEvent struct {
	EventType string  `json:"eventType"`
	SessionID string  `json:"sessionId"`
	Timestamp int64   `json:"timestamp"`
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	StopTime  float64 `json:"stopTime,omitempty"`
}

// FinalEvent represents the complete transcript of a finished session.
type FinalEvent struct {
	EventType       string  `json:"eventType"`
	SessionID       string  `json:"sessionId"`
	Timestamp       int64   `json:"timestamp"`
	Text            string  `json:"text"`
	WordCount       int     `json:"wordCount"`
	DurationSeconds float64 `json:"durationSeconds"`
	MarkerSeen      bool    `json:"markerSeen"`
	Cancelled       bool    `json:"cancelled"`
}
