// Package schema validates transcript events before they are published.
package schema

import (
	"errors"
	"fmt"

	"ai-speech-stream-client/internal/models"
)

var (
	ErrMissingSessionID = errors.New("event has no sessionId")
	ErrMissingEventType = errors.New("event has no eventType")
	ErrBadTimeRange     = errors.New("stopTime precedes startTime")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the structural invariants of an outbound event.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.WordEvent:
		return v.validateWord(e)
	case *models.WordEvent:
		return v.validateWord(*e)
	case models.FinalEvent:
		return v.validateFinal(e)
	case *models.FinalEvent:
		return v.validateFinal(*e)
	default:
		return fmt.Errorf("unknown event type %T", event)
	}
}

func (v *Validator) validateWord(e models.WordEvent) error {
	if e.EventType != models.EventTypeWord {
		return fmt.Errorf("%w: got %q", ErrMissingEventType, e.EventType)
	}
	if e.SessionID == "" {
		return ErrMissingSessionID
	}
	if e.StopTime != 0 && e.StopTime < e.StartTime {
		return fmt.Errorf("%w: start=%f stop=%f", ErrBadTimeRange, e.StartTime, e.StopTime)
	}
	return nil
}

func (v *Validator) validateFinal(e models.FinalEvent) error {
	if e.EventType != models.EventTypeFinal {
		return fmt.Errorf("%w: got %q", ErrMissingEventType, e.EventType)
	}
	if e.SessionID == "" {
		return ErrMissingSessionID
	}
	if e.DurationSeconds < 0 {
		return fmt.Errorf("negative duration %f", e.DurationSeconds)
	}
	return nil
}
