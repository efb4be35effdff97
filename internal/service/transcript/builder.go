// Package transcript reconstructs a time-stamped transcript from the
// incremental Word/EndWord stream emitted by the speech model.
package transcript

// Entry is one recognized word with its audio-time span. An entry whose
// StopTime equals its StartTime is still open: no EndWord for it has
// arrived yet.
type Entry struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	StopTime  float64 `json:"stopTime"`
}

// Open reports whether the entry has not been closed by an EndWord.
func (e Entry) Open() bool { return e.StopTime == e.StartTime }

// Builder accumulates transcript entries. It is cursor state owned by the
// receiving goroutine and is not safe for concurrent use.
//
// Invariant: at most one entry is open at any time. A Word opens a new
// entry; the next EndWord closes it. An EndWord with no open entry is
// tolerated as a no-op rather than treated as a protocol error.
type Builder struct {
	entries []Entry
	hasOpen bool
}

// Word opens a new entry starting at start seconds.
func (b *Builder) Word(text string, start float64) Entry {
	e := Entry{Text: text, StartTime: start, StopTime: start}
	b.entries = append(b.entries, e)
	b.hasOpen = true
	return e
}

// EndWord closes the open entry, if any. Returns false for the no-op case.
func (b *Builder) EndWord(stop float64) bool {
	if !b.hasOpen || len(b.entries) == 0 {
		return false
	}
	b.entries[len(b.entries)-1].StopTime = stop
	b.hasOpen = false
	return true
}

// Len returns the number of entries so far.
func (b *Builder) Len() int { return len(b.entries) }

// Entries returns the accumulated transcript. The returned slice is a copy;
// the builder remains usable afterwards.
func (b *Builder) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Text returns all words joined by single spaces.
func (b *Builder) Text() string {
	var n int
	for _, e := range b.entries {
		n += len(e.Text) + 1
	}
	if n == 0 {
		return ""
	}

	buf := make([]byte, 0, n-1)
	for i, e := range b.entries {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, e.Text...)
	}
	return string(buf)
}
