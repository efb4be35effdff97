// Package audio provides the audio sources consumed by the streaming
// session: a finite WAV file reader and a live capture queue, both yielding
// fixed-size blocks of mono float32 samples.
package audio

import "context"

// Source yields fixed-size blocks of mono float32 samples. Next returns
// io.EOF when the source is exhausted (file fully read, or live capture
// stopped). Blocks are owned by the caller and never mutated afterwards.
type Source interface {
	Next(ctx context.Context) ([]float32, error)
}

// Silence returns a block of n zero samples.
func Silence(n int) []float32 {
	return make([]float32, n)
}
