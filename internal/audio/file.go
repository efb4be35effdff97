package audio

import (
	"context"
	"fmt"
	"io"
)

// FileSource yields the contents of a WAV file as fixed-size blocks.
// The final block is zero-padded to the block size so every block the
// sender emits has the same duration.
type FileSource struct {
	samples      []float32
	frameSamples int
	pos          int
}

// NewFileSource loads path and prepares block iteration. The file's sample
// rate must match wantRate: this client does not resample.
func NewFileSource(path string, frameSamples, wantRate int) (*FileSource, error) {
	if frameSamples <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSamples)
	}

	samples, rate, err := ReadWAVFile(path)
	if err != nil {
		return nil, err
	}
	if rate != wantRate {
		return nil, fmt.Errorf("sample rate mismatch: file is %d Hz, endpoint expects %d Hz", rate, wantRate)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("audio file contains no samples")
	}

	return &FileSource{samples: samples, frameSamples: frameSamples}, nil
}

// Len returns the total number of samples in the file.
func (s *FileSource) Len() int { return len(s.samples) }

// Blocks returns the number of blocks Next will yield.
func (s *FileSource) Blocks() int {
	return (len(s.samples) + s.frameSamples - 1) / s.frameSamples
}

// Next returns the next block, or io.EOF once the file is exhausted.
func (s *FileSource) Next(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}

	end := s.pos + s.frameSamples
	block := make([]float32, s.frameSamples)
	if end > len(s.samples) {
		end = len(s.samples)
	}
	copy(block, s.samples[s.pos:end])
	s.pos = end
	return block, nil
}
