package audio

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempWAV(t *testing.T, samples []float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := WriteWAVFile(path, samples, 24000); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestFileSource_Blocks(t *testing.T) {
	tests := []struct {
		name       string
		samples    int
		frame      int
		wantBlocks int
	}{
		{"exact multiple", 3840, 1920, 2},
		{"one short block", 100, 1920, 1},
		{"padding", 2000, 1920, 2},
		{"single sample", 1, 1920, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempWAV(t, make([]float32, tt.samples))
			src, err := NewFileSource(path, tt.frame, 24000)
			if err != nil {
				t.Fatalf("new source: %v", err)
			}
			if src.Blocks() != tt.wantBlocks {
				t.Errorf("Blocks() = %d, want %d", src.Blocks(), tt.wantBlocks)
			}

			ctx := context.Background()
			var got int
			for {
				block, err := src.Next(ctx)
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("next: %v", err)
				}
				if len(block) != tt.frame {
					t.Errorf("block %d has %d samples, want %d", got, len(block), tt.frame)
				}
				got++
			}
			if got != tt.wantBlocks {
				t.Errorf("yielded %d blocks, want %d", got, tt.wantBlocks)
			}
		})
	}
}

func TestFileSource_PadsFinalBlock(t *testing.T) {
	samples := make([]float32, 2000)
	for i := range samples {
		samples[i] = 0.5
	}
	src, err := NewFileSource(writeTempWAV(t, samples), 1920, 24000)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	ctx := context.Background()
	if _, err := src.Next(ctx); err != nil {
		t.Fatalf("first block: %v", err)
	}
	last, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("second block: %v", err)
	}

	if last[79] == 0 {
		t.Error("expected real audio in final block prefix")
	}
	for i := 80; i < len(last); i++ {
		if last[i] != 0 {
			t.Fatalf("expected zero padding at sample %d, got %v", i, last[i])
		}
	}
}

func TestFileSource_RejectsSampleRateMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := WriteWAVFile(path, make([]float32, 100), 16000); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	if _, err := NewFileSource(path, 1920, 24000); err == nil {
		t.Error("expected sample rate mismatch error")
	}
}

func TestFileSource_RejectsMissingFile(t *testing.T) {
	if _, err := NewFileSource(filepath.Join(t.TempDir(), "nope.wav"), 1920, 24000); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := os.Stat("nope.wav"); err == nil {
		t.Error("test should not create files")
	}
}

func TestCaptureSource_PushThenNext(t *testing.T) {
	src := NewCaptureSource(4)
	src.Push([]float32{1, 2, 3})

	block, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(block) != 3 || block[0] != 1 {
		t.Errorf("unexpected block %v", block)
	}
}

func TestCaptureSource_StopYieldsEOF(t *testing.T) {
	src := NewCaptureSource(4)
	src.Stop()
	src.Stop() // idempotent

	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Errorf("expected io.EOF after stop, got %v", err)
	}
}

func TestCaptureSource_PushAfterStopDropped(t *testing.T) {
	src := NewCaptureSource(4)
	src.Stop()
	src.Push([]float32{1})

	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestCaptureSource_FullQueueDrops(t *testing.T) {
	src := NewCaptureSource(2)
	src.Push([]float32{1})
	src.Push([]float32{2})
	src.Push([]float32{3}) // queue full, dropped

	if got := src.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestCaptureSource_NextHonorsContext(t *testing.T) {
	src := NewCaptureSource(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := src.Next(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
