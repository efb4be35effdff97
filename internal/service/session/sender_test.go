package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-stream-client/internal/protocol"
)

func fastSenderConfig() SenderConfig {
	return SenderConfig{
		SampleRate:        24000,
		FrameSamples:      1920,
		RTF:               1000, // effectively unpaced
		LeadOutSeconds:    3,
		PostMarkerSeconds: 5,
		MarkerID:          0,
	}
}

func TestSenderFrameCount(t *testing.T) {
	// A source of N blocks must produce exactly
	// 1 lead-in + N + leadOut + 1 marker + postMarker frames, in order.
	const n = 4
	cfg := fastSenderConfig()
	conn := newFakeConn()
	src := &sliceSource{blocks: silenceBlocks(n, cfg.FrameSamples)}

	s := NewSender(conn, src, cfg, zerolog.Nop(), nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	types := conn.sentTypes()
	wantTotal := 1 + n + cfg.LeadOutSeconds + 1 + cfg.PostMarkerSeconds
	if len(types) != wantTotal {
		t.Fatalf("expected %d frames, got %d", wantTotal, len(types))
	}

	markerIndex := 1 + n + cfg.LeadOutSeconds
	for i, typ := range types {
		want := protocol.TypeAudio
		if i == markerIndex {
			want = protocol.TypeMarker
		}
		if typ != want {
			t.Errorf("frame %d: expected %s, got %s", i, want, typ)
		}
	}
}

func TestSenderTrailerRunsOnCancellation(t *testing.T) {
	cfg := fastSenderConfig()
	conn := newFakeConn()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSender(conn, blockingSource{}, cfg, zerolog.Nop(), nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not finish after cancellation")
	}

	if got := conn.countType(protocol.TypeMarker); got != 1 {
		t.Errorf("expected exactly 1 marker, got %d", got)
	}
	// Lead-in plus the full trailer, even though no source block was sent.
	wantAudio := 1 + cfg.LeadOutSeconds + cfg.PostMarkerSeconds
	if got := conn.countType(protocol.TypeAudio); got != wantAudio {
		t.Errorf("expected %d audio frames, got %d", wantAudio, got)
	}
	if !s.TrailerSent() {
		t.Error("expected trailer-sent flag")
	}
}

func TestSenderTrailerIdempotent(t *testing.T) {
	cfg := fastSenderConfig()
	conn := newFakeConn()
	src := &sliceSource{blocks: silenceBlocks(2, cfg.FrameSamples)}

	s := NewSender(conn, src, cfg, zerolog.Nop(), nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	before := len(conn.sentTypes())
	s.trailer()
	s.trailer()
	if after := len(conn.sentTypes()); after != before {
		t.Errorf("re-invoking trailer sent %d extra frames", after-before)
	}
	if got := conn.countType(protocol.TypeMarker); got != 1 {
		t.Errorf("expected exactly 1 marker, got %d", got)
	}
}

func TestSenderClosedConnectionNotFatal(t *testing.T) {
	cfg := fastSenderConfig()
	conn := newFakeConn()
	conn.Close()

	src := &sliceSource{blocks: silenceBlocks(2, cfg.FrameSamples)}
	s := NewSender(conn, src, cfg, zerolog.Nop(), nil)

	if err := s.Run(context.Background()); err != nil {
		t.Errorf("send on closed connection should not be fatal, got %v", err)
	}
}

func TestSenderSourceErrorFatal(t *testing.T) {
	cfg := fastSenderConfig()
	conn := newFakeConn()
	src := &errorSource{err: errors.New("device gone")}

	s := NewSender(conn, src, cfg, zerolog.Nop(), nil)
	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from failing source")
	}
	// The trailer still runs so the server flushes what it got.
	if got := conn.countType(protocol.TypeMarker); got != 1 {
		t.Errorf("expected 1 marker after source failure, got %d", got)
	}
}

func TestSenderPacingRealTime(t *testing.T) {
	if testing.Short() {
		t.Skip("pacing test sleeps on a real clock")
	}

	// 100ms blocks at rtf 1.0: 5 source blocks should take about 500ms
	// of schedule. The lead-in and trailer are unpaced.
	cfg := SenderConfig{
		SampleRate:        24000,
		FrameSamples:      2400,
		RTF:               1.0,
		LeadOutSeconds:    1,
		PostMarkerSeconds: 1,
	}
	conn := newFakeConn()
	src := &sliceSource{blocks: silenceBlocks(5, cfg.FrameSamples)}

	start := time.Now()
	s := NewSender(conn, src, cfg, zerolog.Nop(), nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 450*time.Millisecond {
		t.Errorf("sender ran ahead of the pacing schedule: %v", elapsed)
	}
	if elapsed > 800*time.Millisecond {
		t.Errorf("sender fell too far behind schedule: %v", elapsed)
	}
}

type errorSource struct {
	err error
}

func (s *errorSource) Next(ctx context.Context) ([]float32, error) {
	return nil, s.err
}
