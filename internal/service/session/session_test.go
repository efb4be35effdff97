package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-speech-stream-client/internal/observability/metrics"
	"ai-speech-stream-client/internal/protocol"
)

func testSession(conn Conn) *Session {
	cfg := Config{
		Sender:       fastSenderConfig(),
		CloseTimeout: time.Second,
	}
	s := New("sess-test", cfg, nil, zerolog.Nop(), nil)
	s.dial = func(context.Context) (Conn, error) { return conn, nil }
	return s
}

func TestSessionAdvanceLogsRejectedTransition(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	s := New("sess-x", Config{Sender: fastSenderConfig()}, nil, logger, nil)
	s.advance(StateClosed)
	s.advance(StateStreaming) // backwards, must be rejected

	if s.State() != StateClosed {
		t.Errorf("expected state to stay closed, got %s", s.State())
	}
	if !strings.Contains(buf.String(), "Lifecycle transition rejected") {
		t.Errorf("expected rejected transition to be logged, got %s", buf.String())
	}
}

func TestSessionRunSuccess(t *testing.T) {
	conn := newFakeConn()
	conn.echoMarker = true
	conn.push(protocol.Word{Text: "hi", StartTime: 1.0})
	conn.push(protocol.EndWord{StopTime: 1.4})

	s := testSession(conn)
	src := &sliceSource{blocks: silenceBlocks(3, 1920)}

	result, err := s.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.MarkerSeen {
		t.Error("expected marker echo observed")
	}
	if result.Cancelled {
		t.Error("session was not cancelled")
	}
	if len(result.Transcript) != 1 || result.Transcript[0].Text != "hi" {
		t.Errorf("unexpected transcript: %+v", result.Transcript)
	}
	if got := conn.closeFrameCount(); got != 1 {
		t.Errorf("expected exactly 1 close frame, got %d", got)
	}
	if got := conn.countType(protocol.TypeMarker); got != 1 {
		t.Errorf("expected exactly 1 marker, got %d", got)
	}
	if s.State() != StateClosed {
		t.Errorf("expected CLOSED, got %v", s.State())
	}
}

func TestSessionRunCancelledMidStream(t *testing.T) {
	conn := newFakeConn()
	conn.echoMarker = true

	s := testSession(conn)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var result *Result
	var err error
	go func() {
		result, err = s.Run(ctx, blockingSource{})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down after cancellation")
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if result == nil {
		t.Fatal("cancelled session must still return its partial result")
	}
	if !result.Cancelled {
		t.Error("expected cancelled flag on result")
	}
	// Cancellation still produces exactly one trailer and one close frame.
	if got := conn.countType(protocol.TypeMarker); got != 1 {
		t.Errorf("expected exactly 1 marker, got %d", got)
	}
	if got := conn.closeFrameCount(); got != 1 {
		t.Errorf("expected exactly 1 close frame, got %d", got)
	}
	if s.State() != StateClosed {
		t.Errorf("expected CLOSED, got %v", s.State())
	}
}

func TestSessionDialFailure(t *testing.T) {
	wantErr := errors.New("connection refused")
	s := testSession(nil)
	s.dial = func(context.Context) (Conn, error) { return nil, wantErr }

	result, err := s.Run(context.Background(), &sliceSource{})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected dial error, got %v", err)
	}
	if result != nil {
		t.Error("expected nil result when dial fails")
	}
	if s.State() != StateClosed {
		t.Errorf("expected CLOSED, got %v", s.State())
	}
}

func TestSessionReceiverErrorStopsSender(t *testing.T) {
	conn := newFakeConn()
	conn.pushRaw(websocket.BinaryMessage, []byte{0xc1, 0xff})

	s := testSession(conn)

	done := make(chan struct{})
	var err error
	go func() {
		_, err = s.Run(context.Background(), blockingSource{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("decode error did not stop the session")
	}

	if !errors.Is(err, protocol.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
	if got := conn.closeFrameCount(); got != 1 {
		t.Errorf("expected exactly 1 close frame, got %d", got)
	}
}

func TestSessionRecordsMetrics(t *testing.T) {
	conn := newFakeConn()
	conn.echoMarker = true

	m := metrics.NewTestMetrics()
	cfg := Config{Sender: fastSenderConfig()}
	s := New("sess-metrics", cfg, nil, zerolog.Nop(), m)
	s.dial = func(context.Context) (Conn, error) { return conn, nil }

	if _, err := s.Run(context.Background(), &sliceSource{blocks: silenceBlocks(2, 1920)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestTTSRun(t *testing.T) {
	conn := newFakeConn()
	conn.push(protocol.Audio{PCM: []float32{0.1, 0.2}})
	conn.push(protocol.Audio{PCM: []float32{0.3}})
	conn.serverClose()

	tts := NewTTS("tts-test", TTSConfig{SampleRate: 24000}, nil, zerolog.Nop(), nil)
	tts.dial = func(context.Context) (Conn, error) { return conn, nil }

	result, err := tts.Run(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Audio) != 3 {
		t.Errorf("expected 3 synthesized samples, got %d", len(result.Audio))
	}

	conn.mu.Lock()
	var texts []string
	for _, f := range conn.written {
		if f.msgType == websocket.TextMessage {
			texts = append(texts, string(f.data))
		}
	}
	conn.mu.Unlock()

	want := []string{"hello", "world", textEOS}
	if len(texts) != len(want) {
		t.Fatalf("expected %d text frames, got %d", len(want), len(texts))
	}
	for i, w := range want {
		if texts[i] != w {
			t.Errorf("text frame %d = %q, want %q", i, texts[i], w)
		}
	}
	if got := conn.closeFrameCount(); got != 1 {
		t.Errorf("expected exactly 1 close frame, got %d", got)
	}
}
