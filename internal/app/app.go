// Package app wires configuration, logging, metrics and event publishing
// into ready-to-run streaming sessions.
package app

import (
	"context"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-stream-client/internal/auth"
	"ai-speech-stream-client/internal/config"
	"ai-speech-stream-client/internal/events"
	httpapi "ai-speech-stream-client/internal/http"
	"ai-speech-stream-client/internal/models"
	"ai-speech-stream-client/internal/observability"
	"ai-speech-stream-client/internal/observability/logging"
	"ai-speech-stream-client/internal/observability/metrics"
	"ai-speech-stream-client/internal/schema"
	"ai-speech-stream-client/internal/service/session"
	"ai-speech-stream-client/internal/service/transcript"
)

// Application holds process-wide state for the client.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Metrics     *metrics.Metrics
	Publisher   *events.Publisher
	Validator   *schema.Validator

	tokens    auth.TokenSource
	ids       *session.Generator
	obsServer *observability.Server
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg:       cfg,
		Metrics:   metrics.DefaultMetrics,
		Validator: schema.New(),
		tokens:    auth.Resolve(cfg.Auth.Token, cfg.Auth.TokenFile),
		ids:       session.NewGenerator(),
	}
	a.setupLogger()

	a.Publisher = events.New(&events.Config{
		Enabled:    cfg.Kafka.Enabled,
		Brokers:    cfg.Kafka.Brokers,
		TopicWord:  cfg.Kafka.TopicWord,
		TopicFinal: cfg.Kafka.TopicFinal,
		Principal:  cfg.Service.Principal,
	})

	a.Logger.Info().Msg("Speech stream client application created")
	return a
}

// setupLogger configures zerolog for the client.
func (a *Application) setupLogger() {
	a.Logger = logging.Init(logging.Config{
		Level:  a.Cfg.Observability.LogLevel,
		Format: a.Cfg.Observability.LogFormat,
	})

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Start performs any startup work required before streaming.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()

	if a.Cfg.Observability.MetricsEnabled {
		a.obsServer = observability.NewServer(a.Cfg.Observability.MetricsAddr, httpapi.NewRouter())
		a.obsServer.Start()
	}

	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Speech stream client starting")
	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	a.Logger.Info().Msg("Speech stream client shutting down")

	if a.obsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.obsServer.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Observability server shutdown failed")
		}
	}
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Publisher close failed")
	}
}

func (a *Application) dialConfig(path string, query url.Values) (session.DialConfig, error) {
	token, err := a.tokens.Token()
	if err != nil {
		return session.DialConfig{}, err
	}
	return session.DialConfig{
		URL:              a.Cfg.Server.URL,
		Path:             path,
		Query:            query,
		Token:            token,
		Placement:        session.AuthPlacement(a.Cfg.Auth.Placement),
		HeaderName:       a.Cfg.Auth.HeaderName,
		HandshakeTimeout: a.Cfg.Server.HandshakeTimeout,
	}, nil
}

// NewSTTSession builds a speech-to-text session with the configured
// pacing, trailer and pause parameters.
func (a *Application) NewSTTSession(ev session.Events, showPauses bool) (*session.Session, string, error) {
	dial, err := a.dialConfig(a.Cfg.Server.STTPath, nil)
	if err != nil {
		return nil, "", err
	}

	id := a.ids.Next()
	cfg := session.Config{
		Dial: dial,
		Sender: session.SenderConfig{
			SampleRate:        a.Cfg.Stream.SampleRate,
			FrameSamples:      a.Cfg.Stream.FrameSamples,
			RTF:               a.Cfg.Stream.RTF,
			LeadOutSeconds:    a.Cfg.Stream.LeadOutSeconds,
			PostMarkerSeconds: a.Cfg.Stream.PostMarkerSeconds,
			MarkerID:          uint32(a.Cfg.Stream.MarkerID),
		},
		ShowPauses:     showPauses,
		PauseHeadIndex: a.Cfg.Pause.HeadIndex,
		PauseThreshold: a.Cfg.Pause.Threshold,
	}
	return session.New(id, cfg, a.EventBridge(id, ev), a.Logger, a.Metrics), id, nil
}

// NewTTSSession builds a text-to-speech session.
func (a *Application) NewTTSSession(ev session.Events) (*session.TTS, string, error) {
	query := url.Values{}
	if a.Cfg.TTS.Voice != "" {
		query.Set("voice", a.Cfg.TTS.Voice)
	}
	if a.Cfg.TTS.Format != "" {
		query.Set("format", a.Cfg.TTS.Format)
	}

	dial, err := a.dialConfig(a.Cfg.Server.TTSPath, query)
	if err != nil {
		return nil, "", err
	}

	id := a.ids.Next()
	cfg := session.TTSConfig{
		Dial:       dial,
		SampleRate: a.Cfg.Stream.SampleRate,
	}
	return session.NewTTS(id, cfg, ev, a.Logger, a.Metrics), id, nil
}

// EventBridge wraps next so every word is also validated and published
// to the word topic. next may be nil.
func (a *Application) EventBridge(sessionID string, next session.Events) session.Events {
	if next == nil {
		next = session.NopEvents
	}
	return &eventBridge{app: a, sessionID: sessionID, next: next}
}

type eventBridge struct {
	app       *Application
	sessionID string
	next      session.Events
}

func (b *eventBridge) OnWord(entry transcript.Entry) {
	event := models.WordEvent{
		EventType: models.EventTypeWord,
		SessionID: b.sessionID,
		Timestamp: time.Now().UnixMilli(),
		Text:      entry.Text,
		StartTime: entry.StartTime,
	}
	if !entry.Open() {
		event.StopTime = entry.StopTime
	}
	if err := b.app.Validator.Validate(event); err != nil {
		b.app.Logger.Warn().Err(err).Msg("Dropping invalid word event")
	} else if err := b.app.Publisher.PublishWord(context.Background(), b.sessionID, event); err != nil {
		b.app.Logger.Warn().Err(err).Msg("Word event publish failed")
	}
	b.next.OnWord(entry)
}

func (b *eventBridge) OnPause() { b.next.OnPause() }

func (b *eventBridge) OnAudio(pcm []float32) { b.next.OnAudio(pcm) }

// PublishFinal validates and publishes the end-of-session transcript.
func (a *Application) PublishFinal(ctx context.Context, sessionID string, result *session.Result, elapsed time.Duration) {
	entries := result.Transcript
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}

	event := models.FinalEvent{
		EventType:       models.EventTypeFinal,
		SessionID:       sessionID,
		Timestamp:       time.Now().UnixMilli(),
		Text:            strings.Join(texts, " "),
		WordCount:       len(entries),
		DurationSeconds: elapsed.Seconds(),
		MarkerSeen:      result.MarkerSeen,
		Cancelled:       result.Cancelled,
	}
	if err := a.Validator.Validate(event); err != nil {
		a.Logger.Warn().Err(err).Msg("Dropping invalid final event")
		return
	}
	if err := a.Publisher.PublishFinal(ctx, sessionID, event); err != nil {
		a.Logger.Warn().Err(err).Msg("Final event publish failed")
	}
}
