// Package config loads client configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full client configuration.
type Config struct {
	Service       ServiceConfig
	Server        ServerConfig
	Auth          AuthConfig
	Stream        StreamConfig
	Pause         PauseConfig
	TTS           TTSConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies this client instance.
type ServiceConfig struct {
	Principal string
}

// ServerConfig locates the remote speech endpoints.
type ServerConfig struct {
	URL              string
	STTPath          string
	TTSPath          string
	HandshakeTimeout time.Duration
}

// AuthConfig controls how the API token travels on the handshake.
type AuthConfig struct {
	Token      string
	TokenFile  string
	Placement  string // "query" or "header"
	HeaderName string
}

// StreamConfig holds the audio and pacing parameters. The trailer
// durations are protocol constants agreed with the remote model;
// shortening them truncates transcript tails.
type StreamConfig struct {
	SampleRate        int
	FrameSamples      int
	RTF               float64
	LeadOutSeconds    int
	PostMarkerSeconds int
	MarkerID          uint
}

// PauseConfig selects the semantic VAD head used for pause indication.
type PauseConfig struct {
	HeadIndex int
	Threshold float64
}

// TTSConfig holds the synthesis parameters.
type TTSConfig struct {
	Voice  string
	Format string
}

// KafkaConfig holds event publishing configuration.
type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	TopicWord  string
	TopicFinal string
}

// ObservabilityConfig holds logging and metrics configuration.
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	MetricsAddr    string
	MetricsEnabled bool
}

// Load reads configuration from the environment, falling back to
// defaults suitable for a local server.
func Load() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal: envOrDefault("SERVICE_PRINCIPAL", "svc-speech-stream-client"),
		},
		Server: ServerConfig{
			URL:              envOrDefault("SERVER_URL", "ws://127.0.0.1:8080"),
			STTPath:          envOrDefault("STT_PATH", "/api/asr-streaming"),
			TTSPath:          envOrDefault("TTS_PATH", "/api/tts-streaming"),
			HandshakeTimeout: envDuration("HANDSHAKE_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			Token:      os.Getenv("API_TOKEN"),
			TokenFile:  os.Getenv("API_TOKEN_FILE"),
			Placement:  envOrDefault("AUTH_PLACEMENT", "query"),
			HeaderName: envOrDefault("AUTH_HEADER_NAME", "kyutai-api-key"),
		},
		Stream: StreamConfig{
			SampleRate:        envInt("STREAM_SAMPLE_RATE_HZ", 24000),
			FrameSamples:      envInt("STREAM_FRAME_SAMPLES", 1920),
			RTF:               envFloat("STREAM_RTF", 1.01),
			LeadOutSeconds:    envInt("STREAM_LEAD_OUT_SECONDS", 5),
			PostMarkerSeconds: envInt("STREAM_POST_MARKER_SECONDS", 35),
			MarkerID:          envUint("STREAM_MARKER_ID", 0),
		},
		Pause: PauseConfig{
			HeadIndex: envInt("PAUSE_HEAD_INDEX", 2),
			Threshold: envFloat("PAUSE_THRESHOLD", 0.5),
		},
		TTS: TTSConfig{
			Voice:  envOrDefault("TTS_VOICE", "default"),
			Format: envOrDefault("TTS_FORMAT", "PcmMessagePack"),
		},
		Kafka: KafkaConfig{
			Enabled:    envBool("KAFKA_ENABLED", false),
			Brokers:    envList("KAFKA_BROKERS", nil),
			TopicWord:  envOrDefault("KAFKA_TOPIC_WORD", "speech.transcript.word"),
			TopicFinal: envOrDefault("KAFKA_TOPIC_FINAL", "speech.transcript.final"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       envOrDefault("LOG_LEVEL", "info"),
			LogFormat:      envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr:    envOrDefault("METRICS_ADDR", ":9090"),
			MetricsEnabled: envBool("METRICS_ENABLED", false),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// envUint rejects negative values rather than letting the uint
// conversion wrap them.
func envUint(key string, def uint) uint {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return uint(n)
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
