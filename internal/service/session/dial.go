package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// AuthPlacement selects where the API token travels on the handshake.
type AuthPlacement string

const (
	// AuthQuery puts the token in the URL query string.
	AuthQuery AuthPlacement = "query"
	// AuthHeader puts the token in a request header.
	AuthHeader AuthPlacement = "header"
)

// DefaultAuthHeader is the header name used when AuthHeader is selected.
const DefaultAuthHeader = "kyutai-api-key"

// ErrAuthRejected is returned when the server refuses the handshake with
// an authentication failure.
var ErrAuthRejected = errors.New("server rejected credentials")

// DialConfig describes how to reach the streaming endpoint.
type DialConfig struct {
	URL              string     // base URL, ws:// or wss://
	Path             string     // endpoint path, e.g. /api/asr-streaming
	Query            url.Values // extra query parameters
	Token            string
	Placement        AuthPlacement
	HeaderName       string // defaults to DefaultAuthHeader
	HandshakeTimeout time.Duration
}

// endpointURL builds the full websocket URL including auth query
// parameters when the query placement is selected.
func (c DialConfig) endpointURL() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse server URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	u.Path = c.Path

	q := u.Query()
	for key, values := range c.Query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	if c.Placement == AuthQuery && c.Token != "" {
		q.Set("token", c.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redacted returns the endpoint URL with the token query value masked,
// safe for logging.
func (c DialConfig) redacted() string {
	full, err := c.endpointURL()
	if err != nil {
		return c.URL
	}
	u, err := url.Parse(full)
	if err != nil {
		return c.URL
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "redacted")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Dial opens the websocket connection to the streaming endpoint.
func Dial(ctx context.Context, cfg DialConfig, logger zerolog.Logger) (*websocket.Conn, error) {
	endpoint, err := cfg.endpointURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if cfg.Placement == AuthHeader && cfg.Token != "" {
		name := cfg.HeaderName
		if name == "" {
			name = DefaultAuthHeader
		}
		header.Set(name, cfg.Token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	logger.Debug().Str("url", cfg.redacted()).Msg("Dialing streaming endpoint")

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, fmt.Errorf("connect %s: %w", cfg.redacted(), ErrAuthRejected)
			}
			return nil, fmt.Errorf("connect %s: status %d: %w", cfg.redacted(), resp.StatusCode, err)
		}
		return nil, fmt.Errorf("connect %s: %w", cfg.redacted(), err)
	}

	logger.Info().Str("url", cfg.redacted()).Msg("Connected")
	return conn, nil
}
