// Package auth supplies API tokens to the streaming client. Credential
// acquisition itself (login, JWT minting) happens elsewhere; this package
// only hands over an already-obtained token.
package auth

import (
	"fmt"
	"os"
	"strings"
)

// TokenSource yields the API token used on the websocket handshake.
type TokenSource interface {
	Token() (string, error)
}

// Static is a fixed token.
type Static string

func (s Static) Token() (string, error) { return string(s), nil }

// EnvSource reads the token from an environment variable on each call.
type EnvSource struct {
	Key string
}

func (e EnvSource) Token() (string, error) {
	v := os.Getenv(e.Key)
	if v == "" {
		return "", fmt.Errorf("environment variable %s is not set", e.Key)
	}
	return v, nil
}

// FileSource reads the token from a file, trimming surrounding
// whitespace. Reading on each call picks up rotated tokens.
type FileSource struct {
	Path string
}

func (f FileSource) Token() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", f.Path)
	}
	return token, nil
}

// None is used against servers that do not require authentication.
type None struct{}

func (None) Token() (string, error) { return "", nil }

// Resolve picks a token source: an explicit token wins, then a token
// file, then no authentication.
func Resolve(token, tokenFile string) TokenSource {
	switch {
	case token != "":
		return Static(token)
	case tokenFile != "":
		return FileSource{Path: tokenFile}
	default:
		return None{}
	}
}
