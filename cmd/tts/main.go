// Command tts sends text to the remote speech model and writes the
// synthesized audio to a WAV file.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ai-speech-stream-client/internal/app"
	"ai-speech-stream-client/internal/audio"
	"ai-speech-stream-client/internal/config"
)

func main() {
	var (
		text      = flag.String("text", "", "text to synthesize; empty reads from stdin")
		out       = flag.String("out", "tts-output.wav", "output WAV file")
		voice     = flag.String("voice", "", "override voice")
		serverURL = flag.String("server", "", "override server URL")
		token     = flag.String("token", "", "override API token")
	)
	flag.Parse()

	cfg := config.Load()
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}
	if *token != "" {
		cfg.Auth.Token = *token
	}
	if *voice != "" {
		cfg.TTS.Voice = *voice
	}

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		application.Logger.Fatal().Err(err).Msg("Startup failed")
	}
	defer application.Shutdown()

	words, err := collectWords(*text)
	if err != nil {
		application.Logger.Fatal().Err(err).Msg("Cannot read input text")
	}
	if len(words) == 0 {
		fmt.Fprintln(os.Stderr, "no input text")
		os.Exit(2)
	}

	sess, id, err := application.NewTTSSession(nil)
	if err != nil {
		application.Logger.Fatal().Err(err).Msg("Session setup failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := sess.Run(ctx, words)
	if err != nil && !errors.Is(err, context.Canceled) {
		application.Logger.Error().Err(err).Msg("Synthesis failed")
		application.Shutdown()
		os.Exit(1)
	}

	if result == nil || len(result.Audio) == 0 {
		application.Logger.Error().Str("sessionId", id).Msg("No audio received")
		application.Shutdown()
		os.Exit(1)
	}

	if err := audio.WriteWAVFile(*out, result.Audio, cfg.Stream.SampleRate); err != nil {
		application.Logger.Error().Err(err).Str("file", *out).Msg("Cannot write output")
		application.Shutdown()
		os.Exit(1)
	}

	seconds := float64(len(result.Audio)) / float64(cfg.Stream.SampleRate)
	application.Logger.Info().
		Str("file", *out).
		Int("words", len(words)).
		Float64("seconds", seconds).
		Msg("Audio written")
}

func collectWords(text string) ([]string, error) {
	if text != "" {
		return strings.Fields(text), nil
	}

	var words []string
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		words = append(words, strings.Fields(scanner.Text())...)
	}
	return words, scanner.Err()
}
