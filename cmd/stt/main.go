// Command stt streams audio to the remote speech model and prints the
// transcript as it arrives.
//
// File mode reads a 24kHz mono WAV file. Live mode reads raw 16-bit
// little-endian PCM from stdin, e.g.:
//
//	arecord -f S16_LE -r 24000 -c 1 -t raw | stt -live
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-speech-stream-client/internal/app"
	"ai-speech-stream-client/internal/audio"
	"ai-speech-stream-client/internal/config"
	"ai-speech-stream-client/internal/service/session"
	"ai-speech-stream-client/internal/service/transcript"
)

func main() {
	var (
		file      = flag.String("file", "", "path to 24kHz mono WAV file")
		live      = flag.Bool("live", false, "read raw 16-bit LE PCM from stdin")
		showVAD   = flag.Bool("show-vad", false, "print pause indicators from semantic VAD")
		rtf       = flag.Float64("rtf", 0, "override real-time factor")
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
	if *rtf > 0 {
		cfg.Stream.RTF = *rtf
	}

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		application.Logger.Fatal().Err(err).Msg("Startup failed")
	}
	defer application.Shutdown()

	if !*live && *file == "" {
		fmt.Fprintln(os.Stderr, "either -file or -live is required")
		flag.Usage()
		os.Exit(2)
	}

	var src audio.Source
	if *live {
		capture := audio.NewCaptureSource(64)
		go feedFromStdin(capture, cfg.Stream.FrameSamples)
		defer func() {
			capture.Stop()
			if n := capture.Dropped(); n > 0 {
				application.Metrics.CaptureBlocksDropped.Add(float64(n))
				application.Logger.Warn().Uint64("blocks", n).Msg("Capture blocks dropped")
			}
		}()
		src = capture
	} else {
		fileSrc, err := audio.NewFileSource(*file, cfg.Stream.FrameSamples, cfg.Stream.SampleRate)
		if err != nil {
			application.Logger.Fatal().Err(err).Str("file", *file).Msg("Cannot read audio file")
		}
		application.Logger.Info().
			Str("file", *file).
			Int("blocks", fileSrc.Blocks()).
			Msg("Streaming file")
		src = fileSrc
	}

	sess, id, err := application.NewSTTSession(&printer{}, *showVAD)
	if err != nil {
		application.Logger.Fatal().Err(err).Msg("Session setup failed")
	}

	// First SIGINT drains gracefully, second one kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	start := time.Now()
	result, err := sess.Run(ctx, src)
	fmt.Println()

	if result != nil {
		application.PublishFinal(context.Background(), id, result, time.Since(start))
		printTranscript(result.Transcript)
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		application.Logger.Info().Msg("Interrupted, transcript is partial")
	default:
		application.Logger.Error().Err(err).Msg("Session failed")
		application.Shutdown()
		os.Exit(1)
	}
}

// printer streams words to stdout the moment they open.
type printer struct{}

func (printer) OnWord(e transcript.Entry) {
	fmt.Printf("%s ", e.Text)
}

func (printer) OnPause() {
	fmt.Print("| ")
}

func (printer) OnAudio([]float32) {}

var _ session.Events = printer{}

func printTranscript(entries []transcript.Entry) {
	for _, e := range entries {
		if e.Open() {
			fmt.Printf("%7.2f         %s\n", e.StartTime, e.Text)
			continue
		}
		fmt.Printf("%7.2f %7.2f %s\n", e.StartTime, e.StopTime, e.Text)
	}
}

// feedFromStdin converts raw 16-bit LE PCM on stdin into capture blocks.
func feedFromStdin(capture *audio.CaptureSource, frameSamples int) {
	defer capture.Stop()

	r := bufio.NewReaderSize(os.Stdin, frameSamples*4)
	buf := make([]byte, frameSamples*2)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			block := make([]float32, n/2)
			for i := range block {
				s := int16(binary.LittleEndian.Uint16(buf[i*2:]))
				block[i] = float32(s) / 32768
			}
			capture.Push(block)
		}
		if err != nil {
			return
		}
	}
}
