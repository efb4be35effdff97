package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// WAV format codes.
const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3
)

// ReadWAV decodes a mono WAV stream into float32 samples in [-1, 1].
// Supported encodings are 16-bit PCM and 32-bit IEEE float. Returns the
// samples and the file's sample rate.
func ReadWAV(r io.Reader) ([]float32, int, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, 0, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a WAV file")
	}

	var (
		format        uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		haveFmt       bool
	)

	// Walk chunks until the data chunk; tolerate LIST/IDs we don't know.
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, 0, fmt.Errorf("no data chunk found")
			}
			return nil, 0, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			if size < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			if channels != 1 {
				return nil, 0, fmt.Errorf("unsupported channel count %d: only mono input is supported", channels)
			}

			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, 0, fmt.Errorf("read data chunk: %w", err)
			}

			samples, err := decodeSamples(body, format, bitsPerSample)
			if err != nil {
				return nil, 0, err
			}
			return samples, int(sampleRate), nil

		default:
			// Chunks are word-aligned; odd sizes carry a pad byte.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, 0, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}

func decodeSamples(body []byte, format, bitsPerSample uint16) ([]float32, error) {
	switch {
	case format == wavFormatPCM && bitsPerSample == 16:
		samples := make([]float32, len(body)/2)
		for i := range samples {
			s := int16(binary.LittleEndian.Uint16(body[2*i:]))
			samples[i] = float32(s) / 32768.0
		}
		return samples, nil

	case format == wavFormatIEEEFloat && bitsPerSample == 32:
		samples := make([]float32, len(body)/4)
		for i := range samples {
			bits := binary.LittleEndian.Uint32(body[4*i:])
			samples[i] = math.Float32frombits(bits)
		}
		return samples, nil

	default:
		return nil, fmt.Errorf("unsupported WAV encoding: format=%d bits=%d (want PCM16 or float32)",
			format, bitsPerSample)
	}
}

// ReadWAVFile reads a mono WAV file from disk. See ReadWAV.
func ReadWAVFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()
	return ReadWAV(f)
}

// EncodeWAV encodes float32 samples as a mono 16-bit PCM WAV file.
// Samples outside [-1, 1] are clipped.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.Write(buf, binary.LittleEndian, int16(s*32767))
	}

	return buf.Bytes(), nil
}

// WriteWAVFile writes float32 samples to disk as a mono 16-bit PCM WAV file.
func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	b, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write audio file: %w", err)
	}
	return nil
}
