// Package wav implements the minimal subset of the RIFF/WAVE format the
// chunker needs: reading 16-bit PCM files, slicing them by millisecond
// offsets, and writing the slices back out byte-for-byte reproducibly.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	formatPCM       = 1
	headerChunkSize = 16
)

// Audio holds a decoded 16-bit PCM audio track
type Audio struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	// Data is the raw sample data exactly as stored in the data chunk
	Data []byte
}

// bytesPerMS returns the (integer) number of bytes covering one millisecond
func (a *Audio) bytesPerMS() int {
	return a.SampleRate * a.Channels * (a.BitsPerSample / 8) / 1000
}

// frameSize returns the number of bytes per sample frame across all channels
func (a *Audio) frameSize() int {
	return a.Channels * (a.BitsPerSample / 8)
}

// DurationMS returns the audio duration in whole milliseconds
func (a *Audio) DurationMS() int {
	bpms := a.bytesPerMS()
	if bpms == 0 {
		return 0
	}
	return len(a.Data) / bpms
}

// SliceMS returns the audio between startMS and endMS as a new Audio
// sharing format parameters. Offsets are clamped to the track bounds and
// aligned down to whole sample frames so slices never split a frame.
func (a *Audio) SliceMS(startMS, endMS int) *Audio {
	bpms := a.bytesPerMS()
	start := startMS * bpms
	end := endMS * bpms

	if start < 0 {
		start = 0
	}
	if end > len(a.Data) {
		end = len(a.Data)
	}
	if start > end {
		start = end
	}

	fs := a.frameSize()
	if fs > 0 {
		start -= start % fs
		end -= end % fs
	}

	return &Audio{
		SampleRate:    a.SampleRate,
		Channels:      a.Channels,
		BitsPerSample: a.BitsPerSample,
		Data:          a.Data[start:end],
	}
}

// Decode reads a PCM WAV stream into an Audio
func Decode(r io.Reader) (*Audio, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	audio := &Audio{}
	haveFmt := false

	// Walk the chunk list until the data chunk is found. Chunks other
	// than fmt and data (LIST, fact, ...) are skipped.
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("no data chunk found")
			}
			return nil, fmt.Errorf("failed to read chunk header: %w", err)
		}

		chunkID := string(hdr[0:4])
		chunkLen := binary.LittleEndian.Uint32(hdr[4:8])

		switch chunkID {
		case "fmt ":
			if chunkLen < headerChunkSize {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", chunkLen)
			}
			fmtData := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, fmtData); err != nil {
				return nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(fmtData[0:2])
			if audioFormat != formatPCM {
				return nil, fmt.Errorf("unsupported audio format %d, only PCM is supported", audioFormat)
			}
			audio.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			audio.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			audio.BitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			if audio.Channels == 0 || audio.SampleRate == 0 {
				return nil, fmt.Errorf("invalid fmt chunk: %d channels at %d Hz", audio.Channels, audio.SampleRate)
			}
			if audio.BitsPerSample != 16 {
				return nil, fmt.Errorf("unsupported bit depth %d, only 16-bit PCM is supported", audio.BitsPerSample)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			data := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("failed to read data chunk: %w", err)
			}
			audio.Data = data
			return audio, nil

		default:
			skip := int64(chunkLen)
			if chunkLen%2 == 1 {
				skip++ // chunks are word-aligned
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("failed to skip %q chunk: %w", chunkID, err)
			}
		}
	}
}

// Encode writes the audio as a canonical PCM WAV stream
func (a *Audio) Encode(w io.Writer) error {
	dataLen := uint32(len(a.Data))
	byteRate := uint32(a.SampleRate * a.Channels * a.BitsPerSample / 8)
	blockAlign := uint16(a.Channels * a.BitsPerSample / 8)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(headerChunkSize))
	binary.Write(&buf, binary.LittleEndian, uint16(formatPCM))
	binary.Write(&buf, binary.LittleEndian, uint16(a.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(a.SampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(a.BitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}
	if _, err := w.Write(a.Data); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	return nil
}

// ReadFile decodes the WAV file at path
func ReadFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file %s: %w", path, err)
	}
	defer f.Close()

	audio, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV file %s: %w", path, err)
	}
	return audio, nil
}

// WriteFile encodes the audio into a WAV file at path, overwriting it
func (a *Audio) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file %s: %w", path, err)
	}
	defer f.Close()

	if err := a.Encode(f); err != nil {
		return err
	}
	return nil
}
