package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV is decoded PCM16 audio from a RIFF/WAVE file
type WAV struct {
	SampleRate int
	Channels   int
	Samples    []int16 // interleaved
}

// Duration returns the playback length in seconds
func (w *WAV) Duration() float64 {
	if w.SampleRate == 0 || w.Channels == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate*w.Channels)
}

// ParseWAV walks the RIFF chunks in data and decodes the 16-bit PCM "data"
// chunk using the format from the "fmt " chunk.
func ParseWAV(data []byte) (*WAV, error) {
	if len(data) < 12 {
		return nil, errors.New("wav: too short to be a valid RIFF file")
	}
	if string(data[0:4]) != "RIFF" {
		return nil, errors.New("wav: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return nil, errors.New("wav: missing WAVE identifier")
	}

	var (
		w        WAV
		bits     int
		format   int
		foundFmt bool
	)

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(data) {
				return nil, errors.New("wav: truncated fmt chunk")
			}
			format = int(binary.LittleEndian.Uint16(data[body : body+2]))
			w.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			foundFmt = true

		case "data":
			if !foundFmt {
				return nil, errors.New("wav: data chunk before fmt chunk")
			}
			// PCM or WAVE_FORMAT_EXTENSIBLE
			if (format != 1 && format != 0xFFFE) || bits != 16 {
				return nil, fmt.Errorf("wav: unsupported format %d with %d bits per sample, need 16-bit PCM", format, bits)
			}
			end := min(body+chunkSize, len(data))
			end -= (end - body) % 2
			samples, err := DecodePCM16(data[body:end])
			if err != nil {
				return nil, err
			}
			w.Samples = samples
			return &w, nil
		}

		// Chunks are word-aligned
		offset = body + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return nil, errors.New("wav: missing data chunk")
}
