package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const wavHeaderLen = 44

// EncodeWAV writes a canonical 44-byte PCM header followed by pcm.
func EncodeWAV(w io.Writer, format Format, pcm []byte) error {
	if err := format.Validate(); err != nil {
		return err
	}
	if _, err := w.Write(wavHeader(format, len(pcm))); err != nil {
		return fmt.Errorf("failed writing WAV header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("failed writing WAV data: %w", err)
	}
	return nil
}

// WAVBytes concatenates frames into one in-memory WAV file.
func WAVBytes(format Format, frames []Frame) ([]byte, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	total := 0
	for _, f := range frames {
		total += len(f.Data)
	}
	out := make([]byte, 0, wavHeaderLen+total)
	out = append(out, wavHeader(format, total)...)
	for _, f := range frames {
		out = append(out, f.Data...)
	}
	return out, nil
}

func wavHeader(format Format, dataLen int) []byte {
	channels := max(format.Channels, 1)
	byteRate := format.SampleRate * channels * format.BytesPerSample()
	blockAlign := channels * format.BytesPerSample()

	header := make([]byte, wavHeaderLen)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(format.BitsPerSample))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))
	return header
}

var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// ReadWAVHeader consumes chunks up to and including the "data" chunk header and
// returns the PCM format and the declared data length. The reader is left
// positioned at the first sample.
func ReadWAVHeader(r io.Reader) (Format, uint32, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Format{}, 0, fmt.Errorf("reading RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Format{}, 0, ErrNotWAV
	}

	var format Format
	var haveFmt bool
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return Format{}, 0, fmt.Errorf("reading chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, 0, fmt.Errorf("fmt chunk too short (%d)", size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, 0, fmt.Errorf("reading fmt chunk: %w", err)
			}
			if tag := binary.LittleEndian.Uint16(body[0:2]); tag != 1 {
				return Format{}, 0, fmt.Errorf("%w: WAV encoding %d is not PCM", ErrUnsupportedFormat, tag)
			}
			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			if err := format.Validate(); err != nil {
				return Format{}, 0, fmt.Errorf("%w: %d ch / %d bit", err, format.Channels, format.BitsPerSample)
			}
			return format, size, nil
		default:
			skip := int64(size) + int64(size%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Format{}, 0, fmt.Errorf("skipping %q chunk: %w", id, err)
			}
		}
	}
}
