// Package audio holds the PCM frame model shared by capture, segmentation and
// the engine bridges, plus the frame sources that feed the real-time loop.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"time"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format describes mono linear PCM, little endian.
type Format struct {
	SampleRate    int `json:"sampleRate"`
	BitsPerSample int `json:"bitsPerSample"`
	Channels      int `json:"channels"`
}

func Mono(sampleRate, bitsPerSample int) Format {
	return Format{SampleRate: sampleRate, BitsPerSample: bitsPerSample, Channels: 1}
}

func (f Format) BytesPerSample() int { return f.BitsPerSample / 8 }

// FrameBytes is the byte length of a frame lasting d.
func (f Format) FrameBytes(d time.Duration) int {
	samples := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return samples * f.BytesPerSample() * max(f.Channels, 1)
}

// Duration of n bytes of PCM in this format.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSample() * max(f.Channels, 1) * f.SampleRate
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels != 1 {
		return ErrUnsupportedFormat
	}
	switch f.BitsPerSample {
	case 8, 16, 24, 32:
		return nil
	}
	return ErrUnsupportedFormat
}

// Frame is one fixed-duration slice of captured audio. Frames are treated as
// immutable once produced.
type Frame struct {
	Seq           uint64
	Timestamp     time.Time
	SampleRate    int32
	BitsPerSample int16
	Data          []byte
}

func (f Frame) Format() Format {
	return Mono(int(f.SampleRate), int(f.BitsPerSample))
}

// RMS is the frame energy at its declared bit depth; see RMS.
func (f Frame) RMS() int {
	return RMS(f.Data, int(f.BitsPerSample)/8)
}

const frameHeaderLen = 8 + 8 + 4 + 2 + 4

// MarshalBinary layout: seq(8) + timestamp(8, unix nanos, 0 for none) + sampleRate(4) + bits(2) + dataLen(4) + data.
func (f *Frame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, frameHeaderLen+len(f.Data))

	offset := 0
	binary.LittleEndian.PutUint64(buf[offset:], f.Seq)
	offset += 8
	var ts int64
	if !f.Timestamp.IsZero() {
		ts = f.Timestamp.UnixNano()
	}
	binary.LittleEndian.PutUint64(buf[offset:], uint64(ts))
	offset += 8
	binary.LittleEndian.PutUint32(buf[offset:], uint32(f.SampleRate))
	offset += 4
	binary.LittleEndian.PutUint16(buf[offset:], uint16(f.BitsPerSample))
	offset += 2
	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(f.Data)))
	offset += 4
	copy(buf[offset:], f.Data)

	return buf, nil
}

var errShortFrame = errors.New("frame: truncated encoding")

func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < frameHeaderLen {
		return errShortFrame
	}

	offset := 0
	f.Seq = binary.LittleEndian.Uint64(data[offset:])
	offset += 8
	// timestamps decode in UTC; 0 is the zero time
	f.Timestamp = time.Time{}
	if ts := int64(binary.LittleEndian.Uint64(data[offset:])); ts != 0 {
		f.Timestamp = time.Unix(0, ts).UTC()
	}
	offset += 8
	f.SampleRate = int32(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	f.BitsPerSample = int16(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	dataLen := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4

	if len(data[offset:]) < dataLen {
		return errShortFrame
	}
	f.Data = make([]byte, dataLen)
	copy(f.Data, data[offset:offset+dataLen])
	return nil
}

// FrameSource yields frames at a steady real-time cadence. Next blocks for at
// most about one frame period; io.EOF marks a cleanly finished stream.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Format() Format
	Close() error
}
