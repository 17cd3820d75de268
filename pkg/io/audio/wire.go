package audio

import (
	"encoding/binary"
	"errors"
)

// ChunkHeaderLen is the size of the header on binary websocket audio
// messages: sample rate (u32 LE), channels (i16 LE), bits per sample (u16 LE,
// 0 meaning 16).
const ChunkHeaderLen = 8

var ErrShortChunk = errors.New("audio chunk shorter than its header")

// AppendChunk appends a header for f followed by pcm to dst.
func AppendChunk(dst []byte, f Format, pcm []byte) []byte {
	var h [ChunkHeaderLen]byte
	binary.LittleEndian.PutUint32(h[0:4], uint32(f.SampleRate))
	binary.LittleEndian.PutUint16(h[4:6], uint16(int16(max(f.Channels, 1))))
	binary.LittleEndian.PutUint16(h[6:8], uint16(f.BitsPerSample))
	dst = append(dst, h[:]...)
	return append(dst, pcm...)
}

// ParseChunk splits a binary message into its format and PCM payload. The
// payload aliases msg.
func ParseChunk(msg []byte) (Format, []byte, error) {
	if len(msg) < ChunkHeaderLen {
		return Format{}, nil, ErrShortChunk
	}
	f := Format{
		SampleRate:    int(binary.LittleEndian.Uint32(msg[0:4])),
		Channels:      int(int16(binary.LittleEndian.Uint16(msg[4:6]))),
		BitsPerSample: int(binary.LittleEndian.Uint16(msg[6:8])),
	}
	if f.BitsPerSample == 0 {
		f.BitsPerSample = 16
	}
	return f, msg[ChunkHeaderLen:], nil
}
