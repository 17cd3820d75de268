package audio

import (
	"encoding/binary"
	"math"
)

// RMS returns the root-mean-square amplitude of little-endian signed PCM with
// the given sample width in bytes, truncated to an integer. Input that cannot
// be interpreted (empty, unknown width, length not a multiple of width) yields
// 0 so a malformed frame reads as silence.
func RMS(pcm []byte, width int) int {
	if len(pcm) == 0 || width < 1 || width > 4 || len(pcm)%width != 0 {
		return 0
	}

	n := len(pcm) / width
	var sum float64
	for i := 0; i < len(pcm); i += width {
		v := float64(sample(pcm[i:i+width], width))
		sum += v * v
	}
	return int(math.Sqrt(sum / float64(n)))
}

func sample(b []byte, width int) int32 {
	switch width {
	case 1:
		return int32(int8(b[0]))
	case 2:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xffffff
		}
		return v
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}
