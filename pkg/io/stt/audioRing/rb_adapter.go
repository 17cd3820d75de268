package audioring

import (
	"encoding/binary"

	"github.com/smallnest/ringbuffer"
	"github.com/xpanvictor/hearken/pkg/io/audio"
)

const sizePrefix = 4

// frameOverhead is the MarshalBinary envelope around the PCM payload.
const frameOverhead = 8 + 8 + 4 + 2 + 4

type rb_impl struct {
	frames int
	count  int
	rb     *ringbuffer.RingBuffer
}

// New sizes the byte ring so that frames frames of up to frameBytes PCM each
// fit. Larger frames still go in, evicting more of the old ones.
func New(frames, frameBytes int) AudioRingBuffer {
	frames = max(frames, 1)
	size := frames * (frameBytes + frameOverhead + sizePrefix)
	return &rb_impl{
		frames: frames,
		rb:     ringbuffer.New(size).SetBlocking(false),
	}
}

// Capacity implements AudioRingBuffer.
func (r *rb_impl) Capacity() int { return r.frames }

// Len implements AudioRingBuffer.
func (r *rb_impl) Len() int { return r.count }

// Push implements AudioRingBuffer.
func (r *rb_impl) Push(frame audio.Frame) error {
	data, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	required := len(data) + sizePrefix
	if required > r.rb.Capacity() {
		return ErrFrameTooLarge
	}

	for r.count >= r.frames || r.rb.Free() < required {
		if !r.dropOldest() {
			// corrupted framing, start over
			r.Clear()
			break
		}
	}

	var prefix [sizePrefix]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := r.rb.Write(prefix[:]); err != nil {
		return err
	}
	if _, err := r.rb.Write(data); err != nil {
		return err
	}
	r.count++
	return nil
}

func (r *rb_impl) dropOldest() bool {
	if r.rb.IsEmpty() {
		return false
	}
	var prefix [sizePrefix]byte
	if n, err := r.rb.Read(prefix[:]); err != nil || n != sizePrefix {
		return false
	}
	size := int(binary.LittleEndian.Uint32(prefix[:]))
	if size > 0 {
		skip := make([]byte, size)
		if n, err := r.rb.Read(skip); err != nil || n != size {
			return false
		}
	}
	r.count--
	return true
}

// Frames implements AudioRingBuffer. The ring is read out and written back so
// its contents are left untouched.
func (r *rb_impl) Frames() []audio.Frame {
	if r.rb.IsEmpty() {
		return nil
	}
	raw := make([]byte, r.rb.Length())
	n, err := r.rb.Read(raw)
	if err != nil {
		return nil
	}
	raw = raw[:n]
	if _, err := r.rb.Write(raw); err != nil {
		r.Clear()
		return nil
	}

	out := make([]audio.Frame, 0, r.count)
	for len(raw) >= sizePrefix {
		size := int(binary.LittleEndian.Uint32(raw))
		raw = raw[sizePrefix:]
		if size > len(raw) {
			break
		}
		var f audio.Frame
		if err := f.UnmarshalBinary(raw[:size]); err != nil {
			break
		}
		out = append(out, f)
		raw = raw[size:]
	}
	return out
}

// Clear implements AudioRingBuffer.
func (r *rb_impl) Clear() {
	r.rb.Reset()
	r.count = 0
}
