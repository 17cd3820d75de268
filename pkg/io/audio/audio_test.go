package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcm16(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0, RMS(nil, 2))
	assert.Equal(t, 0, RMS(pcm16(0, 0, 0), 2))
	assert.Equal(t, 1000, RMS(pcm16(1000, -1000, 1000, -1000), 2))
	// sqrt((9+16)/2) = 3.53 truncates
	assert.Equal(t, 3, RMS(pcm16(3, -4), 2))

	assert.Equal(t, 100, RMS([]byte{100, 0x9c}, 1)) // int8 100, -100

	b24 := []byte{0x00, 0x00, 0x80, 0xff, 0xff, 0x7f} // -8388608, 8388607
	assert.Equal(t, 8388607, RMS(b24, 3))

	b32 := make([]byte, 8)
	lo, hi := int32(-70000), int32(70000)
	binary.LittleEndian.PutUint32(b32, uint32(lo))
	binary.LittleEndian.PutUint32(b32[4:], uint32(hi))
	assert.Equal(t, 70000, RMS(b32, 4))
}

func TestRMSMalformedIsSilence(t *testing.T) {
	assert.Equal(t, 0, RMS([]byte{1, 2, 3}, 2))
	assert.Equal(t, 0, RMS([]byte{1, 2}, 0))
	assert.Equal(t, 0, RMS([]byte{1, 2, 3, 4, 5}, 5))

	f := Frame{BitsPerSample: 12, Data: pcm16(1000)}
	assert.Equal(t, 0, f.RMS())
}

func TestFrameBinaryRoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 1, 500, time.UTC)
	in := Frame{Seq: 42, Timestamp: at, SampleRate: 16000, BitsPerSample: 16, Data: pcm16(1, 2, 3)}
	raw, err := in.MarshalBinary()
	require.NoError(t, err)

	var out Frame
	require.NoError(t, out.UnmarshalBinary(raw))
	assert.Equal(t, in, out)
	assert.Equal(t, Mono(16000, 16), out.Format())

	local := Frame{Timestamp: time.Unix(0, 1234567), BitsPerSample: 16}
	raw, err = local.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, out.UnmarshalBinary(raw))
	assert.Equal(t, time.UTC, out.Timestamp.Location())
	assert.True(t, local.Timestamp.Equal(out.Timestamp))

	raw, err = (&Frame{BitsPerSample: 16}).MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, out.UnmarshalBinary(raw))
	assert.True(t, out.Timestamp.IsZero())

	assert.Error(t, out.UnmarshalBinary(raw[:10]))
	assert.Error(t, out.UnmarshalBinary(raw[:len(raw)-1]))
}

func TestFormatSizes(t *testing.T) {
	f := Mono(16000, 16)
	assert.Equal(t, 960, f.FrameBytes(30*time.Millisecond))
	assert.Equal(t, time.Second, f.Duration(32000))
	assert.ErrorIs(t, Format{SampleRate: 16000, BitsPerSample: 16, Channels: 2}.Validate(), ErrUnsupportedFormat)
}

func TestWAVRoundTrip(t *testing.T) {
	format := Mono(8000, 16)
	frames := []Frame{{Data: pcm16(1, 2)}, {Data: pcm16(3)}}
	wav, err := WAVBytes(format, frames)
	require.NoError(t, err)
	require.Len(t, wav, 44+6)

	r := bytes.NewReader(wav)
	got, size, err := ReadWAVHeader(r)
	require.NoError(t, err)
	assert.Equal(t, format, got)
	assert.Equal(t, uint32(6), size)

	rest, _ := io.ReadAll(r)
	assert.Equal(t, pcm16(1, 2, 3), rest)
}

func TestReadWAVHeaderSkipsUnknownChunks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeWAV(&buf, Mono(16000, 16), pcm16(7)))
	raw := buf.Bytes()

	// splice a LIST chunk between fmt and data
	spliced := append([]byte{}, raw[:36]...)
	spliced = append(spliced, []byte("LIST\x03\x00\x00\x00abc\x00")...)
	spliced = append(spliced, raw[36:]...)

	r := bytes.NewReader(spliced)
	_, size, err := ReadWAVHeader(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), size)
	rest, _ := io.ReadAll(r)
	assert.Equal(t, pcm16(7), rest)
}

func TestReadWAVHeaderRejectsNonWAV(t *testing.T) {
	_, _, err := ReadWAVHeader(bytes.NewReader([]byte("OggS0000000000000000")))
	assert.ErrorIs(t, err, ErrNotWAV)
}

func TestReaderSourceChunksFrames(t *testing.T) {
	format := Mono(1000, 16) // 10ms = 10 samples = 20 bytes
	data := bytes.Repeat([]byte{1, 0}, 25)
	src, err := NewReaderSource(bytes.NewReader(data), format, 10*time.Millisecond, false)
	require.NoError(t, err)

	ctx := context.Background()
	f1, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, f1.Data, 20)
	assert.Equal(t, uint64(1), f1.Seq)

	f2, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f2.Seq)

	tail, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, tail.Data, 10)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderSourceHonoursCancellation(t *testing.T) {
	src, err := NewReaderSource(bytes.NewReader(make([]byte, 1000)), Mono(1000, 16), 10*time.Millisecond, true)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReaderSourceUnblocksIdleReaderOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	src, err := NewReaderSource(pr, Mono(16000, 16), 30*time.Millisecond, false)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan error, 1)
	go func() {
		_, err := src.Next(ctx)
		got <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-got:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Next still blocked after cancel")
	}
}

func TestReaderSourceResumesAfterCancelledWait(t *testing.T) {
	pr, pw := io.Pipe()
	src, err := NewReaderSource(pr, Mono(1000, 16), 10*time.Millisecond, false)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = src.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		_, _ = pw.Write(bytes.Repeat([]byte{7, 0}, 10))
		_ = pw.Close()
	}()
	f, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Len(t, f.Data, 20)

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderSourceReportsReadFailure(t *testing.T) {
	pr, pw := io.Pipe()
	boom := errors.New("device gone")
	require.NoError(t, pw.CloseWithError(boom))

	src, err := NewReaderSource(pr, Mono(1000, 16), 10*time.Millisecond, false)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestOpenFileSourceDetectsWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.wav")
	var buf bytes.Buffer
	require.NoError(t, EncodeWAV(&buf, Mono(8000, 8), make([]byte, 240)))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	src, err := OpenFileSource(path, Mono(16000, 16), 30*time.Millisecond, false)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, Mono(8000, 8), src.Format())
	f, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.Data, 240)
}

func TestOpenFileSourceRawFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.raw")
	require.NoError(t, os.WriteFile(path, make([]byte, 960), 0o644))

	src, err := OpenFileSource(path, Mono(16000, 16), 30*time.Millisecond, false)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, Mono(16000, 16), src.Format())
}

func TestStreamSourceRechunksAndFillsSilence(t *testing.T) {
	src, err := NewStreamSource(Mono(1000, 16), 10*time.Millisecond, 4)
	require.NoError(t, err)

	assert.Equal(t, 0, src.Feed(make([]byte, 15)))
	assert.Equal(t, 1, src.Feed(bytes.Repeat([]byte{9}, 10)))

	ctx := context.Background()
	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, f.Data, 20)
	assert.Equal(t, byte(9), f.Data[19])

	// nothing fed: a silent frame arrives after one period
	start := time.Now()
	silent, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, RMS(silent.Data, 2))
	assert.Len(t, silent.Data, 20)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	assert.Greater(t, silent.Seq, f.Seq)
}

func TestStreamSourceDropsOldestWhenBehind(t *testing.T) {
	src, err := NewStreamSource(Mono(1000, 16), 10*time.Millisecond, 2)
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		src.Feed(bytes.Repeat([]byte{byte(i)}, 20))
	}
	assert.Equal(t, uint64(2), src.Dropped())

	ctx := context.Background()
	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(3), f.Data[0])

	require.NoError(t, src.Close())
	f, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(4), f.Data[0])

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, src.Feed(make([]byte, 20)))
}

func TestChunkHeader(t *testing.T) {
	msg := AppendChunk(nil, Mono(16000, 16), []byte{1, 2, 3, 4})
	require.Len(t, msg, ChunkHeaderLen+4)

	f, pcm, err := ParseChunk(msg)
	require.NoError(t, err)
	assert.Equal(t, Mono(16000, 16), f)
	assert.Equal(t, []byte{1, 2, 3, 4}, pcm)

	// reserved bytes left zero by older clients read as 16-bit
	legacy := []byte{0x80, 0xbb, 0, 0, 1, 0, 0, 0}
	f, pcm, err = ParseChunk(legacy)
	require.NoError(t, err)
	assert.Equal(t, Mono(48000, 16), f)
	assert.Empty(t, pcm)

	_, _, err = ParseChunk([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortChunk)
}
