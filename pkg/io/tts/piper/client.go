package piper

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xpanvictor/hearken/pkg/io/audio"
	"github.com/xpanvictor/hearken/pkg/io/tts"
)

type Piper struct {
	BaseURL string        // e.g. "http://tts:5000"
	Client  *http.Client  // inject; default if nil
	Voice   string        // default voice (override per-call)
	Rate    int           // sample rate of raw (non-WAV) responses, 22050
	Timeout time.Duration // request timeout per phrase
}

func New(bu, voice string) *Piper {
	return &Piper{BaseURL: strings.TrimRight(bu, "/"), Voice: voice}
}

func (p *Piper) Name() string { return "piper" }

// DoTTS requests speech for text. The caller must Close the body.
func (p *Piper) DoTTS(ctx context.Context, text string, optVoice string) (io.ReadCloser, string, error) {
	if text == "" {
		return nil, "", tts.ErrEmptyText
	}
	voice := ifEmpty(optVoice, p.Voice)

	// rhasspy/wyoming-piper HTTP: GET /api/text-to-speech?text=...&voice=...
	u, err := url.Parse(p.BaseURL + "/api/text-to-speech")
	if err != nil {
		return nil, "", err
	}
	q := u.Query()
	q.Set("text", text)
	if voice != "" {
		q.Set("voice", voice)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "audio/wav")

	hc := p.Client
	if hc == nil {
		hc = &http.Client{Timeout: ifZeroDur(p.Timeout, 30*time.Second)}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("tts http request failed: %w (url=%s)", err, u.String())
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, "", fmt.Errorf("tts http %d: %s (url=%s, dur=%s)", resp.StatusCode, string(b), u.String(), time.Since(start))
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Synthesize implements tts.Synthesizer. WAV bodies are decoded from their
// header; anything else is taken as 16-bit mono PCM at Rate.
func (p *Piper) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	body, _, err := p.DoTTS(ctx, text, "")
	if err != nil {
		return tts.Clip{}, err
	}
	defer body.Close()

	br := bufio.NewReader(body)
	format := audio.Mono(ifZero(p.Rate, 22050), 16)
	if magic, err := br.Peek(4); err == nil && bytes.Equal(magic, []byte("RIFF")) {
		format, _, err = audio.ReadWAVHeader(br)
		if err != nil {
			return tts.Clip{}, fmt.Errorf("decoding piper WAV: %w", err)
		}
	}

	pcm, err := io.ReadAll(br)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("reading piper audio: %w", err)
	}
	return tts.Clip{Text: text, Format: format, PCM: pcm}, nil
}

func ifEmpty(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

func ifZero(n, d int) int {
	if n == 0 {
		return d
	}
	return n
}

func ifZeroDur(n, d time.Duration) time.Duration {
	if n == 0 {
		return d
	}
	return n
}
