package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xpanvictor/hearken/pkg/Logger"
	"github.com/xpanvictor/hearken/pkg/io/stt"
	"github.com/xpanvictor/hearken/pkg/io/stt/segmenter"
)

// TranscriptionResponse represents the response from Whisper STT service
type TranscriptionResponse struct {
	Text     string                 `json:"text"`
	Language string                 `json:"language"`
	Segments []TranscriptionSegment `json:"segments,omitempty"`
}

// TranscriptionSegment represents a timed segment of transcription
type TranscriptionSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	ID    int     `json:"id"`
}

// WhisperClient talks to a whisper ASR webservice (`POST /asr`).
type WhisperClient struct {
	baseURL    string
	language   string
	prompt     string
	httpClient *http.Client
	logger     *Logger.Logger
}

func NewWhisperClient(baseURL, language, prompt string, logger *Logger.Logger) *WhisperClient {
	if logger == nil {
		logger = Logger.Nop()
	}
	return &WhisperClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		prompt:   prompt,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (w *WhisperClient) Name() string { return "whisper" }

// Transcribe uploads the utterance as a WAV file and returns its text.
func (w *WhisperClient) Transcribe(ctx context.Context, utt *segmenter.Utterance) (stt.Transcript, error) {
	if utt == nil || utt.Len() == 0 {
		return stt.Transcript{}, stt.ErrEmptyUtterance
	}

	wavData, err := utt.WAV()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("failed to convert audio to WAV: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio_file", "audio.wav")
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return stt.Transcript{}, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return stt.Transcript{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.requestURL(), &body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		w.logger.Errorf("Whisper service error (status %d): %s", resp.StatusCode, string(responseBody))
		return stt.Transcript{}, fmt.Errorf("whisper service returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	transcript := stt.Transcript{
		UtteranceID:   utt.ID,
		Source:        stt.SourceVoice,
		Engine:        w.Name(),
		AudioDuration: utt.Duration(),
		GeneratedAt:   time.Now(),
	}

	var decoded TranscriptionResponse
	if err := json.Unmarshal(responseBody, &decoded); err != nil {
		// some deployments answer with output=txt regardless
		w.logger.Debugf("treating whisper response as plain text: %q", string(responseBody))
		transcript.Content = strings.TrimSpace(string(responseBody))
		transcript.Language = w.language
		return transcript, nil
	}

	transcript.Content = strings.TrimSpace(decoded.Text)
	transcript.Language = decoded.Language
	if transcript.Language == "" {
		transcript.Language = w.language
	}
	w.logger.Debugf("Whisper transcription: %s (language: %s)", transcript.Content, transcript.Language)
	return transcript, nil
}

func (w *WhisperClient) requestURL() string {
	q := url.Values{}
	q.Set("encode", "true")
	q.Set("task", "transcribe")
	q.Set("output", "json")
	if w.language != "" {
		q.Set("language", w.language)
	}
	if w.prompt != "" {
		q.Set("initial_prompt", w.prompt)
	}
	return w.baseURL + "/asr?" + q.Encode()
}
