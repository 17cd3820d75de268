package app

import (
	"fmt"
	"os"
	"time"

	"github.com/xpanvictor/hearken/internal/config"
	"github.com/xpanvictor/hearken/pkg/Logger"
	hio "github.com/xpanvictor/hearken/pkg/io"
	"github.com/xpanvictor/hearken/pkg/io/audio"
	"github.com/xpanvictor/hearken/pkg/io/stt"
	sttopenai "github.com/xpanvictor/hearken/pkg/io/stt/openai"
	"github.com/xpanvictor/hearken/pkg/io/stt/whisper"
	"github.com/xpanvictor/hearken/pkg/io/tts"
	ttsopenai "github.com/xpanvictor/hearken/pkg/io/tts/openai"
	"github.com/xpanvictor/hearken/pkg/io/tts/piper"
)

// playbackChunk is the audio carried by one websocket message.
const playbackChunk = 100 * time.Millisecond

// EngineFactory builds the speech engines named in the settings.
type EngineFactory struct {
	config *config.Settings
	logger *Logger.Logger
}

func NewEngineFactory(cfg *config.Settings, logger *Logger.Logger) *EngineFactory {
	if logger == nil {
		logger = Logger.Nop()
	}
	return &EngineFactory{config: cfg, logger: logger}
}

func (f *EngineFactory) CreateSTT() (stt.Engine, error) {
	c := f.config.STT
	switch c.Engine {
	case "whisper":
		f.logger.Infof("stt: whisper at %s", c.URL)
		return whisper.NewWhisperClient(c.URL, c.Language, c.Prompt, f.logger.Named("whisper")), nil
	case "openai":
		if f.config.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("stt engine openai needs openai.api_key")
		}
		f.logger.Info("stt: openai")
		return sttopenai.New(f.config.OpenAI.APIKey, c.Language, c.Prompt), nil
	}
	return nil, fmt.Errorf("unknown stt engine %q", c.Engine)
}

// CreateTTS builds the output engine. pub is used by websocket playback.
func (f *EngineFactory) CreateTTS(pub *hio.Publisher) (tts.Engine, error) {
	c := f.config.TTS
	var synth tts.Synthesizer
	switch c.Engine {
	case "console":
		return tts.NewConsole(os.Stdout), nil
	case "piper":
		synth = piper.New(c.URL, c.Voice)
	case "openai":
		if f.config.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("tts engine openai needs openai.api_key")
		}
		synth = ttsopenai.New(f.config.OpenAI.APIKey, c.Voice)
	default:
		return nil, fmt.Errorf("unknown tts engine %q", c.Engine)
	}

	playback, err := f.createPlayback(pub)
	if err != nil {
		return nil, err
	}
	f.logger.Infof("tts: %s with %s playback", synth.Name(), c.Playback)
	return tts.NewVoice(synth, playback, f.logger.Named("voice")), nil
}

func (f *EngineFactory) createPlayback(pub *hio.Publisher) (tts.Playback, error) {
	switch f.config.TTS.Playback {
	case "", "none":
		return tts.Discard{}, nil
	case "file":
		return tts.NewFilePlayback(f.config.TTS.OutDir)
	case "websocket":
		return tts.NewPublisherPlayback(pub, playbackChunk), nil
	}
	return nil, fmt.Errorf("unknown tts playback %q", f.config.TTS.Playback)
}

// CreateSource opens the configured audio input. The StreamSource is also
// returned when audio arrives over websocket, nil otherwise.
func (f *EngineFactory) CreateSource() (audio.FrameSource, *audio.StreamSource, error) {
	a := f.config.Audio
	format := audio.Mono(a.SampleRate, a.BitsPerSample)
	switch a.Source {
	case "stdin":
		src, err := audio.NewReaderSource(os.Stdin, format, a.FrameDuration, a.Realtime)
		return src, nil, err
	case "file":
		src, err := audio.OpenFileSource(a.Path, format, a.FrameDuration, a.Realtime)
		return src, nil, err
	case "websocket":
		src, err := audio.NewStreamSource(format, a.FrameDuration, a.IngestBuffer)
		return src, src, err
	}
	return nil, nil, fmt.Errorf("unknown audio source %q", a.Source)
}
