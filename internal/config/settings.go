package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AudioConfig struct {
	Source        string        `mapstructure:"source"` // stdin | file | websocket
	Path          string        `mapstructure:"path"`
	SampleRate    int           `mapstructure:"sample_rate"`
	BitsPerSample int           `mapstructure:"bits_per_sample"`
	FrameDuration time.Duration `mapstructure:"frame_duration"`
	Realtime      bool          `mapstructure:"realtime"`
	IngestBuffer  int           `mapstructure:"ingest_buffer"` // frames held for websocket ingest
}

// FrameBytes is the size of one nominal frame in bytes.
func (a AudioConfig) FrameBytes() int {
	samples := int(int64(a.SampleRate) * int64(a.FrameDuration) / int64(time.Second))
	return samples * (a.BitsPerSample / 8)
}

type VADConfig struct {
	InitialThreshold float64 `mapstructure:"initial_threshold"`
	SNRBound         int     `mapstructure:"snr_bound"`
	Meter            bool    `mapstructure:"meter"`
	MeterWidth       int     `mapstructure:"meter_width"`
}

type SegmenterConfig struct {
	HangoverFrames int           `mapstructure:"hangover_frames"`
	MinimumCapture time.Duration `mapstructure:"minimum_capture"`
}

type QueueConfig struct {
	Capacity    int           `mapstructure:"capacity"`
	Order       string        `mapstructure:"order"` // oldest | newest
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
	DrainWait   time.Duration `mapstructure:"drain_wait"`
}

type STTConfig struct {
	Engine   string `mapstructure:"engine"` // whisper | openai
	URL      string `mapstructure:"url"`
	Language string `mapstructure:"language"`
	Prompt   string `mapstructure:"prompt"`
}

type TTSConfig struct {
	Engine   string `mapstructure:"engine"` // console | piper | openai
	URL      string `mapstructure:"url"`
	Voice    string `mapstructure:"voice"`
	Playback string `mapstructure:"playback"` // none | file | websocket
	OutDir   string `mapstructure:"out_dir"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type DBConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Name      string        `mapstructure:"name"`
	PoolSize  int           `mapstructure:"pool_size"`
	Retention time.Duration `mapstructure:"retention"`
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Pass      string `mapstructure:"pass"`
	Channel   string `mapstructure:"channel"`
	RecentKey string `mapstructure:"recent_key"`
	RecentLen int64  `mapstructure:"recent_len"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type Settings struct {
	Audio     AudioConfig     `mapstructure:"audio"`
	VAD       VADConfig       `mapstructure:"vad"`
	Segmenter SegmenterConfig `mapstructure:"segmenter"`
	Queues    QueueConfig     `mapstructure:"queues"`
	STT       STTConfig       `mapstructure:"stt"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Env       string          `mapstructure:"env"`
	Debug     bool            `mapstructure:"debug"`
}

// FramePeriod is the nominal duration of one frame.
func (s *Settings) FramePeriod() time.Duration {
	return s.Audio.FrameDuration
}

// MinimumCaptureFrames converts the minimum capture duration into a frame count.
func (s *Settings) MinimumCaptureFrames() int {
	if s.Audio.FrameDuration <= 0 {
		return 0
	}
	return int(math.Ceil(float64(s.Segmenter.MinimumCapture) / float64(s.Audio.FrameDuration)))
}

func (s *Settings) Validate() error {
	var errs []error
	if s.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", s.Audio.SampleRate))
	}
	switch s.Audio.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("audio.bits_per_sample must be 8, 16, 24 or 32, got %d", s.Audio.BitsPerSample))
	}
	if s.Audio.FrameDuration <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_duration must be positive, got %s", s.Audio.FrameDuration))
	}
	switch s.Audio.Source {
	case "stdin", "websocket":
	case "file":
		if s.Audio.Path == "" {
			errs = append(errs, errors.New("audio.path is required for the file source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audio.source %q", s.Audio.Source))
	}
	if s.Segmenter.HangoverFrames <= 0 {
		errs = append(errs, fmt.Errorf("segmenter.hangover_frames must be positive, got %d", s.Segmenter.HangoverFrames))
	}
	if s.Segmenter.MinimumCapture < 0 {
		errs = append(errs, fmt.Errorf("segmenter.minimum_capture must not be negative, got %s", s.Segmenter.MinimumCapture))
	}
	if s.Queues.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("queues.capacity must be positive, got %d", s.Queues.Capacity))
	}
	if o := s.Queues.Order; o != "oldest" && o != "newest" {
		errs = append(errs, fmt.Errorf("queues.order must be oldest or newest, got %q", o))
	}
	if s.VAD.InitialThreshold <= 0 {
		errs = append(errs, fmt.Errorf("vad.initial_threshold must be positive, got %v", s.VAD.InitialThreshold))
	}
	if s.VAD.SNRBound <= 0 {
		errs = append(errs, fmt.Errorf("vad.snr_bound must be positive, got %d", s.VAD.SNRBound))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("debug", false)

	v.SetDefault("audio.source", "stdin")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.bits_per_sample", 16)
	v.SetDefault("audio.frame_duration", 30*time.Millisecond)
	v.SetDefault("audio.realtime", false)
	v.SetDefault("audio.ingest_buffer", 64)

	v.SetDefault("vad.initial_threshold", 30.0)
	v.SetDefault("vad.snr_bound", 200)
	v.SetDefault("vad.meter", false)
	v.SetDefault("vad.meter_width", 60)

	v.SetDefault("segmenter.hangover_frames", 10)
	v.SetDefault("segmenter.minimum_capture", 1500*time.Millisecond)

	v.SetDefault("queues.capacity", 10)
	v.SetDefault("queues.order", "oldest")
	v.SetDefault("queues.item_timeout", 60*time.Second)
	v.SetDefault("queues.drain_wait", 10*time.Second)

	v.SetDefault("stt.engine", "whisper")
	v.SetDefault("stt.url", "http://localhost:9000")
	v.SetDefault("stt.language", "en")

	v.SetDefault("tts.engine", "console")
	v.SetDefault("tts.url", "http://localhost:5000")
	v.SetDefault("tts.playback", "none")
	v.SetDefault("tts.out_dir", "out")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.pool_size", 5)
	v.SetDefault("database.retention", 7*24*time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.channel", "hearken:transcripts")
	v.SetDefault("redis.recent_key", "hearken:recent")
	v.SetDefault("redis.recent_len", 50)
}

// Load reads config_<env>.yaml from the working directory.
func Load() (*Settings, error) {
	return LoadFrom(".")
}

// LoadFrom reads config_<env>.yaml from dir. A missing file is not an error;
// defaults and HEARKEN_* environment variables still apply.
func LoadFrom(dir string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("hearken")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config_" + genEnv(v))
	v.AddConfigPath(dir)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &settings, nil
}

func genEnv(v *viper.Viper) string {
	env := v.GetString("env")
	if env == "" {
		return "dev"
	}
	return env
}
