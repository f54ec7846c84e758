package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderSocket   = "socket"
	ProviderDeepgram = "deepgram"
)

// Config stores runtime configuration for the interview client.
type Config struct {
	Chat          ChatConfig          `yaml:"chat"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Audio         AudioConfig         `yaml:"audio"`
	Session       SessionConfig       `yaml:"session"`
	Cleanup       CleanupConfig       `yaml:"cleanup"`
	Log           LogConfig           `yaml:"log"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

type ChatConfig struct {
	URL string `yaml:"url"`
}

type TranscriptionConfig struct {
	Provider string         `yaml:"provider"`
	URL      string         `yaml:"url"`
	Language string         `yaml:"language"`
	Deepgram DeepgramConfig `yaml:"deepgram"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	SmartFormat bool   `yaml:"smart_format"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"ffmpeg_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	Container       string `yaml:"container"`
	Codec           string `yaml:"codec"`
}

type SessionConfig struct {
	ChunkInterval time.Duration `yaml:"chunk_interval"`
	ReadSize      int           `yaml:"read_size"`
	DrainGrace    time.Duration `yaml:"drain_grace"`
}

type CleanupConfig struct {
	Path           string `yaml:"rules_file"`
	IterationLimit int    `yaml:"iteration_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Addr enables the /metrics endpoint when set, e.g. "127.0.0.1:9464".
	Addr string `yaml:"addr"`
}

// Load resolves configuration from environment variables and defaults, then
// overlays the YAML file named by MOCKINTERVIEW_CONFIG when set.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	rulesPath := strings.TrimSpace(os.Getenv("MOCKINTERVIEW_RULES_FILE"))
	if rulesPath == "" {
		rulesPath = firstExisting(
			filepath.Join(home, ".config", "mockinterview", "cleanup.rules"),
			filepath.Join(home, ".mockinterview.rules"),
		)
	}

	cfg := Config{
		Chat: ChatConfig{
			URL: envOrDefault("MOCKINTERVIEW_CHAT_URL", "ws://localhost:8000/interview"),
		},
		Transcription: TranscriptionConfig{
			Provider: strings.ToLower(envOrDefault("MOCKINTERVIEW_TRANSCRIPTION_PROVIDER", ProviderSocket)),
			URL:      envOrDefault("MOCKINTERVIEW_TRANSCRIPTION_URL", "ws://localhost:8000/transcribe"),
			Language: strings.TrimSpace(os.Getenv("MOCKINTERVIEW_LANGUAGE")),
			Deepgram: DeepgramConfig{
				APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
				APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
				Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
				Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
				SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			},
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("MOCKINTERVIEW_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("MOCKINTERVIEW_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("MOCKINTERVIEW_AUDIO_INPUT_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("MOCKINTERVIEW_SAMPLE_RATE", 48000),
			Channels:   envOrDefaultInt("MOCKINTERVIEW_CHANNELS", 1),
			Container:  envOrDefault("MOCKINTERVIEW_AUDIO_CONTAINER", "webm"),
			Codec:      envOrDefault("MOCKINTERVIEW_AUDIO_CODEC", "libopus"),
		},
		Session: SessionConfig{
			ChunkInterval: time.Duration(envOrDefaultInt("MOCKINTERVIEW_CHUNK_INTERVAL_MS", 500)) * time.Millisecond,
			ReadSize:      envOrDefaultInt("MOCKINTERVIEW_READ_SIZE", 4096),
			DrainGrace:    time.Duration(firstNonNegativeInt("MOCKINTERVIEW_DRAIN_GRACE_MS", "DEEPGRAM_STREAMING_GRACE_MS", 1000)) * time.Millisecond,
		},
		Cleanup: CleanupConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("MOCKINTERVIEW_RULE_ITERATION_LIMIT", 30),
		},
		Log: LogConfig{
			Level:  envOrDefault("MOCKINTERVIEW_LOG_LEVEL", "info"),
			Format: envOrDefault("MOCKINTERVIEW_LOG_FORMAT", "console"),
		},
		Metrics: MetricsConfig{
			Addr: strings.TrimSpace(os.Getenv("MOCKINTERVIEW_METRICS_ADDR")),
		},
	}

	if path := strings.TrimSpace(os.Getenv("MOCKINTERVIEW_CONFIG")); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	normalize(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	if err := Overlay(cfg, f); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

// Overlay decodes YAML from r over cfg. Keys absent from the document keep
// their current values; unknown keys are rejected.
func Overlay(cfg *Config, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// Validate reports every setting that cannot be normalised into a usable value.
func Validate(cfg Config) error {
	var errs []error
	switch cfg.Transcription.Provider {
	case ProviderSocket, ProviderDeepgram:
	default:
		errs = append(errs, fmt.Errorf("transcription.provider %q is invalid; valid values: socket, deepgram", cfg.Transcription.Provider))
	}
	if cfg.Transcription.Provider == ProviderSocket && strings.TrimSpace(cfg.Transcription.URL) == "" {
		errs = append(errs, errors.New("transcription.url is required for the socket provider"))
	}
	if strings.TrimSpace(cfg.Chat.URL) == "" {
		errs = append(errs, errors.New("chat.url is required"))
	}
	return errors.Join(errs...)
}

func normalize(cfg *Config) {
	cfg.Transcription.Provider = strings.ToLower(strings.TrimSpace(cfg.Transcription.Provider))
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 48000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Cleanup.IterationLimit <= 0 {
		cfg.Cleanup.IterationLimit = 30
	}
	if cfg.Session.ChunkInterval <= 0 {
		cfg.Session.ChunkInterval = 500 * time.Millisecond
	}
	if cfg.Session.ReadSize < 256 {
		cfg.Session.ReadSize = 4096
	}
	if cfg.Session.DrainGrace < 0 {
		cfg.Session.DrainGrace = time.Second
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		cfg.Log.Format = "console"
	}
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func firstNonNegativeInt(primary string, secondary string, fallback int) int {
	for _, key := range []string{primary, secondary} {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			continue
		}
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}
