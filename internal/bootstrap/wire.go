package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"mockinterview/internal/audio"
	"mockinterview/internal/cleanup"
	"mockinterview/internal/config"
	"mockinterview/internal/logging"
	"mockinterview/internal/observe"
	"mockinterview/internal/ports"
	"mockinterview/internal/providers/deepgram"
	"mockinterview/internal/providers/interviewer"
	"mockinterview/internal/providers/transcriber"
	"mockinterview/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config    config.Config
	Logger    zerolog.Logger
	Metrics   *observe.Metrics
	Chat      *usecase.ChatShell
	Recorders *RecorderFactory
}

// RecorderFactory opens recorder modals that share one capture stack.
type RecorderFactory struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	cleaner  ports.TranscriptCleaner
	cfg      usecase.Config
	logger   zerolog.Logger
	metrics  *observe.Metrics
}

// New opens a recorder reporting to events; onClose receives its result.
func (f *RecorderFactory) New(events ports.RecorderEvents, onClose usecase.CloseFunc) *usecase.Recorder {
	return usecase.NewRecorder(
		f.audio,
		f.provider,
		f.cleaner,
		events,
		f.cfg,
		onClose,
		usecase.WithLogger(f.logger),
		usecase.WithMetrics(f.metrics),
	)
}

// Build wires all backend dependencies from the loaded configuration.
func Build(chatEvents ports.ChatEvents) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWith(cfg, chatEvents)
}

// BuildWith wires dependencies from an explicit configuration.
func BuildWith(cfg config.Config, chatEvents ports.ChatEvents) (Services, error) {
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	metrics := observe.NewMetrics()

	engine, err := cleanup.Load(cfg.Cleanup.Path, cfg.Cleanup.IterationLimit)
	if err != nil {
		return Services{}, err
	}
	logger.Debug().Str("path", cfg.Cleanup.Path).Int("rules", engine.Len()).Msg("cleanup rules loaded")

	provider, err := newTranscriptionProvider(cfg.Transcription, logger)
	if err != nil {
		return Services{}, err
	}

	recorders := &RecorderFactory{
		audio:    audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		provider: provider,
		cleaner:  engine,
		cfg: usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
				Container:   cfg.Audio.Container,
				Codec:       cfg.Audio.Codec,
			},
			Streaming: ports.StreamingConfig{
				SampleRate: cfg.Audio.SampleRate,
				Channels:   cfg.Audio.Channels,
				Container:  cfg.Audio.Container,
				Language:   cfg.Transcription.Language,
			},
			ChunkInterval: cfg.Session.ChunkInterval,
			ReadSize:      cfg.Session.ReadSize,
			DrainGrace:    cfg.Session.DrainGrace,
		},
		logger:  logger,
		metrics: metrics,
	}

	chat := usecase.NewChatShell(interviewer.NewTransport(cfg.Chat.URL), chatEvents, metrics, logger)

	return Services{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Chat:      chat,
		Recorders: recorders,
	}, nil
}

func newTranscriptionProvider(cfg config.TranscriptionConfig, logger zerolog.Logger) (ports.TranscriptionProvider, error) {
	switch cfg.Provider {
	case config.ProviderSocket:
		return transcriber.NewProvider(transcriber.Config{URL: cfg.URL}, logger), nil
	case config.ProviderDeepgram:
		return deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}
