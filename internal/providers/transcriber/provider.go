// Package transcriber talks to the interview transcription backend.
package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"mockinterview/internal/domain"
	"mockinterview/internal/logging"
	"mockinterview/internal/ports"
	"mockinterview/internal/providers/wsstream"
)

const (
	eventTranscript = "transcript"
	eventError      = "error"
)

var audioEndMessage = []byte(`{"event":"audio_end"}`)

// Config controls the transcription backend connection.
type Config struct {
	URL string
}

// Provider implements ports.TranscriptionProvider for the backend socket.
type Provider struct {
	cfg    Config
	logger zerolog.Logger
}

func NewProvider(cfg Config, logger zerolog.Logger) *Provider {
	return &Provider{cfg: cfg, logger: logging.Component(logger, "transcriber")}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if strings.TrimSpace(p.cfg.URL) == "" {
		return nil, errors.New("transcription URL is not configured")
	}

	streamURL, err := buildStreamURL(p.cfg.URL, cfg)
	if err != nil {
		return nil, err
	}

	return wsstream.Dial(ctx, streamURL, wsstream.Options{
		CloseMessage: audioEndMessage,
		Decode:       decodeEnvelope,
		Logger:       p.logger,
	})
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type transcriptPayload struct {
	Transcript             string   `json:"transcript"`
	IsFinal                bool     `json:"isFinal"`
	SpeechClarity          *float64 `json:"speechClarity"`
	AverageSpeedWPMCurrent *float64 `json:"averageSpeedWPMCurrent"`
	AverageSpeedWPM        *float64 `json:"averageSpeedWPM"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func decodeEnvelope(payload []byte) ([]domain.TranscriptEvent, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", wsstream.ErrUndecodable, err)
	}

	switch env.Event {
	case eventTranscript:
		var data transcriptPayload
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: transcript data: %v", wsstream.ErrUndecodable, err)
		}
		return []domain.TranscriptEvent{toEvent(data)}, nil
	case eventError:
		var data errorPayload
		_ = json.Unmarshal(env.Data, &data)
		message := strings.TrimSpace(data.Message)
		if message == "" {
			message = "transcription backend returned an unknown error"
		}
		return nil, errors.New(message)
	default:
		return nil, nil
	}
}

func toEvent(data transcriptPayload) domain.TranscriptEvent {
	speed := data.AverageSpeedWPMCurrent
	if speed == nil {
		speed = data.AverageSpeedWPM
	}
	return domain.TranscriptEvent{
		Text:     data.Transcript,
		IsFinal:  data.IsFinal,
		Clarity:  data.SpeechClarity,
		SpeedWPM: speed,
	}
}

// buildStreamURL maps http(s) to ws(s) and describes the audio format in the
// query.
func buildStreamURL(base string, cfg ports.StreamingConfig) (string, error) {
	base = strings.TrimSpace(base)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	streamURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid transcription URL: %w", err)
	}
	if streamURL.Scheme != "ws" && streamURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid transcription URL scheme %q", streamURL.Scheme)
	}

	query := streamURL.Query()
	if cfg.Container != "" {
		query.Set("container", cfg.Container)
	}
	if cfg.SampleRate > 0 {
		query.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	}
	if cfg.Channels > 0 {
		query.Set("channels", strconv.Itoa(cfg.Channels))
	}
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	streamURL.RawQuery = query.Encode()
	return streamURL.String(), nil
}
