package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"mockinterview/internal/domain"
	"mockinterview/internal/logging"
	"mockinterview/internal/ports"
	"mockinterview/internal/providers/wsstream"
)

const defaultBaseURL = "https://api.deepgram.com/v1"

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Provider implements ports.TranscriptionProvider for Deepgram live
// transcription. Clarity comes from the alternative's confidence and speed
// from its word timings.
type Provider struct {
	cfg    Config
	logger zerolog.Logger
}

func NewProvider(cfg Config, logger zerolog.Logger) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Provider{cfg: cfg, logger: logging.Component(logger, "deepgram")}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	session, err := wsstream.Dial(ctx, wsURL, wsstream.Options{
		Header:       headers,
		CloseMessage: closeStreamMessage,
		Decode:       decodeResponse,
		Logger:       p.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}
	return session, nil
}

type word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type alternative struct {
	Transcript string   `json:"transcript"`
	Confidence *float64 `json:"confidence"`
	Words      []word   `json:"words"`
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`
}

func decodeResponse(payload []byte) ([]domain.TranscriptEvent, error) {
	var response deepgramResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", wsstream.ErrUndecodable, err)
	}

	if strings.EqualFold(response.Type, "Error") {
		message := strings.TrimSpace(firstNonEmpty(response.Message, response.Description))
		if message == "" {
			message = "deepgram returned an unknown error"
		}
		return nil, errors.New(message)
	}
	if len(response.Channel.Alternatives) == 0 {
		return nil, nil
	}

	best := response.Channel.Alternatives[0]
	text := strings.TrimSpace(best.Transcript)
	isFinal := response.IsFinal || response.SpeechFinal
	if text == "" && !isFinal {
		// interim results during silence
		return nil, nil
	}

	event := domain.TranscriptEvent{
		Text:    text,
		IsFinal: isFinal,
	}
	if isFinal && text != "" {
		event.Clarity = best.Confidence
		event.SpeedWPM = wordsPerMinute(best.Words)
	}
	return []domain.TranscriptEvent{event}, nil
}

// wordsPerMinute is nil when the segment carries no usable timings.
func wordsPerMinute(words []word) *float64 {
	if len(words) == 0 {
		return nil
	}
	spoken := words[len(words)-1].End - words[0].Start
	if spoken <= 0 {
		return nil
	}
	return domain.Float(float64(len(words)) / (spoken / 60))
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("interim_results", "true")
	query.Set("smart_format", strconv.FormatBool(providerCfg.SmartFormat))

	// Deepgram detects containerised audio itself; raw PCM must be described.
	if streamCfg.Container == "" {
		if streamCfg.SampleRate <= 0 {
			streamCfg.SampleRate = 16000
		}
		if streamCfg.Channels <= 0 {
			streamCfg.Channels = 1
		}
		query.Set("encoding", "linear16")
		query.Set("sample_rate", strconv.Itoa(streamCfg.SampleRate))
		query.Set("channels", strconv.Itoa(streamCfg.Channels))
	}

	language := firstNonEmpty(streamCfg.Language, providerCfg.Language)
	if language != "" {
		query.Set("language", language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
