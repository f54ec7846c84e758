package ports

import (
	"context"
	"errors"
	"io"

	"mockinterview/internal/domain"
)

// ErrDeviceUnavailable marks capture failures caused by a missing recorder or
// input device rather than a refused permission.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	Container   string
	Codec       string
}

// AudioSession is a live capture stream. Stop releases every device track and
// is safe to call more than once.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture acquires microphone capture streams.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate int
	Channels   int
	Container  string
	Language   string
}

// StreamingSession is an open transcription socket. Events is closed once the
// socket is finished.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider opens transcription sockets.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// TranscriptCleaner normalises a transcript before it becomes an editable draft.
type TranscriptCleaner interface {
	Apply(text string) (string, error)
}

// ChatConn is an open interviewer socket carrying raw text frames.
type ChatConn interface {
	Receive(ctx context.Context) (string, error)
	Send(ctx context.Context, text string) error
	Close() error
}

// ChatTransport dials the interviewer.
type ChatTransport interface {
	Dial(ctx context.Context) (ChatConn, error)
}

// RecorderEvents receives recorder lifecycle and transcript updates.
type RecorderEvents interface {
	RecorderChanged(view domain.RecorderView)
	TranscriptUpdated(view domain.RecorderView)
	RecorderError(code domain.ErrorCode, detail string)
}

// ChatEvents receives chat shell updates.
type ChatEvents interface {
	MessageReceived(message domain.ChatMessage)
	InputRequested(active bool)
	ChatError(code domain.ErrorCode, detail string)
}
