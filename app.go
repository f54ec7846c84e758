package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"
	"golang.org/x/sync/errgroup"

	"mockinterview/internal/bootstrap"
	"mockinterview/internal/config"
	"mockinterview/internal/domain"
	"mockinterview/internal/ports"
	"mockinterview/internal/usecase"
)

const (
	eventChat       = "interview:chat"
	eventInput      = "interview:input"
	eventRecorder   = "interview:recorder"
	eventTranscript = "interview:transcript"
	eventError      = "interview:error"
)

var ErrNoRecorder = errors.New("no recorder is open")

type chatShell interface {
	Run(ctx context.Context) error
	Submit(ctx context.Context, text string) error
	InputActive() bool
	View() domain.ChatView
}

type recorderOpener interface {
	New(events ports.RecorderEvents, onClose usecase.CloseFunc) *usecase.Recorder
}

// openRecorder is the modal currently shown.
type openRecorder struct {
	rec *usecase.Recorder
}

// App is the Wails application root.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	build  func(ports.ChatEvents) (bootstrap.Services, error)
	emit   func(ctx context.Context, name string, data ...interface{})
	logger zerolog.Logger

	chat      chatShell
	recorders recorderOpener
	cfg       config.Config
	bootErr   error

	mu       sync.Mutex
	recorder *openRecorder
}

func NewApp() *App {
	return &App{
		build:  bootstrap.Build,
		emit:   runtime.EventsEmit,
		logger: zerolog.Nop(),
	}
}

func (a *App) startup(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)

	services, err := a.build(a)
	if err != nil {
		a.bootErr = err
		a.ChatError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.logger = services.Logger
	a.chat = services.Chat
	a.recorders = services.Recorders

	a.group.Go(func() error {
		return a.chat.Run(a.ctx)
	})
	if addr := a.cfg.Metrics.Addr; addr != "" {
		a.group.Go(func() error {
			a.logger.Info().Str("addr", addr).Msg("serving metrics")
			return services.Metrics.Serve(a.ctx, addr)
		})
	}
}

func (a *App) shutdown(context.Context) {
	if a.cancel == nil {
		return
	}
	a.cancel()

	a.mu.Lock()
	open := a.recorder
	a.mu.Unlock()
	if open != nil {
		open.rec.Close()
	}

	if err := a.group.Wait(); err != nil {
		a.logger.Warn().Err(err).Msg("background task ended with an error")
	}
}

// GetChat returns the conversation and whether the candidate may answer.
func (a *App) GetChat() (domain.ChatView, error) {
	if err := a.requireReady(); err != nil {
		return domain.ChatView{}, err
	}
	return a.chat.View(), nil
}

// SendMessage sends a typed answer. It fails unless the interviewer is
// waiting for input.
func (a *App) SendMessage(text string) (domain.ChatView, error) {
	if err := a.requireReady(); err != nil {
		return domain.ChatView{}, err
	}
	if err := a.chat.Submit(a.ctx, text); err != nil {
		return a.chat.View(), err
	}
	return a.chat.View(), nil
}

// OpenRecorder shows a fresh recorder modal, closing any open one.
func (a *App) OpenRecorder() (domain.RecorderView, error) {
	if err := a.requireReady(); err != nil {
		return domain.RecorderView{}, err
	}

	open := &openRecorder{}
	open.rec = a.recorders.New(a, func(string, bool) {
		a.recorderClosed(open)
	})

	a.mu.Lock()
	previous := a.recorder
	a.recorder = open
	a.mu.Unlock()

	if previous != nil {
		previous.rec.Close()
	}
	return open.rec.View(), nil
}

// Record asks for the microphone and starts streaming. It returns once
// capture is running or has failed.
func (a *App) Record() (domain.RecorderView, error) {
	open, err := a.openRecorder()
	if err != nil {
		return domain.RecorderView{}, err
	}
	if err := open.rec.Record(a.ctx); err != nil {
		return open.rec.View(), err
	}
	return open.rec.View(), nil
}

// StopRecording ends capture; the draft arrives with the completed state.
func (a *App) StopRecording() (domain.RecorderView, error) {
	return a.withRecorder(func(r *usecase.Recorder) error { return r.Stop() })
}

// UseTextAlternative skips the microphone and offers a blank draft.
func (a *App) UseTextAlternative() (domain.RecorderView, error) {
	return a.withRecorder(func(r *usecase.Recorder) error { return r.UseTextAlternative() })
}

// UpdateDraft stores edits to the answer.
func (a *App) UpdateDraft(text string) (domain.RecorderView, error) {
	return a.withRecorder(func(r *usecase.Recorder) error { return r.SetDraft(text) })
}

// ConfirmRecording sends the draft as the answer, then closes the modal. A
// failed send leaves the modal open with its draft.
func (a *App) ConfirmRecording() (domain.ChatView, error) {
	open, err := a.openRecorder()
	if err != nil {
		return domain.ChatView{}, err
	}
	view := open.rec.View()
	if !view.State.HasDraft() {
		return a.chat.View(), open.rec.Confirm()
	}
	if err := a.chat.Submit(a.ctx, view.Draft); err != nil {
		return a.chat.View(), err
	}
	if err := open.rec.Confirm(); err != nil {
		a.logger.Warn().Err(err).Msg("answer sent but recorder did not confirm")
		return a.chat.View(), err
	}
	return a.chat.View(), nil
}

// CloseRecorder cancels the modal from any state.
func (a *App) CloseRecorder() error {
	open, err := a.openRecorder()
	if errors.Is(err, ErrNoRecorder) {
		return nil
	}
	if err != nil {
		return err
	}
	open.rec.Close()
	return nil
}

// GetRecorder returns the open modal's view.
func (a *App) GetRecorder() (domain.RecorderView, error) {
	open, err := a.openRecorder()
	if err != nil {
		return domain.RecorderView{}, err
	}
	return open.rec.View(), nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	info := map[string]string{
		"chatURL":          a.cfg.Chat.URL,
		"provider":         a.cfg.Transcription.Provider,
		"rulesFile":        a.cfg.Cleanup.Path,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"audioContainer":   a.cfg.Audio.Container,
		"metricsAddr":      a.cfg.Metrics.Addr,
	}
	switch a.cfg.Transcription.Provider {
	case config.ProviderDeepgram:
		info["model"] = a.cfg.Transcription.Deepgram.Model
	default:
		info["transcriptionURL"] = a.cfg.Transcription.URL
	}
	return info
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.chat == nil || a.recorders == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) openRecorder() (*openRecorder, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recorder == nil {
		return nil, ErrNoRecorder
	}
	return a.recorder, nil
}

func (a *App) withRecorder(op func(*usecase.Recorder) error) (domain.RecorderView, error) {
	open, err := a.openRecorder()
	if err != nil {
		return domain.RecorderView{}, err
	}
	if err := op(open.rec); err != nil {
		return open.rec.View(), err
	}
	return open.rec.View(), nil
}

func (a *App) recorderClosed(open *openRecorder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recorder == open {
		a.recorder = nil
	}
}

// RecorderChanged emits recorder lifecycle updates to the frontend.
func (a *App) RecorderChanged(view domain.RecorderView) {
	a.send(eventRecorder, view)
}

// TranscriptUpdated emits the live transcript and metrics.
func (a *App) TranscriptUpdated(view domain.RecorderView) {
	a.send(eventTranscript, view)
}

// RecorderError emits recorder failures to the UI.
func (a *App) RecorderError(code domain.ErrorCode, detail string) {
	a.sendError(code, detail)
}

// MessageReceived emits a chat message.
func (a *App) MessageReceived(message domain.ChatMessage) {
	a.send(eventChat, message)
}

// InputRequested emits input gate changes.
func (a *App) InputRequested(active bool) {
	a.send(eventInput, map[string]bool{"active": active})
}

// ChatError emits chat failures to the UI.
func (a *App) ChatError(code domain.ErrorCode, detail string) {
	a.sendError(code, detail)
}

func (a *App) sendError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) send(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeChatTransport:
		return "Lost connection to the interviewer"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeDevice:
		return "Microphone unavailable"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
