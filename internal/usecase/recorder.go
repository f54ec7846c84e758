package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mockinterview/internal/domain"
	"mockinterview/internal/logging"
	"mockinterview/internal/observe"
	"mockinterview/internal/ports"
)

var (
	ErrInvalidTransition = errors.New("invalid recorder transition")
	ErrRecorderClosed    = errors.New("recorder is closed")
)

// Config controls capture and streaming behavior for a recorder.
type Config struct {
	Audio         ports.AudioConfig
	Streaming     ports.StreamingConfig
	ChunkInterval time.Duration
	ReadSize      int
	// DrainGrace bounds how long a stopped recording waits for the backend to
	// flush trailing transcripts before the draft is taken. Zero takes it at once.
	DrainGrace time.Duration
}

// CloseFunc receives the recorder's result. ok is false when the modal was
// cancelled and text carries nothing.
type CloseFunc func(text string, ok bool)

// Option customises a Recorder.
type Option func(*Recorder)

// WithLogger sets the recorder logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logging.Component(logger, "recorder")
	}
}

// WithMetrics sets the metrics the recorder reports to.
func WithMetrics(metrics *observe.Metrics) Option {
	return func(r *Recorder) {
		if metrics != nil {
			r.metrics = metrics
		}
	}
}

// Recorder is one voice-answer modal: it owns a capture stream, a
// transcription socket and the transcript gathered from them, and yields a
// single text result through its CloseFunc.
//
// State transitions:
//
//	not_started ──Record──▶ waiting_for_permission ──▶ recording ──Stop──▶ processing ──▶ completed
//	     │                        │                                                       │
//	     │                        └──▶ permission_denied / error ──Record──▶ ...          └──Record──▶ ...
//	     └──UseTextAlternative──▶ use_text_alternative
//
// Confirm from completed or use_text_alternative and Close from anywhere end in
// closed. Events are delivered while the recorder lock is held, so sinks must
// not call back into the Recorder.
type Recorder struct {
	audio     ports.AudioCapture
	provider  ports.TranscriptionProvider
	events    ports.RecorderEvents
	finalizer draftFinalizer
	onClose   CloseFunc
	metrics   *observe.Metrics
	logger    zerolog.Logger
	cfg       Config

	mu         sync.Mutex
	state      domain.RecordingState
	detail     string
	generation uint64
	sessionID  string
	acquiring  context.CancelFunc
	transcript transcriptSession
	draft      string
	slot       resourceSlot
}

func NewRecorder(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	cleaner ports.TranscriptCleaner,
	events ports.RecorderEvents,
	cfg Config,
	onClose CloseFunc,
	opts ...Option,
) *Recorder {
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = defaultChunkInterval
	}
	if cfg.ReadSize < 256 {
		cfg.ReadSize = defaultReadSize
	}
	if onClose == nil {
		onClose = func(string, bool) {}
	}

	r := &Recorder{
		audio:    audio,
		provider: provider,
		events:   events,
		onClose:  onClose,
		metrics:  observe.NewMetrics(),
		logger:   zerolog.Nop(),
		cfg:      cfg,
		state:    domain.RecordingStateNotStarted,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.finalizer = newDraftFinalizer(cleaner, r.logger)
	return r
}

// Record starts a new attempt: it wipes the previous transcript, asks for the
// capture device and, once granted, opens the transcription socket.
func (r *Recorder) Record(ctx context.Context) error {
	r.mu.Lock()
	if !r.state.CanRecord() {
		state := r.state
		r.mu.Unlock()
		return r.transitionErr("record", state)
	}

	r.generation++
	gen := r.generation
	r.sessionID = uuid.NewString()
	r.transcript.reset()
	r.draft = ""
	r.detail = ""
	attemptCtx, cancel := context.WithCancel(ctx)
	r.acquiring = cancel
	logger := logging.WithSession(r.logger, r.sessionID)
	r.setStateLocked(domain.RecordingStateWaitingForPermission)
	r.mu.Unlock()

	audioSession, err := r.audio.Start(attemptCtx, r.cfg.Audio)
	if err != nil {
		cancel()
		logger.Warn().Err(err).Msg("capture device request failed")
		r.failAttempt(gen, err)
		return err
	}

	stream, err := r.provider.StartStreaming(attemptCtx, r.cfg.Streaming)
	if err != nil {
		_ = audioSession.Stop()
		cancel()
		logger.Error().Err(err).Msg("failed to open transcription socket")
		r.failAttempt(gen, fmt.Errorf("%w: %w", errStreamOpen, err))
		return err
	}

	res := &captureResources{cancel: cancel, audio: audioSession, stream: stream}

	r.mu.Lock()
	if r.generation != gen || r.state != domain.RecordingStateWaitingForPermission {
		r.mu.Unlock()
		logger.Debug().Msg("recorder closed while acquiring capture; releasing")
		_ = res.release()
		return ErrRecorderClosed
	}

	r.acquiring = nil
	res.eventsDone = make(chan struct{})
	res.audioDone = make(chan struct{})
	r.slot.fill(res)

	go consumeTranscriptionEvents(stream, func(event domain.TranscriptEvent) {
		r.applyTranscript(gen, event)
	}, res.eventsDone)
	go audioPump{
		audio:    audioSession,
		stream:   stream,
		interval: r.cfg.ChunkInterval,
		readSize: r.cfg.ReadSize,
		onChunk: func(n int) {
			r.metrics.AudioChunksSent.Inc()
			r.metrics.AudioBytesSent.Add(float64(n))
		},
		onError: func(code domain.ErrorCode, detail string) {
			r.reportError(gen, code, detail)
		},
	}.run(res.audioDone)

	r.metrics.RecordingsStarted.Inc()
	logger.Info().Msg("recording started")
	r.setStateLocked(domain.RecordingStateRecording)
	r.mu.Unlock()
	return nil
}

// Stop ends capture immediately and moves to processing. The draft is taken
// in the background once the socket drains or DrainGrace runs out.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state != domain.RecordingStateRecording {
		state := r.state
		r.mu.Unlock()
		return r.transitionErr("stop", state)
	}
	gen := r.generation
	res := r.slot.current
	logger := logging.WithSession(r.logger, r.sessionID)
	r.setStateLocked(domain.RecordingStateProcessing)
	r.mu.Unlock()

	if err := res.stopAudio(); err != nil {
		logger.Warn().Err(err).Msg("audio capture did not stop cleanly")
		r.reportError(gen, domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	go r.drain(gen, res)
	return nil
}

// UseTextAlternative skips capture and offers an empty draft.
func (r *Recorder) UseTextAlternative() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != domain.RecordingStateNotStarted {
		return r.transitionErr("use text alternative", r.state)
	}
	r.draft = ""
	r.setStateLocked(domain.RecordingStateUseTextAlternative)
	return nil
}

// SetDraft replaces the editable answer.
func (r *Recorder) SetDraft(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.state.HasDraft() {
		return r.transitionErr("edit draft", r.state)
	}
	r.draft = text
	return nil
}

// Confirm yields the draft and closes the recorder.
func (r *Recorder) Confirm() error {
	r.mu.Lock()
	if !r.state.HasDraft() {
		state := r.state
		r.mu.Unlock()
		return r.transitionErr("confirm", state)
	}
	text := r.draft
	res := r.closeLocked()
	r.mu.Unlock()

	r.teardown(res)
	r.metrics.RecordingsDone.WithLabelValues("confirmed").Inc()
	r.onClose(text, true)
	return nil
}

// Close cancels the recorder from any state. Calling it again is a no-op.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.state == domain.RecordingStateClosed {
		r.mu.Unlock()
		return
	}
	res := r.closeLocked()
	r.mu.Unlock()

	r.teardown(res)
	r.metrics.RecordingsDone.WithLabelValues("cancelled").Inc()
	r.onClose("", false)
}

// View returns the current snapshot.
func (r *Recorder) View() domain.RecorderView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

func (r *Recorder) closeLocked() *captureResources {
	r.generation++
	if r.acquiring != nil {
		r.acquiring()
		r.acquiring = nil
	}
	res := r.slot.take()
	r.transcript.clearPending()
	r.setStateLocked(domain.RecordingStateClosed)
	return res
}

func (r *Recorder) teardown(res *captureResources) {
	if res == nil {
		return
	}
	if err := res.release(); err != nil {
		r.logger.Warn().Err(err).Msg("capture teardown reported an error")
	}
}

func (r *Recorder) drain(gen uint64, res *captureResources) {
	<-res.audioDone
	_ = res.stream.CloseSend()

	if r.cfg.DrainGrace > 0 {
		timer := time.NewTimer(r.cfg.DrainGrace)
		select {
		case <-res.eventsDone:
			if err := res.stream.Wait(); err != nil {
				r.reportError(gen, domain.ErrorCodeTranscription, err.Error())
			}
		case <-timer.C:
		}
		timer.Stop()
	}

	r.complete(gen)
}

func (r *Recorder) complete(gen uint64) {
	r.mu.Lock()
	if r.generation != gen || r.state != domain.RecordingStateProcessing {
		r.mu.Unlock()
		return
	}
	raw := r.transcript.display()
	r.transcript.clearPending()
	res := r.slot.take()
	r.draft = r.finalizer.Finalize(raw)
	sessionLogger := logging.WithSession(r.logger, r.sessionID)
	sessionLogger.Info().
		Int("segments", len(r.transcript.history)).
		Msg("recording completed")
	r.setStateLocked(domain.RecordingStateCompleted)
	r.mu.Unlock()

	r.teardown(res)
}

func (r *Recorder) applyTranscript(gen uint64, event domain.TranscriptEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generation != gen ||
		(r.state != domain.RecordingStateRecording && r.state != domain.RecordingStateProcessing) {
		r.metrics.TranscriptsLate.Inc()
		r.logger.Debug().Bool("final", event.IsFinal).Msg("dropping transcript for a finished attempt")
		return
	}
	r.transcript.apply(event)
	if event.IsFinal {
		r.metrics.TranscriptsFinal.Inc()
	} else {
		r.metrics.TranscriptsPartial.Inc()
	}
	r.events.TranscriptUpdated(r.viewLocked())
}

func (r *Recorder) failAttempt(gen uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generation != gen {
		return
	}
	r.acquiring = nil
	r.detail = err.Error()

	state, reason := domain.RecordingStatePermissionDenied, "permission_denied"
	if errors.Is(err, ports.ErrDeviceUnavailable) {
		state, reason = domain.RecordingStateError, "device_unavailable"
	} else if errors.Is(err, errStreamOpen) {
		state, reason = domain.RecordingStateError, "transcription_unavailable"
	}
	r.metrics.RecordingsFailed.WithLabelValues(reason).Inc()
	r.setStateLocked(state)

	code := domain.ErrorCodeDevice
	if reason == "transcription_unavailable" {
		code = domain.ErrorCodeTranscription
	}
	r.events.RecorderError(code, r.detail)
}

func (r *Recorder) reportError(gen uint64, code domain.ErrorCode, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generation != gen {
		return
	}
	r.logger.Warn().Str("code", string(code)).Msg(detail)
	r.events.RecorderError(code, detail)
}

func (r *Recorder) setStateLocked(state domain.RecordingState) {
	r.state = state
	r.events.RecorderChanged(r.viewLocked())
}

func (r *Recorder) viewLocked() domain.RecorderView {
	history := r.transcript.history
	return domain.RecorderView{
		SessionID:      r.sessionID,
		State:          r.state,
		Message:        r.state.Message(),
		Detail:         r.detail,
		Transcript:     r.transcript.display(),
		Pending:        r.transcript.pendingText(),
		Segments:       len(history),
		ClarityPercent: AverageClarity(history),
		SpeedWPM:       AverageSpeed(history),
		Draft:          r.draft,
	}
}

func (r *Recorder) transitionErr(action string, state domain.RecordingState) error {
	if state == domain.RecordingStateClosed {
		return fmt.Errorf("%s: %w", action, ErrRecorderClosed)
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, state)
}

var errStreamOpen = errors.New("transcription socket unavailable")
