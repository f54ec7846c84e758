package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"mockinterview/internal/domain"
	"mockinterview/internal/ports"
)

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	errs     []error
	calls    int
	// gate, when set, holds Start until it is closed.
	gate chan struct{}
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if call >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[call]
	session.start()
	return session, nil
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	tracks    int
	stopCalls int
	stopErr   error
	stopped   chan struct{}
	stopOnce  sync.Once
}

func newFakeAudioSession(chunks ...string) *fakeAudioSession {
	s := &fakeAudioSession{stopped: make(chan struct{})}
	for _, c := range chunks {
		s.chunks = append(s.chunks, []byte(c))
	}
	return s
}

func (f *fakeAudioSession) start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = 1
}

// Read hands out the configured chunks, then blocks until Stop like a live
// microphone would.
func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()

	<-f.stopped
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return f.Stop() }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	f.stopCalls++
	f.tracks = 0
	f.mu.Unlock()
	f.stopOnce.Do(func() { close(f.stopped) })
	return f.stopErr
}

func (f *fakeAudioSession) liveTracks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracks
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions []*fakeStreamingSession
	err      error
	calls    int
}

func (f *fakeProvider) StartStreaming(_ context.Context, _ ports.StreamingConfig) (ports.StreamingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	mu         sync.Mutex
	events     chan domain.TranscriptEvent
	sent       [][]byte
	sendErr    error
	waitErr    error
	closeSend  int
	closeCalls int
	closed     bool
	// holdOnCloseSend keeps the event channel open after CloseSend so the
	// recorder stays in processing.
	holdOnCloseSend bool
}

func newFakeStreamingSession(events ...domain.TranscriptEvent) *fakeStreamingSession {
	s := &fakeStreamingSession{events: make(chan domain.TranscriptEvent, 16)}
	for _, event := range events {
		s.events <- event
	}
	return s
}

func (f *fakeStreamingSession) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSend++
	if !f.holdOnCloseSend {
		f.closeEventsLocked()
	}
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.closeEventsLocked()
	return nil
}

func (f *fakeStreamingSession) closeEventsLocked() {
	if !f.closed {
		close(f.events)
		f.closed = true
	}
}

func (f *fakeStreamingSession) isOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls == 0
}

func (f *fakeStreamingSession) sentBytes() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, chunk := range f.sent {
		out = append(out, chunk...)
	}
	return string(out)
}

type fakeCleaner struct {
	transform string
	err       error
}

func (f *fakeCleaner) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type recorderErr struct {
	code   domain.ErrorCode
	detail string
}

type fakeRecorderEvents struct {
	mu          sync.Mutex
	views       []domain.RecorderView
	transcripts []domain.RecorderView
	errors      []recorderErr
}

func (f *fakeRecorderEvents) RecorderChanged(view domain.RecorderView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view)
}

func (f *fakeRecorderEvents) TranscriptUpdated(view domain.RecorderView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, view)
}

func (f *fakeRecorderEvents) RecorderError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, recorderErr{code: code, detail: detail})
}

func (f *fakeRecorderEvents) states() []domain.RecordingState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RecordingState, 0, len(f.views))
	for _, v := range f.views {
		out = append(out, v.State)
	}
	return out
}

func (f *fakeRecorderEvents) snapshotErrors() []recorderErr {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recorderErr, len(f.errors))
	copy(out, f.errors)
	return out
}

type closeResult struct {
	calls int
	text  string
	ok    bool
}

type closeRecorder struct {
	mu     sync.Mutex
	result closeResult
}

func (c *closeRecorder) onClose(text string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.calls++
	c.result.text = text
	c.result.ok = ok
}

func (c *closeRecorder) get() closeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func waitForState(t *testing.T, r *Recorder, want domain.RecordingState) domain.RecorderView {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		view := r.View()
		if view.State == want {
			return view
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, state is %s", want, view.State)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type fakeChatConn struct {
	mu      sync.Mutex
	frames  chan string
	recvErr error
	sent    []string
	sendErr error
	closed  bool
}

func newFakeChatConn(frames ...string) *fakeChatConn {
	c := &fakeChatConn{frames: make(chan string, 16)}
	for _, frame := range frames {
		c.frames <- frame
	}
	return c
}

func (f *fakeChatConn) Receive(ctx context.Context) (string, error) {
	select {
	case frame, ok := <-f.frames:
		if !ok {
			return "", f.recvErr
		}
		return frame, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeChatConn) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeChatConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChatConn) snapshotSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeChatTransport struct {
	conn *fakeChatConn
	err  error
}

func (f *fakeChatTransport) Dial(_ context.Context) (ports.ChatConn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

type fakeChatEvents struct {
	mu       sync.Mutex
	messages []domain.ChatMessage
	inputs   []bool
	errors   []domain.ErrorCode
}

func (f *fakeChatEvents) MessageReceived(message domain.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeChatEvents) InputRequested(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, active)
}

func (f *fakeChatEvents) ChatError(code domain.ErrorCode, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, code)
}

func (f *fakeChatEvents) snapshotErrors() []domain.ErrorCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ErrorCode, len(f.errors))
	copy(out, f.errors)
	return out
}
