package usecase

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"mockinterview/internal/domain"
)

type scriptedAudio struct {
	mu     sync.Mutex
	chunks [][]byte
	end    error
}

func (s *scriptedAudio) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) == 0 {
		return 0, s.end
	}
	n := copy(p, s.chunks[0])
	s.chunks = s.chunks[1:]
	return n, nil
}

func (s *scriptedAudio) Close() error { return nil }
func (s *scriptedAudio) Stop() error  { return nil }

type pumpErrors struct {
	mu    sync.Mutex
	codes []domain.ErrorCode
}

func (p *pumpErrors) record(code domain.ErrorCode, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, code)
}

func runPump(t *testing.T, pump audioPump) {
	t.Helper()
	done := make(chan struct{})
	go pump.run(done)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("pump did not finish")
	}
}

func TestAudioPumpAggregatesReadsPerTick(t *testing.T) {
	t.Parallel()

	stream := newFakeStreamingSession()
	var chunks []int
	errs := &pumpErrors{}
	runPump(t, audioPump{
		audio:    &scriptedAudio{chunks: [][]byte{[]byte("ab"), []byte("cd")}, end: io.EOF},
		stream:   stream,
		interval: time.Hour,
		onChunk:  func(n int) { chunks = append(chunks, n) },
		onError:  errs.record,
	})

	if got := stream.sentBytes(); got != "abcd" {
		t.Fatalf("unexpected bytes: %q", got)
	}
	if len(stream.sent) != 1 || len(chunks) != 1 || chunks[0] != 4 {
		t.Fatalf("expected one aggregated send, got %d sends %v", len(stream.sent), chunks)
	}
	if len(errs.codes) != 0 {
		t.Fatalf("EOF must not be reported: %v", errs.codes)
	}
}

func TestAudioPumpReportsSendFailure(t *testing.T) {
	t.Parallel()

	stream := newFakeStreamingSession()
	stream.sendErr = errors.New("socket closed")
	errs := &pumpErrors{}
	runPump(t, audioPump{
		audio:    &scriptedAudio{chunks: [][]byte{[]byte("ab")}, end: io.EOF},
		stream:   stream,
		interval: time.Hour,
		onError:  errs.record,
	})

	if len(errs.codes) != 1 || errs.codes[0] != domain.ErrorCodeAudioStream {
		t.Fatalf("expected audio stream error, got %v", errs.codes)
	}
}

func TestAudioPumpReportsCaptureFailure(t *testing.T) {
	t.Parallel()

	stream := newFakeStreamingSession()
	errs := &pumpErrors{}
	runPump(t, audioPump{
		audio:    &scriptedAudio{chunks: [][]byte{[]byte("ab")}, end: errors.New("device unplugged")},
		stream:   stream,
		interval: time.Hour,
		onError:  errs.record,
	})

	if got := stream.sentBytes(); got != "ab" {
		t.Fatalf("buffered audio must still be flushed, got %q", got)
	}
	if len(errs.codes) != 1 || errs.codes[0] != domain.ErrorCodeAudioStream {
		t.Fatalf("expected capture error, got %v", errs.codes)
	}
}

func TestIsCaptureEnd(t *testing.T) {
	t.Parallel()

	if !isCaptureEnd(io.EOF) || !isCaptureEnd(io.ErrClosedPipe) {
		t.Fatalf("expected EOF and closed pipe to end capture normally")
	}
	if isCaptureEnd(errors.New("boom")) {
		t.Fatalf("arbitrary errors are failures")
	}
}
