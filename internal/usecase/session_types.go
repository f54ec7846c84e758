package usecase

import (
	"context"
	"sync"

	"mockinterview/internal/ports"
)

// captureResources pairs the device stream and transcription socket of one
// recording attempt with a single teardown routine.
type captureResources struct {
	cancel context.CancelFunc
	audio  ports.AudioSession
	stream ports.StreamingSession

	// nil until the consumer/pump goroutines are started
	eventsDone chan struct{}
	audioDone  chan struct{}

	stopAudioOnce sync.Once
	audioStopErr  error
	releaseOnce   sync.Once
}

// stopAudio stops the recorder and every device track.
func (c *captureResources) stopAudio() error {
	c.stopAudioOnce.Do(func() {
		c.audioStopErr = c.audio.Stop()
	})
	return c.audioStopErr
}

// release tears everything down: capture, socket, and the goroutines bound to
// them. Safe to call from every exit path.
func (c *captureResources) release() error {
	c.releaseOnce.Do(func() {
		c.cancel()
		_ = c.stopAudio()
		_ = c.stream.Close()
		if c.eventsDone != nil {
			<-c.eventsDone
		}
		if c.audioDone != nil {
			<-c.audioDone
		}
	})
	return c.audioStopErr
}

// resourceSlot is the single owned slot for a recorder's capture resources.
type resourceSlot struct {
	current *captureResources
}

// fill stores res. Opening a second stream while one is held is a
// programming error.
func (s *resourceSlot) fill(res *captureResources) {
	if s.current != nil {
		panic("usecase: capture resources already open for this recorder")
	}
	s.current = res
}

// take empties the slot and hands ownership to the caller.
func (s *resourceSlot) take() *captureResources {
	res := s.current
	s.current = nil
	return res
}
