package usecase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"mockinterview/internal/domain"
	"mockinterview/internal/ports"
)

const (
	defaultChunkInterval = 500 * time.Millisecond
	defaultReadSize      = 4096
)

// audioPump forwards captured audio to the transcription socket, one send per
// interval tick carrying everything read since the previous tick.
type audioPump struct {
	audio    ports.AudioSession
	stream   ports.StreamingSession
	interval time.Duration
	readSize int

	onChunk func(bytes int)
	onError func(code domain.ErrorCode, detail string)
}

func (p audioPump) run(done chan struct{}) {
	defer close(done)

	interval := p.interval
	if interval <= 0 {
		interval = defaultChunkInterval
	}
	readSize := p.readSize
	if readSize < 256 {
		readSize = defaultReadSize
	}

	quit := make(chan struct{})
	defer close(quit)

	reads := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, readSize)
		for {
			n, err := p.audio.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case reads <- chunk:
				case <-quit:
					return
				}
			}
			if err != nil {
				readErr <- err
				close(reads)
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []byte
	flush := func() bool {
		if len(pending) == 0 {
			return true
		}
		if err := p.stream.SendAudio(pending); err != nil {
			p.report(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", err))
			return false
		}
		if p.onChunk != nil {
			p.onChunk(len(pending))
		}
		pending = nil
		return true
	}

	for {
		select {
		case chunk, ok := <-reads:
			if !ok {
				if !flush() {
					return
				}
				if err := <-readErr; !isCaptureEnd(err) {
					p.report(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
				}
				return
			}
			pending = append(pending, chunk...)
		case <-ticker.C:
			if !flush() {
				return
			}
		}
	}
}

func (p audioPump) report(code domain.ErrorCode, detail string) {
	if p.onError != nil {
		p.onError(code, detail)
	}
}

// isCaptureEnd reports whether err just means the capture was stopped.
func isCaptureEnd(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
