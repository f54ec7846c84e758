// Package wsstream runs a transcription socket: binary audio out, JSON
// transcript frames in.
package wsstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mockinterview/internal/domain"
)

// ErrUndecodable marks a frame the decoder could not read. Such frames are
// skipped rather than ending the session.
var ErrUndecodable = errors.New("undecodable frame")

var errSendClosed = errors.New("audio stream is already closed")

// Decoder turns one text frame into transcript events. Any error other than
// ErrUndecodable ends the session with that error.
type Decoder func(payload []byte) ([]domain.TranscriptEvent, error)

// Options configures a Session.
type Options struct {
	Header http.Header
	// CloseMessage is written as a text frame after the last audio chunk.
	CloseMessage []byte
	Decode       Decoder
	Logger       zerolog.Logger
	EventBuffer  int
}

// Dial opens rawURL and starts a Session on it. Cancelling ctx closes the
// session.
func Dial(ctx context.Context, rawURL string, opts Options) (*Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, opts.Header)
	if err != nil {
		return nil, fmt.Errorf("dial transcription socket: %w", err)
	}
	return Start(ctx, conn, opts), nil
}

// Start runs a Session over an already open connection.
func Start(ctx context.Context, conn *websocket.Conn, opts Options) *Session {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	s := &Session{
		conn:     conn,
		opts:     opts,
		events:   make(chan domain.TranscriptEvent, opts.EventBuffer),
		audio:    make(chan []byte, 32),
		sendDone: make(chan struct{}),
		readDone: make(chan struct{}),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		_ = conn.Close()
		close(s.done)
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s
}

// Session implements ports.StreamingSession over a gorilla connection.
type Session struct {
	conn *websocket.Conn
	opts Options

	events   chan domain.TranscriptEvent
	audio    chan []byte
	sendDone chan struct{}
	readDone chan struct{}
	closing  chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
}

// SendAudio queues one chunk. It blocks while the queue is full and fails
// once the stream is half-closed or the session ends.
func (s *Session) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	select {
	case <-s.sendDone:
		return errSendClosed
	default:
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.sendDone:
		return errSendClosed
	case <-s.closing:
		return errors.New("transcription socket closed")
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("transcription socket closed")
	}
}

// CloseSend ends the audio stream. The close message follows any queued audio.
func (s *Session) CloseSend() error {
	s.closeSendOnce.Do(func() {
		close(s.sendDone)
	})
	return nil
}

func (s *Session) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *Session) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		// unblocks a writer stuck on a peer that stopped reading
		_ = s.conn.Close()
		_ = s.CloseSend()
	})
	<-s.done
	return s.waitErr()
}

func (s *Session) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	select {
	case <-s.closing:
		// errors caused by our own Close are expected
		return
	default:
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Session) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case chunk := <-s.audio:
			if !s.writeAudio(chunk) {
				return
			}
		case <-s.sendDone:
			s.finishSend()
			return
		case <-s.closing:
			return
		case <-s.readDone:
			return
		}
	}
}

// finishSend flushes audio queued before CloseSend, then writes the close
// message.
func (s *Session) finishSend() {
	for {
		select {
		case chunk := <-s.audio:
			if !s.writeAudio(chunk) {
				return
			}
			continue
		case <-s.closing:
			return
		default:
		}
		break
	}

	if len(s.opts.CloseMessage) == 0 {
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, s.opts.CloseMessage); err != nil {
		s.setErr(fmt.Errorf("failed to close audio stream: %w", err))
	}
}

func (s *Session) writeAudio(chunk []byte) bool {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		s.setErr(fmt.Errorf("failed to send audio: %w", err))
		return false
	}
	return true
}

func (s *Session) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)

	for {
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read transcription event: %w", err))
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		events, err := s.opts.Decode(payload)
		if errors.Is(err, ErrUndecodable) {
			s.opts.Logger.Debug().Err(err).Msg("skipping transcription frame")
			continue
		}
		if err != nil {
			s.setErr(err)
			return
		}
		for _, event := range events {
			if !s.emit(event) {
				return
			}
		}
	}
}

// emit blocks until the consumer takes the event so finals are never lost; it
// gives up only when the session is closing.
func (s *Session) emit(event domain.TranscriptEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.closing:
		return false
	}
}
