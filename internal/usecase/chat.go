package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"mockinterview/internal/domain"
	"mockinterview/internal/logging"
	"mockinterview/internal/observe"
	"mockinterview/internal/ports"
)

var (
	ErrInputInactive = errors.New("interviewer has not requested input")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrNotConnected  = errors.New("not connected to the interviewer")
)

// ChatShell holds the interview conversation and gates candidate turns on the
// interviewer's input requests.
type ChatShell struct {
	transport ports.ChatTransport
	events    ports.ChatEvents
	metrics   *observe.Metrics
	logger    zerolog.Logger

	mu          sync.Mutex
	conn        ports.ChatConn
	messages    []domain.ChatMessage
	inputActive bool
}

func NewChatShell(transport ports.ChatTransport, events ports.ChatEvents, metrics *observe.Metrics, logger zerolog.Logger) *ChatShell {
	if metrics == nil {
		metrics = observe.NewMetrics()
	}
	return &ChatShell{
		transport: transport,
		events:    events,
		metrics:   metrics,
		logger:    logging.Component(logger, "chat"),
	}
}

// Run connects to the interviewer and processes frames until ctx ends or the
// socket fails. Socket failures are reported, not retried.
func (c *ChatShell) Run(ctx context.Context) error {
	conn, err := c.transport.Dial(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to connect to interviewer")
		c.events.ChatError(domain.ErrorCodeChatTransport, err.Error())
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Info().Msg("connected to interviewer")

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.inputActive = false
		c.mu.Unlock()
		if err := conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("interviewer socket close")
		}
	}()

	for {
		frame, err := conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Msg("interviewer socket failed")
			c.events.ChatError(domain.ErrorCodeChatTransport, err.Error())
			return err
		}
		c.handleFrame(frame)
	}
}

func (c *ChatShell) handleFrame(frame string) {
	c.metrics.ChatFramesReceived.Inc()

	if frame == domain.InputRequestFrame {
		c.mu.Lock()
		c.inputActive = true
		c.mu.Unlock()
		c.events.InputRequested(true)
		return
	}

	message, ok := domain.ParseChatFrame(frame)
	if !ok {
		c.metrics.ChatFramesDropped.Inc()
		c.logger.Warn().Str("frame", frame).Msg("dropping frame without a known author tag")
		return
	}

	c.mu.Lock()
	c.messages = append(c.messages, message)
	c.mu.Unlock()
	c.events.MessageReceived(message)
}

// Submit sends the candidate's answer. It is only valid while the
// interviewer has an open input request.
func (c *ChatShell) Submit(ctx context.Context, text string) error {
	c.mu.Lock()
	if !c.inputActive {
		c.mu.Unlock()
		return ErrInputInactive
	}
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return ErrEmptyMessage
	}
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.inputActive = false
	c.mu.Unlock()

	if err := conn.Send(ctx, text); err != nil {
		c.mu.Lock()
		if c.conn == conn {
			c.inputActive = true
		}
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("failed to send answer")
		c.events.ChatError(domain.ErrorCodeChatTransport, err.Error())
		return fmt.Errorf("send answer: %w", err)
	}

	c.metrics.ChatMessagesSent.Inc()
	c.events.InputRequested(false)
	return nil
}

// InputActive reports whether the candidate may answer now.
func (c *ChatShell) InputActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputActive
}

// View returns the conversation so far.
func (c *ChatShell) View() domain.ChatView {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]domain.ChatMessage, len(c.messages))
	copy(messages, c.messages)
	return domain.ChatView{
		Messages:    messages,
		InputActive: c.inputActive,
		Connected:   c.conn != nil,
	}
}
