package usecase

import (
	"strings"

	"mockinterview/internal/domain"
	"mockinterview/internal/ports"
)

// transcriptSession holds finalized history plus at most one pending segment.
// Callers serialise access.
type transcriptSession struct {
	history []domain.TranscriptEvent
	pending *domain.TranscriptEvent
}

func (s *transcriptSession) reset() {
	s.history = nil
	s.pending = nil
}

// apply folds one event in. Finals append and clear pending; partials replace
// pending wholesale, blank ones included.
func (s *transcriptSession) apply(event domain.TranscriptEvent) {
	if event.IsFinal {
		s.history = append(s.history, event)
		s.pending = nil
		return
	}
	pending := event
	s.pending = &pending
}

func (s *transcriptSession) clearPending() {
	s.pending = nil
}

func (s *transcriptSession) pendingText() string {
	if s.pending == nil {
		return ""
	}
	return s.pending.Text
}

// display is the finalized text joined by single spaces with the pending
// segment appended as-is. Blank segments do not show.
func (s *transcriptSession) display() string {
	texts := make([]string, 0, len(s.history))
	for _, event := range s.history {
		if strings.TrimSpace(event.Text) == "" {
			continue
		}
		texts = append(texts, event.Text)
	}
	text := strings.Join(texts, " ")
	if pending := s.pendingText(); strings.TrimSpace(pending) != "" {
		text += pending
	}
	return text
}

func consumeTranscriptionEvents(
	session ports.StreamingSession,
	apply func(domain.TranscriptEvent),
	done chan struct{},
) {
	defer close(done)

	for event := range session.Events() {
		apply(event)
	}
}
