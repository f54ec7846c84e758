package usecase

import (
	"strings"

	"github.com/rs/zerolog"

	"mockinterview/internal/ports"
)

// draftFinalizer turns a raw transcript snapshot into the editable draft.
type draftFinalizer struct {
	cleaner ports.TranscriptCleaner
	logger  zerolog.Logger
}

func newDraftFinalizer(cleaner ports.TranscriptCleaner, logger zerolog.Logger) draftFinalizer {
	return draftFinalizer{cleaner: cleaner, logger: logger}
}

// Finalize never fails: a cleanup error leaves the raw transcript in place.
func (f draftFinalizer) Finalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || f.cleaner == nil {
		return raw
	}

	cleaned, err := f.cleaner.Apply(raw)
	if err != nil {
		f.logger.Warn().Err(err).Msg("transcript cleanup failed; keeping raw transcript")
		return raw
	}
	return strings.TrimSpace(cleaned)
}
