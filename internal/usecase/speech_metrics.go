package usecase

import (
	"math"

	"mockinterview/internal/domain"
)

// Neutral priors seeded into every average so an empty history still reports
// a sensible value.
const (
	clarityPrior  = 0.5
	speedPriorWPM = 150.0
)

// AverageClarity returns the mean clarity of history as a rounded percentage.
// Entries without a clarity score are skipped.
func AverageClarity(history []domain.TranscriptEvent) int {
	sum, count := clarityPrior, 1.0
	for _, event := range history {
		if event.Clarity == nil {
			continue
		}
		sum += *event.Clarity
		count++
	}
	return int(math.Round(sum / count * 100))
}

// AverageSpeed returns the mean speaking rate of history in words per minute.
// Entries without a speed are skipped.
func AverageSpeed(history []domain.TranscriptEvent) int {
	sum, count := speedPriorWPM, 1.0
	for _, event := range history {
		if event.SpeedWPM == nil {
			continue
		}
		sum += *event.SpeedWPM
		count++
	}
	return int(math.Round(sum / count))
}
