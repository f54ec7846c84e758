package usecase

import (
	"testing"

	"mockinterview/internal/domain"
)

func TestSpeechMetrics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		history     []domain.TranscriptEvent
		wantClarity int
		wantSpeed   int
	}{
		{name: "empty history uses priors", wantClarity: 50, wantSpeed: 150},
		{
			name: "single scored segment",
			history: []domain.TranscriptEvent{
				{Text: "hello", IsFinal: true, Clarity: domain.Float(0.9), SpeedWPM: domain.Float(130)},
			},
			wantClarity: 70,
			wantSpeed:   140,
		},
		{
			name: "segments without scores are skipped",
			history: []domain.TranscriptEvent{
				{Text: "one", IsFinal: true, Clarity: domain.Float(1)},
				{Text: "two", IsFinal: true},
				{Text: "three", IsFinal: true, SpeedWPM: domain.Float(180)},
			},
			wantClarity: 75,
			wantSpeed:   165,
		},
		{
			name: "rounding",
			history: []domain.TranscriptEvent{
				{Text: "a", IsFinal: true, Clarity: domain.Float(0.84), SpeedWPM: domain.Float(121)},
			},
			wantClarity: 67,
			wantSpeed:   136,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := AverageClarity(tt.history); got != tt.wantClarity {
				t.Fatalf("clarity: got %d want %d", got, tt.wantClarity)
			}
			if got := AverageSpeed(tt.history); got != tt.wantSpeed {
				t.Fatalf("speed: got %d want %d", got, tt.wantSpeed)
			}
		})
	}
}
