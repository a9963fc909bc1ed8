package domain

import (
	"testing"
	"time"
)

func TestSRSState_IsDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		state SRSState
		want  bool
	}{
		{"new card (reps=0) is never due", SRSState{Reps: 0, Due: past}, false},
		{"reviewed card due in the past", SRSState{Reps: 1, Due: past}, true},
		{"reviewed card due exactly now", SRSState{Reps: 1, Due: now}, true},
		{"reviewed card due in the future", SRSState{Reps: 1, Due: future}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.state.IsDue(now); got != tt.want {
				t.Errorf("SRSState.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSRSState_IsLeech(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lapses int
		want   bool
	}{
		{0, false},
		{7, false},
		{8, true},
		{9, true},
	}
	for _, tt := range tests {
		s := SRSState{Lapses: tt.lapses}
		if got := s.IsLeech(); got != tt.want {
			t.Errorf("SRSState{Lapses:%d}.IsLeech() = %v, want %v", tt.lapses, got, tt.want)
		}
	}
}

func TestNewSRSState_Defaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSRSState(42, now)

	if s.CardID != 42 {
		t.Errorf("CardID = %d, want 42", s.CardID)
	}
	if s.Algo != SRSAlgoSM2 {
		t.Errorf("Algo = %v, want sm2", s.Algo)
	}
	if s.Reps != 0 || s.Lapses != 0 || s.IntervalDays != 0 {
		t.Errorf("expected zeroed counters, got %+v", s)
	}
	if s.Ease != DefaultEase {
		t.Errorf("Ease = %v, want %v", s.Ease, DefaultEase)
	}
	if !s.Due.Equal(now) {
		t.Errorf("Due = %v, want %v", s.Due, now)
	}
	if !s.IsNew() {
		t.Error("expected a freshly-created state to be IsNew()")
	}
}
