package breaker

import (
	"strings"
	"testing"
	"time"
)

func TestState_Open(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		threshold int
		want      bool
	}{
		{"below threshold", 2, 5, false},
		{"at threshold", 5, 5, true},
		{"above threshold", 7, 5, true},
		{"zero failures", 0, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{Failures: tt.failures}
			if got := s.Open(tt.threshold); got != tt.want {
				t.Errorf("Open(%d) = %v, want %v", tt.threshold, got, tt.want)
			}
		})
	}
}

func TestState_CooledDown(t *testing.T) {
	tests := []struct {
		name     string
		openedAt time.Time
		cooldown time.Duration
		want     bool
	}{
		{"never opened", time.Time{}, 30 * time.Second, true},
		{"just opened", time.Now(), 30 * time.Second, false},
		{"cooldown elapsed", time.Now().Add(-time.Minute), 30 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{OpenedAt: tt.openedAt}
			if got := s.CooledDown(tt.cooldown); got != tt.want {
				t.Errorf("CooledDown(%v) = %v, want %v", tt.cooldown, got, tt.want)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	closed := State{Failures: 2}
	if got := closed.String(); !strings.Contains(got, "closed") {
		t.Errorf("String() = %q, want closed state", got)
	}

	open := State{Failures: 5, OpenedAt: time.Now()}
	if got := open.String(); !strings.Contains(got, "open since") {
		t.Errorf("String() = %q, want open state", got)
	}
}

func TestKeyLayout(t *testing.T) {
	if got := failuresKey("earth-search"); got != "stacfed:breaker:earth-search:failures" {
		t.Errorf("failuresKey = %q", got)
	}
	if got := openedAtKey("earth-search"); got != "stacfed:breaker:earth-search:opened_at" {
		t.Errorf("openedAtKey = %q", got)
	}
}
