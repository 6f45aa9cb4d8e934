package story

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	closed := now.Add(-time.Hour)

	tests := []struct {
		name      string
		ch        Chapter
		latest    bool
		completed bool
		want      State
	}{
		{"open latest", Chapter{ExpiresAt: now.Add(time.Hour)}, true, false, StateOpen},
		{"expired", Chapter{ExpiresAt: now.Add(-time.Second)}, true, false, StateClosed},
		{"expires exactly now", Chapter{ExpiresAt: now}, true, false, StateClosed},
		{"superseded", Chapter{ExpiresAt: now.Add(time.Hour)}, false, false, StateClosed},
		{"story completed", Chapter{ExpiresAt: now.Add(time.Hour)}, true, true, StateClosed},
		{"closed flag", Chapter{ExpiresAt: now.Add(time.Hour), ClosedAt: &closed}, true, false, StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateAt(&tt.ch, tt.latest, tt.completed, now))
		})
	}
}
