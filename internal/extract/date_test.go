package extract_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crawld/internal/extract"
)

func TestNormalizeDate(t *testing.T) {
	now := time.Date(2025, 11, 25, 14, 30, 0, 0, time.UTC)
	today := "2025-11-25"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already normalized", "2025-01-01", "2025-01-01"},
		{"dotted date", "2025.11.25", "2025-11-25"},
		{"dotted date needs padding", "2025.1.5", "2025-01-05"},
		{"dotted date with range suffix", "2025.11.25 ~ 2025.12.01", "2025-11-25"},
		{"month slash day assumes current year", "11/25", "2025-11-25"},
		{"single digit month slash day", "1/5", "2025-01-05"},
		{"pm time means today", "PM 02:39", today},
		{"am time means today", "AM 09:05", today},
		{"bare time means today", "14:22", today},
		{"trailing meridiem", "02:39 PM", today},
		{"empty input means today", "", today},
		{"garbage means today", "three days ago", today},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extract.NormalizeDate(tt.in, now))
		})
	}
}

func TestNormalizeDate_NeverEmpty(t *testing.T) {
	now := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"", "??", "2025/13/45", "공지"} {
		got := extract.NormalizeDate(in, now)
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, got, "input %q", in)
	}
}
