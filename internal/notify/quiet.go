package notify

import (
	"fmt"
	"time"

	"mgmonitor/internal/config"
)

// quietWindow is a daily do-not-disturb window. Overnight windows (start
// after end, e.g. 22:00 to 08:00) are supported.
type quietWindow struct {
	enabled bool
	start   int // minutes since midnight
	end     int
}

func parseQuietWindow(cfg config.QuietHoursConfig) (quietWindow, error) {
	if !cfg.Enabled {
		return quietWindow{}, nil
	}
	start, err := parseClock(cfg.Start)
	if err != nil {
		return quietWindow{}, fmt.Errorf("quiet hours start: %w", err)
	}
	end, err := parseClock(cfg.End)
	if err != nil {
		return quietWindow{}, fmt.Errorf("quiet hours end: %w", err)
	}
	return quietWindow{enabled: true, start: start, end: end}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (w quietWindow) contains(now time.Time) bool {
	if !w.enabled {
		return false
	}
	m := now.Hour()*60 + now.Minute()
	if w.start <= w.end {
		return m >= w.start && m < w.end
	}
	// Overnight window.
	return m >= w.start || m < w.end
}
