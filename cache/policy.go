package cache

import (
	"fmt"
	"time"
)

// Window is a freshness period. The fields are summed, so
// Window{Minutes: 1, Seconds: 30} lasts ninety seconds.
// The zero Window expires results immediately.
type Window struct {
	Seconds float64
	Minutes float64
	Hours   float64
	Days    float64
}

// WindowOf converts a time.Duration to a Window.
func WindowOf(d time.Duration) Window {
	return Window{Seconds: d.Seconds()}
}

// Duration returns the total length of the window.
func (w Window) Duration() time.Duration {
	total := w.Seconds*float64(time.Second) +
		w.Minutes*float64(time.Minute) +
		w.Hours*float64(time.Hour) +
		w.Days*24*float64(time.Hour)
	return time.Duration(total)
}

// Validate reports ErrInvalidWindow for negative totals.
func (w Window) Validate() error {
	if d := w.Duration(); d < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidWindow, d)
	}
	return nil
}
