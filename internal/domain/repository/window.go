package repository

// ChangeWindow represents a percentage-change lookback window.
type ChangeWindow string

const (
	Win1h  ChangeWindow = "1h"
	Win24h ChangeWindow = "24h"
	Win7d  ChangeWindow = "7d"
	Win30d ChangeWindow = "30d"
)

// IsValidWindow returns true if w is a supported change window.
func IsValidWindow(w ChangeWindow) bool {
	switch w {
	case Win1h, Win24h, Win7d, Win30d:
		return true
	default:
		return false
	}
}

// DefaultWindow returns the default change window.
func DefaultWindow() ChangeWindow { return Win24h }

// NormalizeWindow converts a raw string to a valid window (or default).
func NormalizeWindow(s string) ChangeWindow {
	if s == "" {
		return DefaultWindow()
	}
	w := ChangeWindow(s)
	if IsValidWindow(w) {
		return w
	}
	return DefaultWindow()
}
