// FILE: src/internal/core/level.go
package core

import "strings"

// Log levels in ascending severity order.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ValidLevel reports whether s is one of the four record levels.
func ValidLevel(s string) bool {
	_, ok := levelRank[s]
	return ok
}

// NormalizeLevel maps a free-form level name to a record level,
// defaulting to INFO for anything unrecognized.
func NormalizeLevel(s string) string {
	upper := strings.ToUpper(strings.TrimSpace(s))
	switch upper {
	case "WARNING":
		return LevelWarn
	case "ERR":
		return LevelError
	}
	if ValidLevel(upper) {
		return upper
	}
	return LevelInfo
}

// LevelAtLeast reports whether level is at or above min severity.
// Unknown levels never pass.
func LevelAtLeast(level, min string) bool {
	lr, ok := levelRank[level]
	if !ok {
		return false
	}
	mr, ok := levelRank[min]
	if !ok {
		return false
	}
	return lr >= mr
}
