package logging

import (
	"fmt"
	"strings"
)

// Level is a log severity. Its string form is used both as the broker
// routing key and as the name of the method invoked on modules.
type Level string

const (
	LevelDebug  Level = "debug"
	LevelInfo   Level = "info"
	LevelWarn   Level = "warn"
	LevelSevere Level = "severe"
	LevelError  Level = "error"
	LevelFatal  Level = "fatal"
)

var levels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelSevere, LevelError, LevelFatal}

// Levels returns all levels in declaration order.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// String implements fmt.Stringer.
func (l Level) String() string {
	return string(l)
}

// Valid reports whether l belongs to the closed set of levels.
func (l Level) Valid() bool {
	for _, lvl := range levels {
		if lvl == l {
			return true
		}
	}
	return false
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return l, nil
}
