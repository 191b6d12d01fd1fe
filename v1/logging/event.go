package logging

import (
	"errors"
	"time"
)

var (
	// ErrUnknownLevel is returned when a level name is outside the closed set.
	ErrUnknownLevel = errors.New("unknown log level")

	// ErrModuleExists is returned when a module name is registered twice.
	ErrModuleExists = errors.New("module already registered")

	// ErrModuleNotFound is returned when a module name is not registered.
	ErrModuleNotFound = errors.New("module not found")

	// ErrTransportExists is returned when a transport name is registered twice.
	ErrTransportExists = errors.New("transport already registered")

	// ErrTransportNotFound is returned when a transport name is not registered.
	ErrTransportNotFound = errors.New("transport not found")

	// ErrLoggerClosed is returned by registration calls after Close.
	ErrLoggerClosed = errors.New("logger closed")
)

// Event is what a module hands to its transports.
type Event struct {
	// Name is the emitting module's name.
	Name string

	// Level is the severity the event was emitted at.
	Level Level

	// Message is the payload passed to the module's level method.
	Message interface{}

	// Time is when the module emitted the event.
	Time time.Time
}
