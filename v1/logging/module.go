package logging

import (
	"sync"
	"time"
)

// Module is a named log source. Level methods build an Event and hand it to
// every transport bound to the module, in bind order.
type Module struct {
	name string
	now  func() time.Time

	mu         sync.RWMutex
	transports []Transport
}

func newModule(name string, now func() time.Time) *Module {
	return &Module{name: name, now: now}
}

// Name returns the module's identifier.
func (m *Module) Name() string {
	return m.name
}

// Transports returns a snapshot of the transports bound to the module.
func (m *Module) Transports() []Transport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transport, len(m.transports))
	copy(out, m.transports)
	return out
}

// bind attaches t unless a transport with the same name is already bound.
func (m *Module) bind(t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bound := range m.transports {
		if bound.Name() == t.Name() {
			return
		}
	}
	m.transports = append(m.transports, t)
}

func (m *Module) unbind(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, bound := range m.transports {
		if bound.Name() == name {
			m.transports = append(m.transports[:i], m.transports[i+1:]...)
			return true
		}
	}
	return false
}

// Log emits message at level. Unknown levels are dropped.
func (m *Module) Log(level Level, message interface{}) {
	if !level.Valid() {
		return
	}
	e := Event{
		Name:    m.name,
		Level:   level,
		Message: message,
		Time:    m.now(),
	}
	for _, t := range m.Transports() {
		Dispatch(t, e)
	}
}

// Debug, Info, Warn, Severe, Error and Fatal are shorthands for Log at the
// level they are named after.
func (m *Module) Debug(message interface{})  { m.Log(LevelDebug, message) }
func (m *Module) Info(message interface{})   { m.Log(LevelInfo, message) }
func (m *Module) Warn(message interface{})   { m.Log(LevelWarn, message) }
func (m *Module) Severe(message interface{}) { m.Log(LevelSevere, message) }
func (m *Module) Error(message interface{})  { m.Log(LevelError, message) }
func (m *Module) Fatal(message interface{})  { m.Log(LevelFatal, message) }
