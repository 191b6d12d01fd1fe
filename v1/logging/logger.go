package logging

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger is the registry of modules and transports.
//
// Modules are kept in registration order; Modules() always returns them in
// that order, which is the fan-out order used by the bridge Receiver.
type Logger struct {
	now func() time.Time

	mu             sync.RWMutex
	modules        []*Module
	moduleIndex    map[string]*Module
	transports     map[string]Transport
	transportOrder []string
	closed         bool
}

// NewLogger returns an empty Logger.
func NewLogger() *Logger {
	return &Logger{
		now:         time.Now,
		moduleIndex: make(map[string]*Module),
		transports:  make(map[string]Transport),
	}
}

// AddModule registers a new module called name and returns it.
func (l *Logger) AddModule(name string) (*Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoggerClosed
	}
	if _, ok := l.moduleIndex[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleExists, name)
	}

	m := newModule(name, l.now)
	l.modules = append(l.modules, m)
	l.moduleIndex[name] = m
	return m, nil
}

// Module looks a module up by name.
func (l *Logger) Module(name string) (*Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.moduleIndex[name]
	return m, ok
}

// Modules returns a snapshot of all modules in registration order.
func (l *Logger) Modules() []*Module {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Module, len(l.modules))
	copy(out, l.modules)
	return out
}

// RemoveModule unregisters the module called name.
func (l *Logger) RemoveModule(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.moduleIndex[name]; !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	delete(l.moduleIndex, name)
	for i, m := range l.modules {
		if m.name == name {
			l.modules = append(l.modules[:i], l.modules[i+1:]...)
			break
		}
	}
	return nil
}

// AddTransport registers t under t.Name().
func (l *Logger) AddTransport(t Transport) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLoggerClosed
	}
	name := t.Name()
	if _, ok := l.transports[name]; ok {
		return fmt.Errorf("%w: %s", ErrTransportExists, name)
	}
	l.transports[name] = t
	l.transportOrder = append(l.transportOrder, name)
	return nil
}

// Transport looks a transport up by name.
func (l *Logger) Transport(name string) (Transport, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.transports[name]
	return t, ok
}

// Bind attaches the named transports to the named module.
func (l *Logger) Bind(module string, transports ...string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.moduleIndex[module]
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, module)
	}

	resolved := make([]Transport, 0, len(transports))
	for _, name := range transports {
		t, ok := l.transports[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrTransportNotFound, name)
		}
		resolved = append(resolved, t)
	}
	for _, t := range resolved {
		m.bind(t)
	}
	return nil
}

// Unbind detaches the named transport from the named module.
func (l *Logger) Unbind(module, transport string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.moduleIndex[module]
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, module)
	}
	if !m.unbind(transport) {
		return fmt.Errorf("%w: %s", ErrTransportNotFound, transport)
	}
	return nil
}

// Close closes every registered transport in registration order and returns
// the joined errors. Calling Close more than once is a no-op.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	order := l.transportOrder
	transports := l.transports
	l.mu.Unlock()

	var errs []error
	for _, name := range order {
		if err := transports[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
