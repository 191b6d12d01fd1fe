package logging

// Transport is a sink that modules dispatch events to, one callback per level.
//
// The bridge Sender is a Transport; so is the zap-backed sink in the logger
// package.
type Transport interface {
	// Name identifies the transport inside a Logger.
	Name() string

	OnDebug(e Event)
	OnInfo(e Event)
	OnWarn(e Event)
	OnSevere(e Event)
	OnError(e Event)
	OnFatal(e Event)

	// Close releases the transport's resources.
	Close() error
}

// Dispatch calls the callback of t that matches e.Level.
// Events with an unknown level are ignored.
func Dispatch(t Transport, e Event) {
	switch e.Level {
	case LevelDebug:
		t.OnDebug(e)
	case LevelInfo:
		t.OnInfo(e)
	case LevelWarn:
		t.OnWarn(e)
	case LevelSevere:
		t.OnSevere(e)
	case LevelError:
		t.OnError(e)
	case LevelFatal:
		t.OnFatal(e)
	}
}

// TransportFunc turns a single function into a Transport that receives every
// level. Close is a no-op.
type TransportFunc struct {
	name string
	fn   func(Event)
}

// NewTransportFunc returns a Transport named name that calls fn for each event.
func NewTransportFunc(name string, fn func(Event)) *TransportFunc {
	return &TransportFunc{name: name, fn: fn}
}

// Name returns the transport name. The level callbacks all call fn and
// Close is a no-op.
func (t *TransportFunc) Name() string     { return t.name }
func (t *TransportFunc) OnDebug(e Event)  { t.fn(e) }
func (t *TransportFunc) OnInfo(e Event)   { t.fn(e) }
func (t *TransportFunc) OnWarn(e Event)   { t.fn(e) }
func (t *TransportFunc) OnSevere(e Event) { t.fn(e) }
func (t *TransportFunc) OnError(e Event)  { t.fn(e) }
func (t *TransportFunc) OnFatal(e Event)  { t.fn(e) }
func (t *TransportFunc) Close() error     { return nil }
