// Package logging is the small module/transport logging framework that the
// bridge plugs into.
//
// A Logger owns named Modules and named Transports. Modules are log sources:
// calling a level method on a Module (Debug, Info, Warn, Severe, Error,
// Fatal) builds an Event and hands it to every Transport bound to that
// module. Transports are sinks: they expose one callback per level.
//
// # Architecture
//
//   - Level: closed set of severities {debug, info, warn, severe, error, fatal}
//   - Event: what a module emits, {Name, Level, Message, Time}
//   - Transport interface: the six OnX callbacks plus Name and Close
//   - Module struct: a named source dispatching to its bound transports
//   - Logger struct: insertion-ordered registry of modules and transports
//
// Levels carry no precedence here; every level is dispatched independently.
//
// # Usage
//
//	log := logging.NewLogger()
//	app, _ := log.AddModule("app")
//	_ = log.AddTransport(sender)      // any logging.Transport
//	_ = log.Bind("app", sender.Name())
//
//	app.Debug("hello") // sender.OnDebug(Event{Name: "app", Message: "hello"})
//
// # Thread Safety
//
// Logger and Module are safe for concurrent use. Modules() returns a
// snapshot, so iterating it while modules are added is fine.
package logging
