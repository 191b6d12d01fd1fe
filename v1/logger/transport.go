package logger

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fayulogger/mqlog/v1/logging"
)

// Transport is a logging.Transport that writes every event to a LoggerClient.
//
// Levels map onto zap as follows: debug, info, warn and error keep their
// meaning; severe is written at warn and fatal at error. The original level is
// always present in the "severity" field, and fatal never exits the process.
type Transport struct {
	name string
	log  *LoggerClient
}

var _ logging.Transport = (*Transport)(nil)

// NewTransport returns a Transport called name writing to log.
func NewTransport(name string, log *LoggerClient) *Transport {
	return &Transport{name: name, log: log}
}

// Name returns the transport name.
func (t *Transport) Name() string { return t.name }

// OnDebug writes e at debug level.
func (t *Transport) OnDebug(e logging.Event) { t.log.Zap.Debug(t.message(e), t.fields(e)...) }

// OnInfo writes e at info level.
func (t *Transport) OnInfo(e logging.Event) { t.log.Zap.Info(t.message(e), t.fields(e)...) }

// OnWarn writes e at warn level.
func (t *Transport) OnWarn(e logging.Event) { t.log.Zap.Warn(t.message(e), t.fields(e)...) }

// OnSevere writes e at warn level with severity "severe".
func (t *Transport) OnSevere(e logging.Event) { t.log.Zap.Warn(t.message(e), t.fields(e)...) }

// OnError writes e at error level.
func (t *Transport) OnError(e logging.Event) { t.log.Zap.Error(t.message(e), t.fields(e)...) }

// OnFatal writes e at error level with severity "fatal". It never exits the process.
func (t *Transport) OnFatal(e logging.Event) { t.log.Zap.Error(t.message(e), t.fields(e)...) }

// Close flushes the underlying zap logger.
func (t *Transport) Close() error {
	_ = t.log.Zap.Sync()
	return nil
}

func (t *Transport) message(e logging.Event) string {
	if s, ok := e.Message.(string); ok {
		return s
	}
	if s, ok := e.Message.(fmt.Stringer); ok {
		return s.String()
	}
	return "event"
}

func (t *Transport) fields(e logging.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("module", e.Name),
		zap.String("severity", e.Level.String()),
	}
	if _, ok := e.Message.(string); !ok && e.Message != nil {
		// zap.Any picks zap.Object for zapcore.ObjectMarshaler payloads
		fields = append(fields, zap.Any("payload", e.Message))
	}
	return fields
}
