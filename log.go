package quic

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ai-codepen/quix/transport"
)

// LogLevel controls both this package's own log.Printf-style messages and
// how much of the transport.LogEvent stream gets attached to logrus.
type LogLevel int

// Log levels, ordered least to most verbose.
const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LevelError:
		return logrus.ErrorLevel
	case LevelInfo:
		return logrus.InfoLevel
	case LevelDebug:
		return logrus.DebugLevel
	case LevelTrace:
		return logrus.TraceLevel
	default:
		return logrus.PanicLevel // effectively silent: nothing logs above Trace
	}
}

// Logger adapts this module's qlog-style transport.LogEvent stream onto a
// structured logrus.Logger, the way a caller wiring several PacketNumberSpace
// instances into a connection is expected to.
type Logger struct {
	level LogLevel
	entry *logrus.Entry
}

// NewLogger returns a Logger at the given verbosity, writing through out.
func NewLogger(level LogLevel, out *logrus.Logger) *Logger {
	out.SetLevel(level.logrusLevel())
	return &Logger{level: level, entry: logrus.NewEntry(out)}
}

// Log writes a freeform, non-protocol message at LevelInfo.
func (s *Logger) Log(format string, values ...interface{}) {
	if s.level < LevelInfo {
		return
	}
	s.entry.Infof(format, values...)
}

// Attach subscribes to every log event a packet-number space produces,
// tagging each one with the given prefix fields (typically connection and
// space identifiers) before forwarding it to logrus. Any hooks are invoked
// for every event regardless of verbosity, so a caller can derive metrics
// (packets lost, bytes acked, ...) from the same event stream without
// needing Debug-level logging turned on.
func (s *Logger) Attach(sp PacketNumberSpaceLogSource, fields logrus.Fields, hooks ...func(transport.LogEvent)) {
	logDebug := s.level >= LevelDebug
	if !logDebug && len(hooks) == 0 {
		return
	}
	entry := s.entry.WithFields(fields)
	sp.OnLogEvent(func(e transport.LogEvent) {
		for _, hook := range hooks {
			hook(e)
		}
		if logDebug {
			logEvent(entry, e)
		}
	})
}

// PacketNumberSpaceLogSource is the subset of *transport.PacketNumberSpace
// behavior log attachment needs, kept as an interface so this file does not
// have to import the concrete type for its own sake.
type PacketNumberSpaceLogSource interface {
	OnLogEvent(func(transport.LogEvent))
}

func logEvent(entry *logrus.Entry, e transport.LogEvent) {
	fields := make(logrus.Fields, len(e.Fields)+1)
	fields["event_time"] = e.Time.Format(time.RFC3339Nano)
	for _, f := range e.Fields {
		if f.Str != "" {
			fields[f.Key] = f.Str
		} else {
			fields[f.Key] = f.Num
		}
	}
	entry.WithFields(fields).Debug(e.Type)
}
