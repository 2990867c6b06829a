package logging

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AaronLay10/EspressoLine/internal/events"
)

// EventSink mirrors bus events into the logger. Event levels map onto zap
// levels; unknown levels log at info.
func EventSink(l *Logger) events.Sink {
	return events.SinkFunc(func(e events.Event) error {
		fields := make([]zap.Field, 0, len(e.Fields)+2)
		fields = append(fields, zap.String("event", e.Name))
		if e.RunID != "" {
			fields = append(fields, zap.String("run_id", e.RunID))
		}
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, zap.Any(k, e.Fields[k]))
		}

		msg := e.Message
		if msg == "" {
			msg = e.Name
		}
		if ce := l.Check(eventLevel(e.Level), msg); ce != nil {
			ce.Write(fields...)
		}
		return nil
	})
}

func eventLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
