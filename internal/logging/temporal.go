package logging

import (
	"fmt"

	"github.com/rs/zerolog"
	tlog "go.temporal.io/sdk/log"
)

// TemporalLogger routes Temporal SDK logs into zerolog.
type TemporalLogger struct {
	log zerolog.Logger
}

var _ tlog.Logger = TemporalLogger{}

func NewTemporalLogger(l zerolog.Logger) TemporalLogger {
	return TemporalLogger{log: l.With().Str("component", "temporal").Logger()}
}

func (t TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	t.emit(t.log.Debug(), msg, keyvals)
}

func (t TemporalLogger) Info(msg string, keyvals ...interface{}) {
	t.emit(t.log.Info(), msg, keyvals)
}

func (t TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	t.emit(t.log.Warn(), msg, keyvals)
}

func (t TemporalLogger) Error(msg string, keyvals ...interface{}) {
	t.emit(t.log.Error(), msg, keyvals)
}

func (t TemporalLogger) emit(e *zerolog.Event, msg string, keyvals []interface{}) {
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 == len(keyvals) {
			e = e.Interface("extra", keyvals[i])
			break
		}
		if err, ok := keyvals[i+1].(error); ok {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}
