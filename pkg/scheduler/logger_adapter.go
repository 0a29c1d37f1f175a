package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	log *zap.Logger
}

var _ cron.Logger = (*cronLogger)(nil)

func newCronLogger(log *zap.Logger) *cronLogger {
	return &cronLogger{log: log.Named("cron")}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, toZapFields(keysAndValues...)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(toZapFields(keysAndValues...), zap.Error(err))
	l.log.Error(msg, fields...)
}

// Helper to convert interface fields to zap.Field
func toZapFields(fields ...interface{}) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			zapFields = append(zapFields, zap.Any(fmt.Sprint(fields[i]), fields[i+1]))
		}
	}
	return zapFields
}
