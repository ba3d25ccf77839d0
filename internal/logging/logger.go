package logging

import (
	"strings"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	ctrlzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// New builds the root logr.Logger for the process, the same way the
// teacher wires ctrl.Log: a controller-runtime zap sink configured for
// JSON production output, with its level set from LOG_LEVEL.
func New(level string) logr.Logger {
	return ctrlzap.New(ctrlzap.UseDevMode(false), ctrlzap.Level(parseLevel(level)))
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
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

// WithFields returns a child logger carrying the given structured Fields,
// the idiomatic logr equivalent of a zap.Logger.With(...) call.
func WithFields(log logr.Logger, f Fields) logr.Logger {
	return log.WithValues(f.KeysAndValues()...)
}
