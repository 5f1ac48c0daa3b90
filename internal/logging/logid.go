package logging

import (
	"context"

	"svgdeck/internal/observability"
)

type fieldCapable interface {
	With(args ...any) Logger
}

// WithBuildID returns a logger that tags log lines with a build id.
func WithBuildID(logger Logger, buildID string) Logger {
	if IsNil(logger) {
		return Nop()
	}
	if buildID == "" {
		return logger
	}
	if capable, ok := logger.(fieldCapable); ok {
		return capable.With("build_id", buildID)
	}
	return &buildIDLogger{logger: logger, buildID: buildID}
}

// FromContext returns a logger tagged with the build id found in ctx, if any.
func FromContext(ctx context.Context, logger Logger) Logger {
	return WithBuildID(logger, observability.BuildIDFromContext(ctx))
}

type buildIDLogger struct {
	logger  Logger
	buildID string
}

func (l *buildIDLogger) Debug(format string, args ...any) {
	l.logger.Debug(prefixBuildID(l.buildID, format), args...)
}

func (l *buildIDLogger) Info(format string, args ...any) {
	l.logger.Info(prefixBuildID(l.buildID, format), args...)
}

func (l *buildIDLogger) Warn(format string, args ...any) {
	l.logger.Warn(prefixBuildID(l.buildID, format), args...)
}

func (l *buildIDLogger) Error(format string, args ...any) {
	l.logger.Error(prefixBuildID(l.buildID, format), args...)
}

func prefixBuildID(buildID, format string) string {
	return "build=" + buildID + " " + format
}
