package logging

import (
	"bytes"
	"context"
	"testing"

	"svgdeck/internal/observability"
)

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Debug(format string, args ...any) { c.lines = append(c.lines, format) }
func (c *captureLogger) Info(format string, args ...any)  { c.lines = append(c.lines, format) }
func (c *captureLogger) Warn(format string, args ...any)  { c.lines = append(c.lines, format) }
func (c *captureLogger) Error(format string, args ...any) { c.lines = append(c.lines, format) }

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var capture *captureLogger
	var logger Logger = capture
	if !IsNil(logger) {
		t.Fatalf("expected typed nil pointer to be detected")
	}
	safe := OrNop(logger)
	if IsNil(safe) {
		t.Fatalf("expected OrNop to return a usable logger")
	}
	safe.Info("hello %s", "world") // should not panic
}

func TestFromObservabilityFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{
		Level:  "info",
		Format: "text",
		Output: buf,
	})

	logger := FromObservabilityWithComponent(base, "builder")
	logger.Info("slide %d embedded", 3)

	if want := "slide 3 embedded"; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
	if want := "component=builder"; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
}

func TestFromContextAddsBuildID(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{Level: "debug", Output: buf})
	ctx := observability.ContextWithBuildID(context.Background(), "b-42")

	FromContext(ctx, FromObservabilityWithComponent(base, "")).Debug("start")
	if !bytes.Contains(buf.Bytes(), []byte("build_id=b-42")) {
		t.Fatalf("expected build id field, got %q", buf.String())
	}

	capture := &captureLogger{}
	FromContext(ctx, capture).Warn("plain")
	if len(capture.lines) != 1 || capture.lines[0] != "build=b-42 plain" {
		t.Fatalf("unexpected prefixed lines: %v", capture.lines)
	}
}
