package log

// NoopLogger satisfies Logger without emitting anything. The taxonomy
// service and exporter default to it until the composition root in
// cmd/lifecycled attaches a real backend, which keeps unit tests silent.
type NoopLogger struct{}

// NewNoopLogger returns a logger that drops every message.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (NoopLogger) Debug(msg string, fields ...Field) {}

func (NoopLogger) Info(msg string, fields ...Field) {}

func (NoopLogger) Warn(msg string, fields ...Field) {}

func (NoopLogger) Error(msg string, fields ...Field) {}
