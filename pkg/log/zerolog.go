package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologAdapter backs the Logger facade with zerolog. lifecycled wires
// one instance at startup and threads it through the service, the store
// layer, and the export path.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter returns an adapter writing human-readable console
// output to stderr, the format lifecycled uses when run interactively.
func NewZerologAdapter() *ZerologAdapter {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Logger()
	return &ZerologAdapter{logger: logger}
}

// NewZerologAdapterWithLogger wraps a caller-configured zerolog.Logger,
// used by tests to capture output into a buffer.
func NewZerologAdapterWithLogger(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

func (z *ZerologAdapter) Debug(msg string, fields ...Field) {
	event := z.logger.Debug()
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

func (z *ZerologAdapter) Info(msg string, fields ...Field) {
	event := z.logger.Info()
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

func (z *ZerologAdapter) Warn(msg string, fields ...Field) {
	event := z.logger.Warn()
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

func (z *ZerologAdapter) Error(msg string, fields ...Field) {
	event := z.logger.Error()
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

// addField maps a facade Field onto the matching typed zerolog setter so
// values keep their JSON type instead of going through Interface.
func addField(event *zerolog.Event, f Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return event.Str(f.Key, v)
	case int:
		return event.Int(f.Key, v)
	case int64:
		return event.Int64(f.Key, v)
	case bool:
		return event.Bool(f.Key, v)
	case time.Duration:
		return event.Dur(f.Key, v)
	case error:
		return event.Err(v)
	default:
		return event.Interface(f.Key, v)
	}
}

// Logger exposes the underlying zerolog.Logger for callers that need
// zerolog-native configuration, such as the promhttp error logger.
func (z *ZerologAdapter) Logger() zerolog.Logger {
	return z.logger
}
