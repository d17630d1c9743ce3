package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestZerologAdapterSerializesFields(t *testing.T) {
	buf := &bytes.Buffer{}
	adapter := NewZerologAdapterWithLogger(zerolog.New(buf))

	adapter.Info("query served",
		String("operation", "get_stage"),
		Int("stages", 12),
		Int64("id", 4),
		Bool("cached", false),
		Duration("elapsed", 5*time.Millisecond),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["message"] != "query served" {
		t.Fatalf("message %v", entry["message"])
	}
	if entry["operation"] != "get_stage" {
		t.Fatalf("operation %v", entry["operation"])
	}
	if entry["stages"] != float64(12) {
		t.Fatalf("stages %v", entry["stages"])
	}
	if entry["level"] != "info" {
		t.Fatalf("level %v", entry["level"])
	}
}

func TestZerologAdapterErrField(t *testing.T) {
	buf := &bytes.Buffer{}
	adapter := NewZerologAdapterWithLogger(zerolog.New(buf))

	adapter.Error("query failed", Err(errors.New("boom")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["error"] != "boom" {
		t.Fatalf("error field %v", entry["error"])
	}
	if entry["level"] != "error" {
		t.Fatalf("level %v", entry["level"])
	}
}

func TestNoopLoggerAcceptsAllLevels(t *testing.T) {
	var logger Logger = NewNoopLogger()
	logger.Debug("d")
	logger.Info("i", Any("k", struct{}{}))
	logger.Warn("w")
	logger.Error("e", Err(errors.New("ignored")))
}
