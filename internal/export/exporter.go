// Package export renders taxonomy snapshots into archive blobs.
//
// An export materializes the full dataset as a zip archive containing a
// JSON document plus one CSV file per entity table, and writes it through
// a blob.Store. Keys are timestamped so successive exports never collide
// with the create-only Put semantics of the blob drivers.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"lifecyclecore/internal/blob"
	"lifecyclecore/pkg/domain"
	"lifecyclecore/pkg/log"
)

const archiveContentType = "application/zip"

// Record describes a completed export.
type Record struct {
	Key         string    `json:"key"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	Stages      int       `json:"stages"`
	Categories  int       `json:"categories"`
	Tools       int       `json:"tools"`
	Connections int       `json:"connections"`
	CreatedAt   time.Time `json:"created_at"`
}

// Exporter writes taxonomy snapshot archives to a blob store.
type Exporter struct {
	store  blob.Store
	logger log.Logger
	now    func() time.Time
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger(l log.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source. Used by tests for stable keys.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter constructs an Exporter over the given blob store.
func NewExporter(store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{store: store, logger: log.NewNoopLogger(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export renders ds into a zip archive and stores it. The returned record
// carries the blob key and per-entity row counts.
func (e *Exporter) Export(ctx context.Context, ds domain.Dataset) (Record, error) {
	if e.store == nil {
		return Record{}, fmt.Errorf("export: blob store not configured")
	}
	now := e.now().UTC()
	payload, err := buildArchive(ds, now)
	if err != nil {
		return Record{}, err
	}
	key := fmt.Sprintf("exports/taxonomy-%s.zip", now.Format("20060102T150405Z"))
	info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: archiveContentType,
		Metadata: map[string]string{
			"stages": strconv.Itoa(len(ds.Stages)),
			"tools":  strconv.Itoa(len(ds.Tools)),
		},
	})
	if err != nil {
		return Record{}, fmt.Errorf("store archive: %w", err)
	}
	e.logger.Info("taxonomy export written",
		log.String("key", info.Key),
		log.Int64("size_bytes", info.Size),
		log.Int("tools", len(ds.Tools)))
	return Record{
		Key:         info.Key,
		SizeBytes:   info.Size,
		ETag:        info.ETag,
		Stages:      len(ds.Stages),
		Categories:  len(ds.Categories),
		Tools:       len(ds.Tools),
		Connections: len(ds.Connections),
		CreatedAt:   now,
	}, nil
}

func buildArchive(ds domain.Dataset, now time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	doc := struct {
		GeneratedAt time.Time      `json:"generated_at"`
		Dataset     domain.Dataset `json:"dataset"`
	}{GeneratedAt: now, Dataset: ds}
	jb, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal dataset: %w", err)
	}
	if err := writeArchiveFile(zw, "taxonomy.json", jb); err != nil {
		return nil, err
	}

	tables := []struct {
		name   string
		header []string
		rows   func() [][]string
	}{
		{"stages.csv", []string{"id", "name", "description", "order_index"}, func() [][]string {
			out := make([][]string, 0, len(ds.Stages))
			for _, s := range ds.Stages {
				out = append(out, []string{formatID(s.ID), s.Name, s.Description, strconv.Itoa(s.OrderIndex)})
			}
			return out
		}},
		{"tool_categories.csv", []string{"id", "stage_id", "name", "description"}, func() [][]string {
			out := make([][]string, 0, len(ds.Categories))
			for _, c := range ds.Categories {
				out = append(out, []string{formatID(c.ID), formatID(c.StageID), c.Name, c.Description})
			}
			return out
		}},
		{"tools.csv", []string{"id", "category_id", "name", "description", "url", "source", "interoperable", "scope"}, func() [][]string {
			out := make([][]string, 0, len(ds.Tools))
			for _, t := range ds.Tools {
				out = append(out, []string{
					formatID(t.ID), formatID(t.CategoryID), t.Name, t.Description, t.URL,
					string(t.Source), strconv.FormatBool(t.Interoperable), string(t.Scope),
				})
			}
			return out
		}},
		{"connections.csv", []string{"id", "from_stage_id", "to_stage_id", "type"}, func() [][]string {
			out := make([][]string, 0, len(ds.Connections))
			for _, c := range ds.Connections {
				out = append(out, []string{formatID(c.ID), formatID(c.FromStageID), formatID(c.ToStageID), string(c.Type)})
			}
			return out
		}},
	}
	for _, table := range tables {
		cb, err := renderCSV(table.header, table.rows())
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", table.name, err)
		}
		if err := writeArchiveFile(zw, table.name, cb); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeArchiveFile(zw *zip.Writer, name string, payload []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

func renderCSV(header []string, rows [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
