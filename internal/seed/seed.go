// Package seed carries the fixed taxonomy dataset embedded in the binary
// and the CSV ingest path used to refresh it from the working group's
// spreadsheet exports.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"lifecyclecore/pkg/domain"
)

//go:embed dataset.json
var datasetJSON []byte

// Dataset decodes the embedded seed dataset. The result is a fresh copy
// on every call, so callers may mutate it freely.
func Dataset() (domain.Dataset, error) {
	var ds domain.Dataset
	if err := json.Unmarshal(datasetJSON, &ds); err != nil {
		return domain.Dataset{}, fmt.Errorf("decode embedded dataset: %w", err)
	}
	return ds, nil
}

// MustDataset is Dataset for composition roots where a broken embed is
// unrecoverable.
func MustDataset() domain.Dataset {
	ds, err := Dataset()
	if err != nil {
		panic(err)
	}
	return ds
}

// Validate runs the default integrity rules against the embedded dataset.
func Validate(ctx context.Context) error {
	ds, err := Dataset()
	if err != nil {
		return err
	}
	res, err := domain.DefaultRulesEngine().Evaluate(ctx, ds)
	if err != nil {
		return err
	}
	if !res.OK() {
		return domain.IntegrityError{Result: res}
	}
	return nil
}
