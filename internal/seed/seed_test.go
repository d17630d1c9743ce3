package seed

import (
	"context"
	"strings"
	"testing"

	"lifecyclecore/pkg/domain"
)

func TestEmbeddedDatasetShape(t *testing.T) {
	ds := MustDataset()
	if got := len(ds.Stages); got != 12 {
		t.Fatalf("expected 12 stages, got %d", got)
	}
	if got := len(ds.Categories); got != 29 {
		t.Fatalf("expected 29 categories, got %d", got)
	}
	if got := len(ds.Tools); got != 72 {
		t.Fatalf("expected 72 tools, got %d", got)
	}
	if got := len(ds.Connections); got != 14 {
		t.Fatalf("expected 14 connections, got %d", got)
	}
}

func TestEmbeddedDatasetPassesIntegrityRules(t *testing.T) {
	if err := Validate(context.Background()); err != nil {
		t.Fatalf("embedded dataset failed validation: %v", err)
	}
}

func TestDatasetReturnsFreshCopy(t *testing.T) {
	first := MustDataset()
	first.Stages[0].Name = "mutated"
	second := MustDataset()
	if second.Stages[0].Name == "mutated" {
		t.Fatal("mutation of one decode leaked into the next")
	}
}

func TestImportToolsCSVMergesRows(t *testing.T) {
	ds := MustDataset()
	csvData := strings.Join([]string{
		"stage,category,description,examples",
		`Analyse,Notebook environments,Interactive analysis notebooks,"Quarto, Observable"`,
		`Collect,Sensor platforms,Field data capture hardware,Arduino`,
	}, "\n")

	merged, err := ImportToolsCSV(ds, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got, want := len(merged.Categories), len(ds.Categories)+2; got != want {
		t.Fatalf("expected %d categories, got %d", want, got)
	}
	if got, want := len(merged.Tools), len(ds.Tools)+3; got != want {
		t.Fatalf("expected %d tools, got %d", want, got)
	}

	// New identifiers go above the current maximum so existing rows keep
	// their ids.
	var maxSeedCategory int64
	for _, cat := range ds.Categories {
		if cat.ID > maxSeedCategory {
			maxSeedCategory = cat.ID
		}
	}
	added := merged.Categories[len(ds.Categories):]
	for _, cat := range added {
		if cat.ID <= maxSeedCategory {
			t.Fatalf("new category id %d collides with seed range", cat.ID)
		}
	}

	// Merged output still satisfies every integrity rule.
	res, err := domain.DefaultRulesEngine().Evaluate(context.Background(), merged)
	if err != nil {
		t.Fatalf("evaluate merged dataset: %v", err)
	}
	if !res.OK() {
		t.Fatalf("merged dataset has violations: %v", res.Violations)
	}

	// Original dataset is untouched.
	if len(ds.Categories) != 29 || len(ds.Tools) != 72 {
		t.Fatal("import mutated its input dataset")
	}
}

func TestImportToolsCSVSkipsUnknownStages(t *testing.T) {
	ds := MustDataset()
	csvData := "stage,category,description,examples\nNo Such Stage,Ghost tools,,Phantom\n"

	merged, err := ImportToolsCSV(ds, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(merged.Categories) != len(ds.Categories) || len(merged.Tools) != len(ds.Tools) {
		t.Fatal("rows naming unknown stages must be skipped")
	}
}

func TestImportToolsCSVRequiresColumns(t *testing.T) {
	if _, err := ImportToolsCSV(MustDataset(), strings.NewReader("name,value\na,b\n")); err == nil {
		t.Fatal("expected error for missing stage/category columns")
	}
}
