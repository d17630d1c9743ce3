package seed

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"lifecyclecore/pkg/domain"
)

// CSV column headers accepted by ImportToolsCSV, matching the working
// group's spreadsheet export.
const (
	columnStage       = "stage"
	columnCategory    = "category"
	columnDescription = "description"
	columnExamples    = "examples"
)

// ImportToolsCSV merges category and tool rows from a spreadsheet export
// into a copy of the dataset. Each record names a stage, a category, a
// one-sentence category description, and a comma-separated list of example
// tools. Records naming an unknown stage are skipped; blank tool names are
// ignored. New rows receive identifiers above the current maximum.
func ImportToolsCSV(ds domain.Dataset, r io.Reader) (domain.Dataset, error) {
	out := ds.Clone()

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return out, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{columnStage, columnCategory} {
		if _, ok := cols[required]; !ok {
			return out, fmt.Errorf("csv missing %q column", required)
		}
	}

	stagesByName := make(map[string]domain.Stage, len(out.Stages))
	for _, stage := range out.Stages {
		stagesByName[strings.ToLower(stage.Name)] = stage
	}
	nextCategoryID := maxCategoryID(out) + 1
	nextToolID := maxToolID(out) + 1

	field := func(record []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read csv record: %w", err)
		}
		stageName := field(record, columnStage)
		categoryName := field(record, columnCategory)
		if stageName == "" || categoryName == "" {
			continue
		}
		stage, ok := stagesByName[strings.ToLower(stageName)]
		if !ok {
			continue
		}

		category := domain.ToolCategory{
			ID:          nextCategoryID,
			StageID:     stage.ID,
			Name:        categoryName,
			Description: field(record, columnDescription),
		}
		nextCategoryID++
		out.Categories = append(out.Categories, category)

		for _, toolName := range strings.Split(field(record, columnExamples), ",") {
			toolName = strings.TrimSpace(toolName)
			if toolName == "" {
				continue
			}
			out.Tools = append(out.Tools, domain.Tool{
				ID:            nextToolID,
				CategoryID:    category.ID,
				Name:          toolName,
				Description:   fmt.Sprintf("Example tool for %s", categoryName),
				Source:        domain.SourceOpen,
				Interoperable: true,
				Scope:         domain.ScopeGeneric,
			})
			nextToolID++
		}
	}

	return out, nil
}

func maxCategoryID(ds domain.Dataset) int64 {
	var max int64
	for _, cat := range ds.Categories {
		if cat.ID > max {
			max = cat.ID
		}
	}
	return max
}

func maxToolID(ds domain.Dataset) int64 {
	var max int64
	for _, tool := range ds.Tools {
		if tool.ID > max {
			max = tool.ID
		}
	}
	return max
}
