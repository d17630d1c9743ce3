package domain

import (
	"context"
	"fmt"
)

// DefaultRulesEngine returns an engine loaded with every taxonomy
// integrity rule. Stores evaluate it against a dataset before import.
func DefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(StageOrderRule())
	engine.Register(NormalCycleRule())
	engine.Register(ReferentialIntegrityRule())
	return engine
}

// StageOrderRule enforces that stage order indexes form a contiguous
// 1..N sequence with no duplicates and that stage IDs are unique.
func StageOrderRule() Rule {
	return stageOrderRule{}
}

type stageOrderRule struct{}

func (stageOrderRule) Name() string { return "stage_order" }

func (stageOrderRule) Evaluate(_ context.Context, ds Dataset) (Result, error) {
	res := Result{}

	byOrder := make(map[int]Stage, len(ds.Stages))
	ids := make(map[int64]struct{}, len(ds.Stages))
	for _, stage := range ds.Stages {
		if _, dup := ids[stage.ID]; dup {
			res.Violations = append(res.Violations, stageViolation("stage_order", stage.ID, fmt.Sprintf("duplicate stage id %d", stage.ID)))
			continue
		}
		ids[stage.ID] = struct{}{}
		if prev, dup := byOrder[stage.OrderIndex]; dup {
			res.Violations = append(res.Violations, stageViolation("stage_order", stage.ID, fmt.Sprintf("order index %d already used by stage %d", stage.OrderIndex, prev.ID)))
			continue
		}
		byOrder[stage.OrderIndex] = stage
	}

	for idx := 1; idx <= len(ds.Stages); idx++ {
		if _, ok := byOrder[idx]; !ok {
			res.Violations = append(res.Violations, Violation{
				Rule:    "stage_order",
				Entity:  EntityStage,
				Message: fmt.Sprintf("order index %d missing: stage sequence must be contiguous 1..%d", idx, len(ds.Stages)),
			})
		}
	}

	return res, nil
}

// NormalCycleRule enforces that normal connections form exactly one cycle
// visiting every stage once, following order-index sequence with the last
// stage wrapping to the first.
func NormalCycleRule() Rule {
	return normalCycleRule{}
}

type normalCycleRule struct{}

func (normalCycleRule) Name() string { return "normal_cycle" }

func (normalCycleRule) Evaluate(_ context.Context, ds Dataset) (Result, error) {
	res := Result{}
	if len(ds.Stages) == 0 {
		return res, nil
	}

	byOrder := make(map[int]Stage, len(ds.Stages))
	for _, stage := range ds.Stages {
		byOrder[stage.OrderIndex] = stage
	}
	// Expected successor for each stage under the canonical cycle.
	next := make(map[int64]int64, len(ds.Stages))
	for idx := 1; idx <= len(ds.Stages); idx++ {
		from, okFrom := byOrder[idx]
		to, okTo := byOrder[idx%len(ds.Stages)+1]
		if !okFrom || !okTo {
			// Contiguity failures are reported by StageOrderRule.
			return res, nil
		}
		next[from.ID] = to.ID
	}

	seen := make(map[int64]struct{}, len(ds.Stages))
	for _, conn := range ds.Connections {
		if conn.Type != ConnectionNormal {
			continue
		}
		if _, dup := seen[conn.FromStageID]; dup {
			res.Violations = append(res.Violations, connectionViolation("normal_cycle", conn.ID, fmt.Sprintf("stage %d has more than one normal outgoing edge", conn.FromStageID)))
			continue
		}
		seen[conn.FromStageID] = struct{}{}
		want, ok := next[conn.FromStageID]
		if !ok {
			res.Violations = append(res.Violations, connectionViolation("normal_cycle", conn.ID, fmt.Sprintf("normal edge starts at unknown stage %d", conn.FromStageID)))
			continue
		}
		if conn.ToStageID != want {
			res.Violations = append(res.Violations, connectionViolation("normal_cycle", conn.ID, fmt.Sprintf("normal edge %d->%d breaks the canonical cycle, expected %d->%d", conn.FromStageID, conn.ToStageID, conn.FromStageID, want)))
		}
	}

	for stageID := range next {
		if _, ok := seen[stageID]; !ok {
			res.Violations = append(res.Violations, Violation{
				Rule:     "normal_cycle",
				Entity:   EntityStage,
				EntityID: stageID,
				Message:  fmt.Sprintf("stage %d has no normal outgoing edge: cycle must cover every stage", stageID),
			})
		}
	}

	return res, nil
}

// ReferentialIntegrityRule enforces that every category references an
// existing stage, every tool an existing category, and every connection
// two existing stages.
func ReferentialIntegrityRule() Rule {
	return referentialIntegrityRule{}
}

type referentialIntegrityRule struct{}

func (referentialIntegrityRule) Name() string { return "referential_integrity" }

func (referentialIntegrityRule) Evaluate(_ context.Context, ds Dataset) (Result, error) {
	res := Result{}

	stages := make(map[int64]struct{}, len(ds.Stages))
	for _, stage := range ds.Stages {
		stages[stage.ID] = struct{}{}
	}
	categories := make(map[int64]struct{}, len(ds.Categories))
	for _, cat := range ds.Categories {
		if _, dup := categories[cat.ID]; dup {
			res.Violations = append(res.Violations, Violation{Rule: "referential_integrity", Entity: EntityToolCategory, EntityID: cat.ID, Message: fmt.Sprintf("duplicate category id %d", cat.ID)})
			continue
		}
		categories[cat.ID] = struct{}{}
		if _, ok := stages[cat.StageID]; !ok {
			res.Violations = append(res.Violations, Violation{Rule: "referential_integrity", Entity: EntityToolCategory, EntityID: cat.ID, Message: fmt.Sprintf("category %d references missing stage %d", cat.ID, cat.StageID)})
		}
	}

	toolIDs := make(map[int64]struct{}, len(ds.Tools))
	for _, tool := range ds.Tools {
		if _, dup := toolIDs[tool.ID]; dup {
			res.Violations = append(res.Violations, Violation{Rule: "referential_integrity", Entity: EntityTool, EntityID: tool.ID, Message: fmt.Sprintf("duplicate tool id %d", tool.ID)})
			continue
		}
		toolIDs[tool.ID] = struct{}{}
		if _, ok := categories[tool.CategoryID]; !ok {
			res.Violations = append(res.Violations, Violation{Rule: "referential_integrity", Entity: EntityTool, EntityID: tool.ID, Message: fmt.Sprintf("tool %d references missing category %d", tool.ID, tool.CategoryID)})
		}
	}

	for _, conn := range ds.Connections {
		if _, ok := stages[conn.FromStageID]; !ok {
			res.Violations = append(res.Violations, connectionViolation("referential_integrity", conn.ID, fmt.Sprintf("connection %d starts at missing stage %d", conn.ID, conn.FromStageID)))
		}
		if _, ok := stages[conn.ToStageID]; !ok {
			res.Violations = append(res.Violations, connectionViolation("referential_integrity", conn.ID, fmt.Sprintf("connection %d ends at missing stage %d", conn.ID, conn.ToStageID)))
		}
	}

	return res, nil
}

func stageViolation(rule string, id int64, msg string) Violation {
	return Violation{Rule: rule, Entity: EntityStage, EntityID: id, Message: msg}
}

func connectionViolation(rule string, id int64, msg string) Violation {
	return Violation{Rule: rule, Entity: EntityConnection, EntityID: id, Message: msg}
}
