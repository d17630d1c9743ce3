// Package domain defines the persistent entities, value types, and
// integrity rule primitives of the research data lifecycle taxonomy.
package domain

import "fmt"

// EntityType identifies the type of record stored in the taxonomy.
type EntityType string

// Supported entity type identifiers used in violations and persistence tables.
const (
	// EntityStage identifies a lifecycle stage record.
	EntityStage EntityType = "stage"
	// EntityToolCategory identifies a tool category record.
	EntityToolCategory EntityType = "tool_category"
	// EntityTool identifies an example tool record.
	EntityTool EntityType = "tool"
	// EntityConnection identifies a stage transition record.
	EntityConnection EntityType = "connection"
)

// ToolSource describes whether a tool's implementation is open or closed.
type ToolSource string

// Canonical tool source values.
const (
	SourceOpen   ToolSource = "open"
	SourceClosed ToolSource = "closed"
)

// ToolScope describes whether a tool is general-purpose or field-specific.
type ToolScope string

// Canonical tool scope values.
const (
	ScopeGeneric      ToolScope = "Generic"
	ScopeDisciplinary ToolScope = "Disciplinary"
)

// ConnectionType distinguishes canonical forward edges from shortcuts.
type ConnectionType string

// Canonical connection types. Normal edges form the forward cycle over all
// stages in order-index sequence; alternative edges are permitted shortcut
// or backward transitions outside that cycle.
const (
	ConnectionNormal      ConnectionType = "normal"
	ConnectionAlternative ConnectionType = "alternative"
)

// Stage represents one phase of the research data lifecycle.
type Stage struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// OrderIndex positions the stage in the canonical forward cycle.
	// Values are contiguous 1..N across all stages.
	OrderIndex int `json:"order_index"`
}

// ToolCategory groups example tools by function within a single stage.
type ToolCategory struct {
	ID          int64  `json:"id"`
	StageID     int64  `json:"stage_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tool is one example tool belonging to a category.
type Tool struct {
	ID            int64      `json:"id"`
	CategoryID    int64      `json:"category_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	URL           string     `json:"url"`
	Source        ToolSource `json:"source"`
	Interoperable bool       `json:"interoperable"`
	Scope         ToolScope  `json:"scope"`
}

// Connection is a directed transition between two stages.
type Connection struct {
	ID          int64          `json:"id"`
	FromStageID int64          `json:"from_stage_id"`
	ToStageID   int64          `json:"to_stage_id"`
	Type        ConnectionType `json:"connection_type"`
}

// Dataset is a full snapshot of the four taxonomy tables. It is the unit
// of seeding, import, export, and integrity validation.
type Dataset struct {
	Stages      []Stage        `json:"stages"`
	Categories  []ToolCategory `json:"tool_categories"`
	Tools       []Tool         `json:"tools"`
	Connections []Connection   `json:"connections"`
}

// Empty reports whether the dataset carries no rows at all.
func (d Dataset) Empty() bool {
	return len(d.Stages) == 0 && len(d.Categories) == 0 && len(d.Tools) == 0 && len(d.Connections) == 0
}

// Clone returns a deep copy so importers cannot alias store-owned slices.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Stages:      make([]Stage, len(d.Stages)),
		Categories:  make([]ToolCategory, len(d.Categories)),
		Tools:       make([]Tool, len(d.Tools)),
		Connections: make([]Connection, len(d.Connections)),
	}
	copy(out.Stages, d.Stages)
	copy(out.Categories, d.Categories)
	copy(out.Tools, d.Tools)
	copy(out.Connections, d.Connections)
	return out
}

// Violation reports a failed integrity rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID int64      `json:"entity_id"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s %d: %s", v.Rule, v.Entity, v.EntityID, v.Message)
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// OK reports whether the result carries no violations.
func (r Result) OK() bool { return len(r.Violations) == 0 }
