package domain

import "iter"

// StageReader exposes lookups over lifecycle stages and their transitions.
type StageReader interface {
	// ListStages returns every stage sorted by order index ascending.
	ListStages() []Stage
	// GetStage returns the stage with the given id or a NotFoundError.
	GetStage(id int64) (Stage, error)
	// ListConnections returns the outgoing edges of a stage, optionally
	// filtered by connection type (zero value means no filter). Unknown
	// stage ids yield a NotFoundError.
	ListConnections(stageID int64, kind ConnectionType) ([]Connection, error)
}

// ToolReader exposes lookups over tool categories and example tools.
type ToolReader interface {
	// ListCategories returns the categories of a stage sorted by name.
	// Unknown stage ids yield a NotFoundError; a stage without
	// categories yields an empty slice.
	ListCategories(stageID int64) ([]ToolCategory, error)
	// ListTools returns the tools of a category sorted by name, with the
	// same error policy as ListCategories.
	ListTools(categoryID int64) ([]Tool, error)
	// SearchTools returns a restartable sequence over tools whose name or
	// description contains the query, case-insensitively, ordered by
	// stage order index, then category name, then tool name.
	SearchTools(query string) iter.Seq[Tool]
}

// Store is the read-only access path to the taxonomy. It is the only
// surface the presentation layer may consume.
type Store interface {
	StageReader
	ToolReader
	// Snapshot returns a deep copy of the full dataset.
	Snapshot() Dataset
	// Close releases any underlying resources.
	Close() error
}
