// Package memory provides the canonical in-memory implementation of the
// taxonomy store. Durable backends embed it and hydrate it at startup.
package memory

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"

	"lifecyclecore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.Store = (*Store)(nil)

type (
	// Stage aliases domain.Stage for in-memory persistence operations.
	Stage = domain.Stage
	// ToolCategory aliases domain.ToolCategory.
	ToolCategory = domain.ToolCategory
	// Tool aliases domain.Tool.
	Tool = domain.Tool
	// Connection aliases domain.Connection.
	Connection = domain.Connection
	// Dataset aliases domain.Dataset captured on import and snapshot.
	Dataset = domain.Dataset
	// RulesEngine aliases domain.RulesEngine used to gate imports.
	RulesEngine = domain.RulesEngine
)

type state struct {
	stages      map[int64]Stage
	categories  map[int64]ToolCategory
	tools       map[int64]Tool
	connections map[int64]Connection

	// Derived indexes, rebuilt on import. Queries never mutate them.
	orderedStages     []Stage
	categoriesByStage map[int64][]ToolCategory
	toolsByCategory   map[int64][]Tool
	edgesByStage      map[int64][]Connection
	searchIndex       []Tool
}

// Store is an immutable-after-import taxonomy store held in process memory.
type Store struct {
	mu     sync.RWMutex
	engine *RulesEngine
	state  state
}

// NewStore constructs an empty store gated by the supplied rules engine.
// A nil engine disables integrity validation (tests only).
func NewStore(engine *RulesEngine) *Store {
	return &Store{engine: engine, state: newState()}
}

func newState() state {
	return state{
		stages:            make(map[int64]Stage),
		categories:        make(map[int64]ToolCategory),
		tools:             make(map[int64]Tool),
		connections:       make(map[int64]Connection),
		categoriesByStage: make(map[int64][]ToolCategory),
		toolsByCategory:   make(map[int64][]Tool),
		edgesByStage:      make(map[int64][]Connection),
	}
}

// ImportDataset validates the dataset against the rules engine and, when
// clean, replaces the store contents. A blocking violation returns an
// IntegrityError and leaves the previous state untouched.
func (s *Store) ImportDataset(ctx context.Context, ds Dataset) error {
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, ds)
		if err != nil {
			return err
		}
		if !res.OK() {
			return domain.IntegrityError{Result: res}
		}
	}

	next := newState()
	for _, stage := range ds.Stages {
		next.stages[stage.ID] = stage
	}
	for _, cat := range ds.Categories {
		next.categories[cat.ID] = cat
		next.categoriesByStage[cat.StageID] = append(next.categoriesByStage[cat.StageID], cat)
	}
	for _, tool := range ds.Tools {
		next.tools[tool.ID] = tool
		next.toolsByCategory[tool.CategoryID] = append(next.toolsByCategory[tool.CategoryID], tool)
	}
	for _, conn := range ds.Connections {
		next.connections[conn.ID] = conn
		next.edgesByStage[conn.FromStageID] = append(next.edgesByStage[conn.FromStageID], conn)
	}

	next.orderedStages = make([]Stage, 0, len(next.stages))
	for _, stage := range next.stages {
		next.orderedStages = append(next.orderedStages, stage)
	}
	sort.Slice(next.orderedStages, func(i, j int) bool {
		return next.orderedStages[i].OrderIndex < next.orderedStages[j].OrderIndex
	})
	for _, cats := range next.categoriesByStage {
		sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	}
	for _, tools := range next.toolsByCategory {
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	}
	for _, edges := range next.edgesByStage {
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	}
	next.searchIndex = buildSearchIndex(next)

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return nil
}

// buildSearchIndex flattens all tools into the deterministic search order:
// stage order index, then category name, then tool name.
func buildSearchIndex(st state) []Tool {
	index := make([]Tool, 0, len(st.tools))
	for _, stage := range st.orderedStages {
		for _, cat := range st.categoriesByStage[stage.ID] {
			index = append(index, st.toolsByCategory[cat.ID]...)
		}
	}
	return index
}

// ListStages returns every stage sorted by order index ascending.
func (s *Store) ListStages() []Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Stage, len(s.state.orderedStages))
	copy(out, s.state.orderedStages)
	return out
}

// GetStage returns the stage with the given id.
func (s *Store) GetStage(id int64) (Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stage, ok := s.state.stages[id]
	if !ok {
		return Stage{}, domain.NotFoundError{Entity: domain.EntityStage, ID: id}
	}
	return stage, nil
}

// ListCategories returns the categories of a stage sorted by name. A known
// stage without categories yields an empty, non-nil slice so callers can
// distinguish it from an unknown stage.
func (s *Store) ListCategories(stageID int64) ([]ToolCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.state.stages[stageID]; !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityStage, ID: stageID}
	}
	cats := s.state.categoriesByStage[stageID]
	out := make([]ToolCategory, len(cats))
	copy(out, cats)
	return out, nil
}

// ListTools returns the tools of a category sorted by name.
func (s *Store) ListTools(categoryID int64) ([]Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.state.categories[categoryID]; !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityToolCategory, ID: categoryID}
	}
	tools := s.state.toolsByCategory[categoryID]
	out := make([]Tool, len(tools))
	copy(out, tools)
	return out, nil
}

// SearchTools returns a restartable sequence over tools whose name or
// description contains the query, case-insensitively. Iteration order is
// stage order index, then category name, then tool name. Each range over
// the sequence rescans the index, so the result stays valid across calls.
func (s *Store) SearchTools(query string) iter.Seq[Tool] {
	needle := strings.ToLower(strings.TrimSpace(query))
	return func(yield func(Tool) bool) {
		if needle == "" {
			return
		}
		s.mu.RLock()
		index := s.state.searchIndex
		s.mu.RUnlock()
		for _, tool := range index {
			if !strings.Contains(strings.ToLower(tool.Name), needle) &&
				!strings.Contains(strings.ToLower(tool.Description), needle) {
				continue
			}
			if !yield(tool) {
				return
			}
		}
	}
}

// ListConnections returns the outgoing edges of a stage, optionally
// filtered by connection type. The zero ConnectionType means no filter.
func (s *Store) ListConnections(stageID int64, kind domain.ConnectionType) ([]Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.state.stages[stageID]; !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityStage, ID: stageID}
	}
	edges := s.state.edgesByStage[stageID]
	out := make([]Connection, 0, len(edges))
	for _, edge := range edges {
		if kind != "" && edge.Type != kind {
			continue
		}
		out = append(out, edge)
	}
	return out, nil
}

// Snapshot returns a deep copy of the full dataset in deterministic order.
func (s *Store) Snapshot() Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds := Dataset{
		Stages:      make([]Stage, len(s.state.orderedStages)),
		Categories:  make([]ToolCategory, 0, len(s.state.categories)),
		Tools:       make([]Tool, 0, len(s.state.tools)),
		Connections: make([]Connection, 0, len(s.state.connections)),
	}
	copy(ds.Stages, s.state.orderedStages)
	for _, stage := range s.state.orderedStages {
		ds.Categories = append(ds.Categories, s.state.categoriesByStage[stage.ID]...)
		for _, cat := range s.state.categoriesByStage[stage.ID] {
			ds.Tools = append(ds.Tools, s.state.toolsByCategory[cat.ID]...)
		}
		ds.Connections = append(ds.Connections, s.state.edgesByStage[stage.ID]...)
	}
	return ds
}

// Close releases no resources for the in-memory store.
func (s *Store) Close() error { return nil }
