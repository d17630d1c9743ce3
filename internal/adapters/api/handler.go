// Package api exposes the lifecycle taxonomy over HTTP.
package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lifecyclecore/internal/core"
	"lifecyclecore/internal/export"
	"lifecyclecore/pkg/domain"
	"lifecyclecore/pkg/log"
)

// Handler provides read-only HTTP access to the taxonomy plus export creation.
type Handler struct {
	Service  *core.Service
	Exporter *export.Exporter
	Logger   log.Logger
}

// NewHandler constructs a taxonomy HTTP handler.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service, Logger: log.NewNoopLogger()}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "taxonomy service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/healthz":
		h.handleHealth(w, r)
	case r.Method == http.MethodGet && path == "/api/v1/stages":
		h.handleListStages(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/v1/stages/"):
		h.handleStage(w, r, strings.TrimPrefix(path, "/api/v1/stages/"))
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/v1/categories/"):
		h.handleCategory(w, r, strings.TrimPrefix(path, "/api/v1/categories/"))
	case r.Method == http.MethodGet && path == "/api/v1/tools/search":
		h.handleSearch(w, r)
	case path == "/api/v1/exports":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleExportCreate(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stages": len(h.Service.ListStages(r.Context()))})
}

func (h *Handler) handleListStages(w http.ResponseWriter, r *http.Request) {
	stages := h.Service.ListStages(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"stages": stages})
}

// handleStage routes /stages/{id}, /stages/{id}/categories and
// /stages/{id}/connections.
func (h *Handler) handleStage(w http.ResponseWriter, r *http.Request, remainder string) {
	idPart, rest, _ := strings.Cut(remainder, "/")
	id, err := parseID(idPart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid stage id")
		return
	}
	switch rest {
	case "":
		stage, err := h.Service.GetStage(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stage": stage})
	case "categories":
		categories, err := h.Service.ListCategories(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
	case "connections":
		kind, ok := parseConnectionType(r.URL.Query().Get("type"))
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown connection type")
			return
		}
		connections, err := h.Service.ListConnections(r.Context(), id, kind)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"connections": connections})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleCategory(w http.ResponseWriter, r *http.Request, remainder string) {
	idPart, rest, _ := strings.Cut(remainder, "/")
	if rest != "tools" {
		http.NotFound(w, r)
		return
	}
	id, err := parseID(idPart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	tools, err := h.Service.ListTools(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	tools := make([]domain.Tool, 0)
	for tool := range h.Service.SearchTools(r.Context(), query) {
		tools = append(tools, tool)
	}
	switch negotiateFormat(r) {
	case "csv":
		streamToolsCSV(w, tools)
	case "json":
		writeJSON(w, http.StatusOK, map[string]any{"query": query, "tools": tools})
	default:
		writeError(w, http.StatusNotAcceptable, "requested format not supported")
	}
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	if h.Exporter == nil {
		writeError(w, http.StatusInternalServerError, "exporter not configured")
		return
	}
	record, err := h.Exporter.Export(r.Context(), h.Service.Snapshot(r.Context()))
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("taxonomy export failed", log.Err(err))
		}
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"export": record})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// parseConnectionType maps the ?type= query parameter; empty means no filter.
func parseConnectionType(raw string) (domain.ConnectionType, bool) {
	switch domain.ConnectionType(raw) {
	case "", domain.ConnectionNormal, domain.ConnectionAlternative:
		return domain.ConnectionType(raw), true
	default:
		return "", false
	}
}

func negotiateFormat(r *http.Request) string {
	wanted := strings.ToLower(r.URL.Query().Get("format"))
	if wanted == "" {
		if strings.Contains(r.Header.Get("Accept"), "text/csv") {
			wanted = "csv"
		} else {
			wanted = "json"
		}
	}
	switch wanted {
	case "csv", "json":
		return wanted
	}
	return ""
}

func streamToolsCSV(w http.ResponseWriter, tools []domain.Tool) {
	filename := fmt.Sprintf("tools-%s.csv", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"id", "category_id", "name", "description", "url", "source", "interoperable", "scope"}); err != nil {
		return
	}
	for _, tool := range tools {
		record := []string{
			strconv.FormatInt(tool.ID, 10),
			strconv.FormatInt(tool.CategoryID, 10),
			tool.Name,
			tool.Description,
			tool.URL,
			string(tool.Source),
			strconv.FormatBool(tool.Interoperable),
			string(tool.Scope),
		}
		if err := writer.Write(record); err != nil {
			return
		}
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if domain.IsNotFound(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
