package web

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
	"github.com/hpungsan/buddy/internal/ops"
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	deps     *ops.Deps
	logger   *zap.Logger
	renderer *Renderer
}

// page fills the common page fields.
func (h *Handlers) page(title, nav, workspace string) PageData {
	return PageData{
		Title:     title,
		Version:   h.renderer.version,
		Nav:       nav,
		Workspace: workspace,
	}
}

// HandleList handles GET /context: the items of one workspace, oldest first
// by default.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	workspace := contextitem.NormalizeWorkspace(r.URL.Query().Get("workspace"))
	input := ops.ListInput{
		Workspace: workspace,
		Sort:      r.URL.Query().Get("sort"),
		Limit:     parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:    parseIntParam(r, "offset", 0),
	}

	result, err := h.deps.List(r.Context(), input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	workspaces, err := h.deps.Workspaces(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData:   h.page("Context", "context", workspace),
		Items:      result.Items,
		Pagination: result.Pagination,
		Stats:      result.Stats,
		Sort:       input.Sort,
		Workspaces: workspaces.Workspaces,
	})
}

// HandleSummary handles GET /context/summary: the Markdown summary rendered
// as HTML.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	workspace := contextitem.NormalizeWorkspace(r.URL.Query().Get("workspace"))
	result, err := h.deps.Summary(r.Context(), ops.SummaryInput{Workspace: workspace})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "summary", SummaryPageData{
		PageData:     h.page("Summary", "summary", workspace),
		RenderedHTML: renderMarkdown(result.Markdown),
		Stats:        result.Stats,
		Fits:         result.Fits,
	})
}

// HandleExport handles GET /context/export: the full export as a Markdown
// download.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	workspace := contextitem.NormalizeWorkspace(r.URL.Query().Get("workspace"))
	result, err := h.deps.Export(r.Context(), ops.ExportInput{Workspace: workspace})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s-context.md", ops.SanitizeForFilename(workspace))
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.Content))
}

// HandleDetail handles GET /context/items/{id}: one item with its content.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("item id is required"))
		return
	}

	workspace := contextitem.NormalizeWorkspace(r.URL.Query().Get("workspace"))
	item, err := h.deps.Get(r.Context(), ops.GetInput{Workspace: workspace, ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, item)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: h.page(item.DisplayName, "context", workspace),
		Item:     item,
	})
}

// HandleDelete handles DELETE /context/items/{id}: remove one item.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("item id is required"))
		return
	}

	workspace := contextitem.NormalizeWorkspace(r.URL.Query().Get("workspace"))
	result, err := h.deps.Remove(r.Context(), ops.RemoveInput{Workspace: workspace, ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.logger.Info("item removed", zap.String("workspace", workspace), zap.String("id", id))

	listURL := "/context" + queryPrefix(workspace)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", listURL)
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, listURL, http.StatusSeeOther)
}

// HandleClear handles POST /context/clear: remove every item in a workspace.
// The form must carry confirm=true.
func (h *Handlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	workspace := contextitem.NormalizeWorkspace(r.FormValue("workspace"))
	result, err := h.deps.Clear(r.Context(), ops.ClearInput{Workspace: workspace})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.logger.Info("workspace cleared", zap.String("workspace", workspace), zap.Int("removed", result.Removed))

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		msg := fmt.Sprintf("Removed %d items from %s.", result.Removed, workspace)
		_, _ = w.Write([]byte(`<div class="clear-result">` + template.HTMLEscapeString(msg) + `</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/context"+queryPrefix(workspace), http.StatusSeeOther)
}

// HandleStatus handles GET /status: capacity use, packer and model state as
// JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	workspace := contextitem.NormalizeWorkspace(r.URL.Query().Get("workspace"))
	result, err := h.deps.Status(r.Context(), ops.StatusInput{Workspace: workspace})
	if err != nil {
		r.Header.Set("Accept", "application/json")
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}

// queryPrefix returns "?workspace=<name>" for non-default workspaces.
func queryPrefix(workspace string) string {
	if q := workspaceQuery(workspace); q != "" {
		return "?" + string(q)
	}
	return ""
}
