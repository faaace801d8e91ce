package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
	"github.com/hpungsan/buddy/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps *ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *ops.Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Request types for each tool

// AddRequest represents the arguments for context_add.
type AddRequest struct {
	Workspace   string  `json:"workspace,omitempty"`
	Content     *string `json:"content,omitempty"`
	Path        string  `json:"path,omitempty"`
	Lines       string  `json:"lines,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	SourcePath  string  `json:"source_path,omitempty"`
	AllowEvict  *bool   `json:"allow_evict,omitempty"`
}

// AddDirRequest represents the arguments for context_add_dir.
type AddDirRequest struct {
	Workspace   string   `json:"workspace,omitempty"`
	Dir         string   `json:"dir"`
	DisplayName string   `json:"display_name,omitempty"`
	Include     []string `json:"include,omitempty"`
	Ignore      []string `json:"ignore,omitempty"`
	AllowEvict  *bool    `json:"allow_evict,omitempty"`
}

// ItemRequest addresses one item (context_get, context_remove).
type ItemRequest struct {
	Workspace string `json:"workspace,omitempty"`
	ID        string `json:"id"`
}

// WorkspaceRequest carries only a workspace.
type WorkspaceRequest struct {
	Workspace string `json:"workspace,omitempty"`
}

// ListRequest represents the arguments for context_list.
type ListRequest struct {
	Workspace string `json:"workspace,omitempty"`
	Sort      string `json:"sort,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// PathRequest carries a workspace and a file path.
type PathRequest struct {
	Workspace string `json:"workspace,omitempty"`
	Path      string `json:"path,omitempty"`
}

// RestoreRequest represents the arguments for context_restore.
type RestoreRequest struct {
	Workspace  string `json:"workspace,omitempty"`
	Path       string `json:"path"`
	Mode       string `json:"mode,omitempty"`
	AllowEvict *bool  `json:"allow_evict,omitempty"`
}

// PackRequest represents the arguments for pack_run.
type PackRequest struct {
	Dir     string   `json:"dir"`
	Include []string `json:"include,omitempty"`
	Ignore  []string `json:"ignore,omitempty"`
}

// PackListRequest represents the arguments for pack_list.
type PackListRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ModelFitRequest represents the arguments for model_fit.
type ModelFitRequest struct {
	Workspace string `json:"workspace,omitempty"`
	Model     string `json:"model,omitempty"`
	Precise   bool   `json:"precise,omitempty"`
}

// evictMode maps allow_evict onto an eviction mode. MCP has no way to ask,
// so an omitted flag leaves ask mode without a confirmer.
func evictMode(allow *bool) ops.EvictMode {
	switch {
	case allow == nil:
		return ops.EvictAsk
	case *allow:
		return ops.EvictYes
	default:
		return ops.EvictNo
	}
}

// Handler implementations

// HandleAdd handles the context_add tool call.
func (h *Handlers) HandleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Add(ctx, ops.AddInput{
		Workspace:   input.Workspace,
		Kind:        contextitem.Kind(input.Kind),
		DisplayName: input.DisplayName,
		SourcePath:  input.SourcePath,
		Content:     input.Content,
		Path:        input.Path,
		Lines:       input.Lines,
		Evict:       evictMode(input.AllowEvict),
	}))
}

// HandleAddDir handles the context_add_dir tool call.
func (h *Handlers) HandleAddDir(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddDirRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.AddDirectory(ctx, ops.AddDirectoryInput{
		Workspace:   input.Workspace,
		Dir:         input.Dir,
		DisplayName: input.DisplayName,
		Include:     input.Include,
		Ignore:      input.Ignore,
		Evict:       evictMode(input.AllowEvict),
	}))
}

// HandleRemove handles the context_remove tool call.
func (h *Handlers) HandleRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ItemRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Remove(ctx, ops.RemoveInput{Workspace: input.Workspace, ID: input.ID}))
}

// HandleClear handles the context_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Clear(ctx, ops.ClearInput{Workspace: input.Workspace}))
}

// HandleList handles the context_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.List(ctx, ops.ListInput{
		Workspace: input.Workspace,
		Sort:      input.Sort,
		Limit:     input.Limit,
		Offset:    input.Offset,
	}))
}

// HandleGet handles the context_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ItemRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Get(ctx, ops.GetInput{Workspace: input.Workspace, ID: input.ID}))
}

// HandleSummary handles the context_summary tool call.
func (h *Handlers) HandleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Summary(ctx, ops.SummaryInput{Workspace: input.Workspace}))
}

// HandleExport handles the context_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Export(ctx, ops.ExportInput{Workspace: input.Workspace, Path: input.Path}))
}

// HandleBackup handles the context_backup tool call.
func (h *Handlers) HandleBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Backup(ctx, ops.BackupInput{Workspace: input.Workspace, Path: input.Path}))
}

// HandleRestore handles the context_restore tool call.
func (h *Handlers) HandleRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RestoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Restore(ctx, ops.RestoreInput{
		Workspace: input.Workspace,
		Path:      input.Path,
		Mode:      ops.RestoreMode(input.Mode),
		Evict:     evictMode(input.AllowEvict),
	}))
}

// HandleWorkspaces handles the context_workspaces tool call.
func (h *Handlers) HandleWorkspaces(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(h.deps.Workspaces(ctx))
}

// HandleStatus handles the context_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Status(ctx, ops.StatusInput{Workspace: input.Workspace}))
}

// HandlePackRun handles the pack_run tool call.
func (h *Handlers) HandlePackRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PackRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Pack(ctx, ops.PackInput{Dir: input.Dir, Include: input.Include, Ignore: input.Ignore}))
}

// HandlePackList handles the pack_list tool call.
func (h *Handlers) HandlePackList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PackListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.Packages(ctx, input.Limit))
}

// HandlePackStats handles the pack_stats tool call.
func (h *Handlers) HandlePackStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.PackStats(ctx, input.Path))
}

// HandlePackDelete handles the pack_delete tool call.
func (h *Handlers) HandlePackDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.PackDelete(ctx, input.Path))
}

// HandleModelList handles the model_list tool call.
func (h *Handlers) HandleModelList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(h.deps.ListModels(ctx))
}

// HandleModelFit handles the model_fit tool call.
func (h *Handlers) HandleModelFit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ModelFitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return respond(h.deps.ModelFit(ctx, ops.ModelFitInput{
		Workspace: input.Workspace,
		Model:     input.Model,
		Precise:   input.Precise,
	}))
}

// Result helpers

// respond turns an operation's (result, error) pair into a tool result.
func respond[T any](data *T, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(data)
}

// errorResult creates an MCP error result with IsError set. Internal error
// details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var bErr *errors.BuddyError
	if stderrors.As(err, &bErr) && bErr.Code != errors.ErrInternal {
		errorObj := map[string]any{
			"code":    bErr.Code,
			"message": bErr.Message,
			"status":  bErr.Status,
		}
		if bErr.Details != nil {
			errorObj["details"] = bErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		zap.L().Error("internal error in tool call", zap.Error(err))
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
