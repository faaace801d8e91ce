package mcp

import (
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/buddy/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"context", "pack", "model"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"context_add":        {addToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleAdd }},
	"context_add_dir":    {addDirToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleAddDir }},
	"context_remove":     {removeToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleRemove }},
	"context_clear":      {clearToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleClear }},
	"context_list":       {listToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleList }},
	"context_get":        {getToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleGet }},
	"context_summary":    {summaryToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummary }},
	"context_export":     {exportToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport }},
	"context_backup":     {backupToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleBackup }},
	"context_restore":    {restoreToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleRestore }},
	"context_workspaces": {workspacesToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaces }},
	"context_status":     {statusToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus }},
	"pack_run":           {packRunToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandlePackRun }},
	"pack_list":          {packListToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandlePackList }},
	"pack_stats":         {packStatsToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandlePackStats }},
	"pack_delete":        {packDeleteToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandlePackDelete }},
	"model_list":         {modelListToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleModelList }},
	"model_fit":          {modelFitToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleModelFit }},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns the unknown tool names in names.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns the unknown type names in names.
func ValidateDisabledTypes(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type from a "type_action" tool name.
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	tools := make([]string, 0)
	for name := range toolRegistry {
		if slices.Contains(types, GetTypeForTool(name)) {
			tools = append(tools, name)
		}
	}
	return tools
}

// EnabledToolNames returns the sorted tool names left after applying
// disabled_types and disabled_tools.
func EnabledToolNames(disabledTypes, disabledTools []string) []string {
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(disabledTypes) {
		disabled[tool] = true
	}
	for _, name := range disabledTools {
		disabled[name] = true
	}

	names := make([]string, 0, len(toolRegistry))
	for _, name := range AllToolNames() {
		if !disabled[name] {
			names = append(names, name)
		}
	}
	return names
}

// NewServer creates an MCP server with the enabled tools registered.
func NewServer(deps *ops.Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"buddy",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(deps)
	var disabledTypes, disabledTools []string
	if deps.Config != nil {
		disabledTypes, disabledTools = deps.Config.DisabledTypes, deps.Config.DisabledTools
	}
	for _, name := range EnabledToolNames(disabledTypes, disabledTools) {
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves MCP over stdio until stdin closes.
func Run(deps *ops.Deps, version string) error {
	return server.ServeStdio(NewServer(deps, version))
}
