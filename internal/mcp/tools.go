package mcp

import "github.com/mark3labs/mcp-go/mcp"

var workspaceParam = mcp.WithString("workspace",
	mcp.Description("Workspace name (default: \"default\"). Case and surrounding whitespace are ignored."))

var addToolDef = mcp.NewTool("context_add",
	mcp.WithDescription("Add a context item from inline content or a file. "+
		"If the workspace would exceed its token capacity, the oldest items are evicted only when allow_evict is true."),
	workspaceParam,
	mcp.WithString("content", mcp.Description("Inline text (a selection). Mutually exclusive with path.")),
	mcp.WithString("path", mcp.Description("File to read. Mutually exclusive with content.")),
	mcp.WithString("lines", mcp.Description("Line range of path to capture, e.g. \"10:40\" (1-based, inclusive).")),
	mcp.WithString("kind", mcp.Description("Item kind; inferred when omitted."), mcp.Enum("file", "selection", "directory")),
	mcp.WithString("display_name", mcp.Description("Label for the item (default: base name of the path).")),
	mcp.WithString("source_path", mcp.Description("Where inline content came from (advisory).")),
	mcp.WithBoolean("allow_evict", mcp.Description("true evicts oldest items to make room; false refuses. Omitted fails with CAPACITY_EXCEEDED when eviction is needed.")),
)

var addDirToolDef = mcp.NewTool("context_add_dir",
	mcp.WithDescription("Pack a directory with the repository packer and add the packed output as one directory item."),
	workspaceParam,
	mcp.WithString("dir", mcp.Required(), mcp.Description("Directory to pack.")),
	mcp.WithString("display_name", mcp.Description("Label for the item (default: directory name).")),
	mcp.WithArray("include", mcp.WithStringItems(), mcp.Description("Glob patterns to include.")),
	mcp.WithArray("ignore", mcp.WithStringItems(), mcp.Description("Glob patterns to ignore.")),
	mcp.WithBoolean("allow_evict", mcp.Description("Same as context_add.")),
)

var removeToolDef = mcp.NewTool("context_remove",
	mcp.WithDescription("Remove one context item by id."),
	mcp.WithDestructiveHintAnnotation(true),
	workspaceParam,
	mcp.WithString("id", mcp.Required(), mcp.Description("Item id.")),
)

var clearToolDef = mcp.NewTool("context_clear",
	mcp.WithDescription("Remove every item in a workspace. Clearing an empty workspace succeeds."),
	mcp.WithDestructiveHintAnnotation(true),
	workspaceParam,
)

var listToolDef = mcp.NewTool("context_list",
	mcp.WithDescription("List item summaries (no content), oldest first by default."),
	mcp.WithReadOnlyHintAnnotation(true),
	workspaceParam,
	mcp.WithString("sort", mcp.Enum("oldest", "newest")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100).")),
	mcp.WithNumber("offset", mcp.Description("Items to skip.")),
)

var getToolDef = mcp.NewTool("context_get",
	mcp.WithDescription("Get one item including its content."),
	mcp.WithReadOnlyHintAnnotation(true),
	workspaceParam,
	mcp.WithString("id", mcp.Required(), mcp.Description("Item id.")),
)

var summaryToolDef = mcp.NewTool("context_summary",
	mcp.WithDescription("Markdown summary: item count, tokens used against capacity, item list and a preview of the newest items."),
	mcp.WithReadOnlyHintAnnotation(true),
	workspaceParam,
)

var exportToolDef = mcp.NewTool("context_export",
	mcp.WithDescription("Render every item's full content as one Markdown document. "+
		"Returns the text, or writes it to path (.md or .txt, inside ~/.buddy/exports or allowed_paths)."),
	workspaceParam,
	mcp.WithString("path", mcp.Description("Output file. Omit to return the text.")),
)

var backupToolDef = mcp.NewTool("context_backup",
	mcp.WithDescription("Write a workspace to a JSONL backup (default ~/.buddy/exports/<workspace>-<timestamp>.jsonl)."),
	workspaceParam,
	mcp.WithString("path", mcp.Description("Output .jsonl file.")),
)

var restoreToolDef = mcp.NewTool("context_restore",
	mcp.WithDescription("Load a JSONL backup. replace swaps the whole collection atomically; append adds each record as a new item."),
	mcp.WithDestructiveHintAnnotation(true),
	workspaceParam,
	mcp.WithString("path", mcp.Required(), mcp.Description("Backup .jsonl file.")),
	mcp.WithString("mode", mcp.Enum("replace", "append")),
	mcp.WithBoolean("allow_evict", mcp.Description("append only; same as context_add.")),
)

var workspacesToolDef = mcp.NewTool("context_workspaces",
	mcp.WithDescription("List non-empty workspaces with item counts and token totals."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var statusToolDef = mcp.NewTool("context_status",
	mcp.WithDescription("Capacity use, packer availability, recent packages and model setup."),
	mcp.WithReadOnlyHintAnnotation(true),
	workspaceParam,
)

var packRunToolDef = mcp.NewTool("pack_run",
	mcp.WithDescription("Pack a directory into a single file without adding it to the context."),
	mcp.WithString("dir", mcp.Required(), mcp.Description("Directory to pack.")),
	mcp.WithArray("include", mcp.WithStringItems()),
	mcp.WithArray("ignore", mcp.WithStringItems()),
)

var packListToolDef = mcp.NewTool("pack_list",
	mcp.WithDescription("List previously packed files, newest first."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithNumber("limit", mcp.Description("Maximum entries (default all).")),
)

var packStatsToolDef = mcp.NewTool("pack_stats",
	mcp.WithDescription("File, token and character totals recorded in a packed file."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("path", mcp.Required(), mcp.Description("Packed file name or path.")),
)

var packDeleteToolDef = mcp.NewTool("pack_delete",
	mcp.WithDescription("Delete a packed file from the packer output directory."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("path", mcp.Required(), mcp.Description("Packed file name or path.")),
)

var modelListToolDef = mcp.NewTool("model_list",
	mcp.WithDescription("Known chat models, their context windows and whether they are set up."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var modelFitToolDef = mcp.NewTool("model_fit",
	mcp.WithDescription("Check whether a workspace fits a model's context window."),
	mcp.WithReadOnlyHintAnnotation(true),
	workspaceParam,
	mcp.WithString("model", mcp.Description("Model id (default: config default_model).")),
	mcp.WithBoolean("precise", mcp.Description("Count tokens with the model's tokenizer instead of the size estimate.")),
)
