package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/focusloop/focusloop/internal/tracker"
)

// RecordCreateTool handles the record_create MCP tool.
type RecordCreateTool struct {
	store *tracker.Store
}

// NewRecordCreateTool creates a RecordCreateTool.
func NewRecordCreateTool(store *tracker.Store) *RecordCreateTool {
	return &RecordCreateTool{store: store}
}

// Definition returns the MCP tool definition for record_create.
func (t *RecordCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("record_create",
		mcp.WithDescription(
			"Create a tracked idea, task or note. Tasks can have subtasks one level deep: "+
				"pass parent_id to attach a subtask to an existing task.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("What to track, in the user's words"),
		),
		mcp.WithString("category",
			mcp.Description("idea, task, note or general (default: general)"),
		),
		mcp.WithNumber("parent_id",
			mcp.Description("ID of the parent task, for subtasks"),
		),
		mcp.WithNumber("owner_id",
			mcp.Description("Owner scope (omit for the anonymous scope)"),
		),
		mcp.WithString("priority",
			mcp.Description("low, medium, high or urgent (default: medium)"),
		),
		mcp.WithString("tag",
			mcp.Description("Life area, e.g. work, personal, learning, health (default: work)"),
		),
	)
}

// Handle processes the record_create tool call.
func (t *RecordCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := tracker.CreateRecordParams{
		Content:  req.GetString("content", ""),
		Category: req.GetString("category", ""),
		Priority: req.GetString("priority", ""),
		Tag:      req.GetString("tag", ""),
	}
	if id := int64Arg(req, "parent_id", 0); id != 0 {
		params.ParentID = &id
	}
	if id := ownerArg(req); id != 0 {
		params.OwnerID = &id
	}

	rec, err := t.store.CreateRecord(params)
	if err != nil {
		return toolError("creating record", err), nil
	}
	return mcp.NewToolResultText("Created:\n" + formatRecord(rec)), nil
}

// RecordGetTool handles the record_get MCP tool.
type RecordGetTool struct {
	store *tracker.Store
}

// NewRecordGetTool creates a RecordGetTool.
func NewRecordGetTool(store *tracker.Store) *RecordGetTool {
	return &RecordGetTool{store: store}
}

// Definition returns the MCP tool definition for record_get.
func (t *RecordGetTool) Definition() mcp.Tool {
	return mcp.NewTool("record_get",
		mcp.WithDescription("Fetch one record by ID, with its subtask summary."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithBoolean("include_children",
			mcp.Description("Include the active subtask payloads (default: false)"),
		),
		mcp.WithBoolean("include_deleted",
			mcp.Description("Also resolve soft-deleted records (default: false)"),
		),
	)
}

// Handle processes the record_get tool call.
func (t *RecordGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64Arg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	var (
		rec *tracker.Record
		err error
	)
	if boolArg(req, "include_deleted", false) {
		rec, err = t.store.AuditRecord(id)
	} else {
		rec, err = t.store.GetRecord(id)
	}
	if err != nil {
		return toolError("fetching record", err), nil
	}

	sum, err := t.store.ToSummary(rec, boolArg(req, "include_children", false))
	if err != nil {
		return toolError("fetching record", err), nil
	}

	var b strings.Builder
	b.WriteString(formatRecord(rec))
	fmt.Fprintf(&b, "  active subtasks: %d\n", sum.ActiveChildren)
	for i := range sum.Children {
		b.WriteString("\n")
		b.WriteString(formatRecord(&sum.Children[i]))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// RecordListTool handles the record_list MCP tool.
type RecordListTool struct {
	store *tracker.Store
}

// NewRecordListTool creates a RecordListTool.
func NewRecordListTool(store *tracker.Store) *RecordListTool {
	return &RecordListTool{store: store}
}

// Definition returns the MCP tool definition for record_list.
func (t *RecordListTool) Definition() mcp.Tool {
	return mcp.NewTool("record_list",
		mcp.WithDescription("List records, newest first. Deleted records never appear here."),
		mcp.WithNumber("owner_id", mcp.Description("Owner scope (omit for anonymous)")),
		mcp.WithString("category", mcp.Description("Filter: idea, task, note, general")),
		mcp.WithString("status", mcp.Description("Filter: active, completed, paused, cancelled, archived")),
		mcp.WithString("tag", mcp.Description("Filter by life area")),
		mcp.WithNumber("limit", mcp.Description("Max results (default: 20)")),
	)
}

// Handle processes the record_list tool call.
func (t *RecordListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := tracker.ListRecordsOptions{
		Category: req.GetString("category", ""),
		Status:   req.GetString("status", ""),
		Tag:      req.GetString("tag", ""),
		Limit:    intArg(req, "limit", 20),
	}
	if id := ownerArg(req); id != 0 {
		opts.OwnerID = &id
	}

	recs, err := t.store.ListRecords(opts)
	if err != nil {
		return toolError("listing records", err), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("No records found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d record(s):\n\n", len(recs))
	for i := range recs {
		b.WriteString(formatRecord(&recs[i]))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// RecordChildrenTool handles the record_children MCP tool.
type RecordChildrenTool struct {
	store *tracker.Store
}

// NewRecordChildrenTool creates a RecordChildrenTool.
func NewRecordChildrenTool(store *tracker.Store) *RecordChildrenTool {
	return &RecordChildrenTool{store: store}
}

// Definition returns the MCP tool definition for record_children.
func (t *RecordChildrenTool) Definition() mcp.Tool {
	return mcp.NewTool("record_children",
		mcp.WithDescription("List the subtasks of a task."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Parent task ID")),
		mcp.WithBoolean("include_inactive",
			mcp.Description("Include completed/paused/archived subtasks too (default: false)"),
		),
	)
}

// Handle processes the record_children tool call.
func (t *RecordChildrenTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64Arg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	if _, err := t.store.GetRecord(id); err != nil {
		return toolError("fetching parent", err), nil
	}

	children, err := t.store.ListChildren(id, boolArg(req, "include_inactive", false))
	if err != nil {
		return toolError("listing subtasks", err), nil
	}
	if len(children) == 0 {
		return mcp.NewToolResultText("No subtasks."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d subtask(s):\n\n", len(children))
	for i := range children {
		b.WriteString(formatRecord(&children[i]))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// RecordUpdateTool handles the record_update MCP tool.
type RecordUpdateTool struct {
	store *tracker.Store
}

// NewRecordUpdateTool creates a RecordUpdateTool.
func NewRecordUpdateTool(store *tracker.Store) *RecordUpdateTool {
	return &RecordUpdateTool{store: store}
}

// Definition returns the MCP tool definition for record_update.
func (t *RecordUpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("record_update",
		mcp.WithDescription(
			"Update fields of a record. Only the fields you pass change; "+
				"progress is clamped to 0-100.",
		),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithString("content", mcp.Description("New content")),
		mcp.WithString("category", mcp.Description("New category")),
		mcp.WithString("priority", mcp.Description("New priority")),
		mcp.WithNumber("progress", mcp.Description("Progress percentage, 0-100")),
		mcp.WithString("progress_notes", mcp.Description("Free-form progress notes")),
		mcp.WithString("status", mcp.Description("active, completed, paused, cancelled or archived")),
		mcp.WithString("tag", mcp.Description("New life area")),
	)
}

// Handle processes the record_update tool call.
func (t *RecordUpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64Arg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	patch := tracker.UpdateRecordParams{
		Content:       stringPtrArg(req, "content"),
		Category:      stringPtrArg(req, "category"),
		Priority:      stringPtrArg(req, "priority"),
		Progress:      intPtrArg(req, "progress"),
		ProgressNotes: stringPtrArg(req, "progress_notes"),
		Status:        stringPtrArg(req, "status"),
		Tag:           stringPtrArg(req, "tag"),
	}

	rec, err := t.store.UpdateRecord(id, patch)
	if err != nil {
		return toolError("updating record", err), nil
	}
	return mcp.NewToolResultText("Updated:\n" + formatRecord(rec)), nil
}

// RecordDeleteTool handles the record_delete MCP tool.
type RecordDeleteTool struct {
	store *tracker.Store
}

// NewRecordDeleteTool creates a RecordDeleteTool.
func NewRecordDeleteTool(store *tracker.Store) *RecordDeleteTool {
	return &RecordDeleteTool{store: store}
}

// Definition returns the MCP tool definition for record_delete.
func (t *RecordDeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("record_delete",
		mcp.WithDescription(
			"Delete a record. The default is a soft delete (recoverable, still "+
				"readable by ID with record_get include_deleted). Pass hard=true to "+
				"permanently remove the record and its subtasks.",
		),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithBoolean("hard",
			mcp.Description("Permanently remove the row and its subtasks (default: false)"),
		),
	)
}

// Handle processes the record_delete tool call.
func (t *RecordDeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64Arg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	hard := boolArg(req, "hard", false)
	if err := t.store.DeleteRecord(id, hard); err != nil {
		return toolError("deleting record", err), nil
	}
	if hard {
		return mcp.NewToolResultText(fmt.Sprintf("Record %d permanently deleted.", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Record %d deleted (soft).", id)), nil
}
