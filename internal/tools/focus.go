package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/focusloop/focusloop/internal/planner"
	"github.com/focusloop/focusloop/internal/tracker"
)

// FocusGenerateTool handles the focus_generate MCP tool.
type FocusGenerateTool struct {
	planner *planner.Planner
}

// NewFocusGenerateTool creates a FocusGenerateTool.
func NewFocusGenerateTool(p *planner.Planner) *FocusGenerateTool {
	return &FocusGenerateTool{planner: p}
}

// Definition returns the MCP tool definition for focus_generate.
func (t *FocusGenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("focus_generate",
		mcp.WithDescription(
			"Generate a fresh focus worklist from the active task backlog. "+
				"Replaces the current worklist; if generation fails, the old one is kept.",
		),
		mcp.WithNumber("owner_id", mcp.Description("Owner scope (omit for anonymous)")),
	)
}

// Handle processes the focus_generate tool call.
func (t *FocusGenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	batch, err := t.planner.GenerateBatch(ctx, ownerArg(req))
	switch {
	case errors.Is(err, planner.ErrNoCandidates):
		return mcp.NewToolResultError("no active tasks to plan from; create some tasks first"), nil
	case errors.Is(err, planner.ErrNoCompletion):
		return mcp.NewToolResultError("AI planning is disabled (no API key configured); use focus_add_task instead"), nil
	case errors.Is(err, planner.ErrBatchContract):
		return mcp.NewToolResultError("the planner returned an unusable plan; your current worklist is unchanged, try again"), nil
	case err != nil:
		return toolError("generating worklist", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generated a worklist of %d task(s):\n\n", len(batch))
	for i := range batch {
		b.WriteString(formatFocusTask(&batch[i]))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// FocusAddTaskTool handles the focus_add_task MCP tool.
type FocusAddTaskTool struct {
	planner *planner.Planner
}

// NewFocusAddTaskTool creates a FocusAddTaskTool.
func NewFocusAddTaskTool(p *planner.Planner) *FocusAddTaskTool {
	return &FocusAddTaskTool{planner: p}
}

// Definition returns the MCP tool definition for focus_add_task.
func (t *FocusAddTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("focus_add_task",
		mcp.WithDescription(
			"Promote one record to the front of the focus worklist, immediately "+
				"active. Whatever was active gets skipped; everything else shifts down.",
		),
		mcp.WithNumber("record_id", mcp.Required(), mcp.Description("Record to promote")),
		mcp.WithNumber("owner_id", mcp.Description("Owner scope (omit for anonymous)")),
	)
}

// Handle processes the focus_add_task tool call.
func (t *FocusAddTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordID := int64Arg(req, "record_id", 0)
	if recordID == 0 {
		return mcp.NewToolResultError("'record_id' is required"), nil
	}

	ft, err := t.planner.AddSingleTask(ownerArg(req), recordID)
	if err != nil {
		return toolError("promoting record", err), nil
	}
	return mcp.NewToolResultText("Now at the front of your worklist:\n" + formatFocusTask(ft)), nil
}

// FocusListTool handles the focus_list MCP tool.
type FocusListTool struct {
	store *tracker.Store
}

// NewFocusListTool creates a FocusListTool.
func NewFocusListTool(store *tracker.Store) *FocusListTool {
	return &FocusListTool{store: store}
}

// Definition returns the MCP tool definition for focus_list.
func (t *FocusListTool) Definition() mcp.Tool {
	return mcp.NewTool("focus_list",
		mcp.WithDescription("Show the current focus worklist in order."),
		mcp.WithNumber("owner_id", mcp.Description("Owner scope (omit for anonymous)")),
	)
}

// Handle processes the focus_list tool call.
func (t *FocusListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	batch, err := t.store.ListBatch(ownerArg(req))
	if err != nil {
		return toolError("listing worklist", err), nil
	}
	if len(batch) == 0 {
		return mcp.NewToolResultText("Your worklist is empty. Run focus_generate or focus_add_task."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Worklist (%d task(s)):\n\n", len(batch))
	for i := range batch {
		b.WriteString(formatFocusTask(&batch[i]))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// FocusTransitionTool handles the focus_transition MCP tool.
type FocusTransitionTool struct {
	planner *planner.Planner
}

// NewFocusTransitionTool creates a FocusTransitionTool.
func NewFocusTransitionTool(p *planner.Planner) *FocusTransitionTool {
	return &FocusTransitionTool{planner: p}
}

// Definition returns the MCP tool definition for focus_transition.
func (t *FocusTransitionTool) Definition() mcp.Tool {
	return mcp.NewTool("focus_transition",
		mcp.WithDescription(
			"Move a focus task through its lifecycle: start (pending to active), "+
				"complete (credit one finished work unit), skip, or reset.",
		),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Focus task ID")),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("start, complete, skip or reset"),
		),
		mcp.WithNumber("minutes",
			mcp.Description("Minutes spent on this unit, for complete (default: 25)"),
		),
		mcp.WithNumber("owner_id", mcp.Description("Owner scope (omit for anonymous)")),
	)
}

// Handle processes the focus_transition tool call.
func (t *FocusTransitionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := int64Arg(req, "task_id", 0)
	if taskID == 0 {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}
	action := req.GetString("action", "")
	if action == "" {
		return mcp.NewToolResultError("'action' is required"), nil
	}

	ft, err := t.planner.Transition(ownerArg(req), taskID, action, intArg(req, "minutes", 0))
	if err != nil {
		return toolError("transitioning task", err), nil
	}
	return mcp.NewToolResultText("Task is now:\n" + formatFocusTask(ft)), nil
}
