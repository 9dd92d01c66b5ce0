package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/focusloop/focusloop/internal/assist"
)

// TaskDecomposeTool handles the task_decompose MCP tool.
type TaskDecomposeTool struct {
	assistant *assist.Assistant
}

// NewTaskDecomposeTool creates a TaskDecomposeTool.
func NewTaskDecomposeTool(a *assist.Assistant) *TaskDecomposeTool {
	return &TaskDecomposeTool{assistant: a}
}

// Definition returns the MCP tool definition for task_decompose.
func (t *TaskDecomposeTool) Definition() mcp.Tool {
	return mcp.NewTool("task_decompose",
		mcp.WithDescription(
			"Analyze a task and suggest how to break it into subtasks. Pass "+
				"materialize=true to also create the suggestions as real subtasks.",
		),
		mcp.WithNumber("record_id", mcp.Required(), mcp.Description("Task to analyze")),
		mcp.WithString("notes",
			mcp.Description("Extra context for the analysis, e.g. constraints or deadlines"),
		),
		mcp.WithString("prompt",
			mcp.Description("Override the analysis prompt; use {{CONTEXT}} to place the task context"),
		),
		mcp.WithBoolean("materialize",
			mcp.Description("Create the suggested subtasks immediately (default: false)"),
		),
	)
}

// Handle processes the task_decompose tool call.
func (t *TaskDecomposeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordID := int64Arg(req, "record_id", 0)
	if recordID == 0 {
		return mcp.NewToolResultError("'record_id' is required"), nil
	}

	analysis, err := t.assistant.AnalyzeTask(ctx, recordID,
		req.GetString("notes", ""), req.GetString("prompt", ""))
	if err != nil {
		return toolError("analyzing task", err), nil
	}

	var b strings.Builder
	if analysis.Fallback {
		b.WriteString("(AI analysis unavailable, showing a generic breakdown)\n\n")
	}
	fmt.Fprintf(&b, "Strategy: %s\n", analysis.ExecutionStrategy)
	if len(analysis.Opportunities) > 0 {
		b.WriteString("\nOpportunities:\n")
		for _, o := range analysis.Opportunities {
			fmt.Fprintf(&b, "  - %s\n", o)
		}
	}
	b.WriteString("\nSuggested subtasks:\n")
	for i, s := range analysis.SubtaskSuggestions {
		fmt.Fprintf(&b, "  %d. [%s, %d unit(s)] %s", i+1, s.Priority, s.EstimatedUnits, s.Title)
		if s.Description != "" {
			fmt.Fprintf(&b, " - %s", s.Description)
		}
		b.WriteString("\n")
	}

	if boolArg(req, "materialize", false) {
		created, err := t.assistant.MaterializeSubtasks(recordID, analysis.SubtaskSuggestions)
		if err != nil {
			return toolError("creating subtasks", err), nil
		}
		fmt.Fprintf(&b, "\nCreated %d subtask(s):\n", len(created))
		for i := range created {
			fmt.Fprintf(&b, "  #%d %s\n", created[i].ID, created[i].Content)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}
