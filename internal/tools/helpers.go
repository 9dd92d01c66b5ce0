// Package tools provides the MCP tool handlers for focusloop.
//
// Each tool follows the same pattern:
// - A struct with its dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Handlers never return Go errors for domain failures; those become
// mcp.NewToolResultError payloads so the caller always gets a structured
// response.
package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/focusloop/focusloop/internal/tracker"
)

// intArg extracts an integer argument, returning defaultVal if the key
// is missing or not a number (JSON numbers arrive as float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// int64Arg extracts an identifier argument. 48-bit identifiers are well
// within float64's exact integer range.
func int64Arg(req mcp.CallToolRequest, key string, defaultVal int64) int64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int64(v)
}

// boolArg extracts a boolean argument.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringPtrArg returns the string argument as a pointer, or nil when the
// key is absent. Update tools use presence to distinguish "leave alone"
// from "set to empty".
func stringPtrArg(req mcp.CallToolRequest, key string) *string {
	v, ok := req.GetArguments()[key].(string)
	if !ok {
		return nil
	}
	return &v
}

// intPtrArg is stringPtrArg for integers.
func intPtrArg(req mcp.CallToolRequest, key string) *int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return nil
	}
	i := int(v)
	return &i
}

// ownerArg reads the optional owner scope; zero means anonymous.
func ownerArg(req mcp.CallToolRequest) int64 {
	return int64Arg(req, "owner_id", 0)
}

// toolError maps a domain error to a tool result. Validation and
// not-found failures get their message surfaced verbatim; anything else
// is wrapped with the operation name.
func toolError(op string, err error) *mcp.CallToolResult {
	var verr *tracker.ValidationError
	switch {
	case errors.As(err, &verr):
		return mcp.NewToolResultError(verr.Error())
	case errors.Is(err, tracker.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, tracker.ErrInvalidTransition):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", op, err))
	}
}

func formatRecord(rec *tracker.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d [%s/%s] %s\n", rec.ID, rec.Category, rec.Priority, rec.Content)
	fmt.Fprintf(&b, "  status: %s | area: %s | progress: %d%%\n", rec.Status, rec.Tag, rec.Progress)
	if rec.ProgressNotes != "" {
		fmt.Fprintf(&b, "  notes: %s\n", rec.ProgressNotes)
	}
	if rec.ParentID != nil {
		fmt.Fprintf(&b, "  parent: #%d\n", *rec.ParentID)
	}
	fmt.Fprintf(&b, "  created: %s | updated: %s\n",
		rec.CreatedAt.Format("2006-01-02 15:04"), rec.UpdatedAt.Format("2006-01-02 15:04"))
	return b.String()
}

func formatFocusTask(ft *tracker.FocusTask) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d [%d] %s (score %d, %d unit(s))\n",
		ft.ID, ft.OrderIndex, ft.Title, ft.PriorityScore, ft.EstimatedUnits)
	fmt.Fprintf(&b, "  status: %s | units done: %d/%d | focus minutes: %d\n",
		ft.Status, ft.UnitsCompleted, ft.EstimatedUnits, ft.FocusMinutes)
	if ft.Description != "" {
		fmt.Fprintf(&b, "  %s\n", ft.Description)
	}
	if ft.Reasoning != "" {
		fmt.Fprintf(&b, "  why: %s\n", ft.Reasoning)
	}
	if len(ft.RelatedRecordIDs) > 0 {
		fmt.Fprintf(&b, "  records: %v\n", ft.RelatedRecordIDs)
	}
	return b.String()
}
