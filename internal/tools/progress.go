package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/focusloop/focusloop/internal/insight"
)

// ProgressReportTool handles the progress_report MCP tool.
type ProgressReportTool struct {
	engine *insight.Engine
}

// NewProgressReportTool creates a ProgressReportTool.
func NewProgressReportTool(engine *insight.Engine) *ProgressReportTool {
	return &ProgressReportTool{engine: engine}
}

// Definition returns the MCP tool definition for progress_report.
func (t *ProgressReportTool) Definition() mcp.Tool {
	return mcp.NewTool("progress_report",
		mcp.WithDescription(
			"Analyze task progress over a time window: completion rates, stalled "+
				"tasks, bottlenecks, trend and an efficiency score. Optionally adds "+
				"AI-narrated insights on top of the numbers.",
		),
		mcp.WithNumber("owner_id", mcp.Description("Owner scope (omit for anonymous)")),
		mcp.WithNumber("window_days", mcp.Description("Analysis window in days (default: 30)")),
		mcp.WithBoolean("insights", mcp.Description("Add narrated insights (default: false)")),
	)
}

// Handle processes the progress_report tool call.
func (t *ProgressReportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := t.engine.Analyze(ownerArg(req), intArg(req, "window_days", 0))
	if err != nil {
		return toolError("analyzing progress", err), nil
	}

	var b strings.Builder
	writeReport(&b, report)

	if boolArg(req, "insights", false) {
		ins := t.engine.Insights(ctx, report)
		b.WriteString("\n")
		writeInsights(&b, ins)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func writeReport(b *strings.Builder, r *insight.Report) {
	fmt.Fprintf(b, "Progress report, last %d days\n\n", r.WindowDays)
	fmt.Fprintf(b, "Tasks: %d total | %d completed | %d active | %d paused\n",
		r.TotalTasks, r.CompletedTasks, r.ActiveTasks, r.PausedTasks)
	fmt.Fprintf(b, "Completion rate: %.0f%%\n", r.CompletionRate*100)
	fmt.Fprintf(b, "Stalled tasks (no movement in 7+ days): %d\n", r.StalledTasks)
	fmt.Fprintf(b, "Bottleneck score: %d/100\n", r.BottleneckScore)
	fmt.Fprintf(b, "Efficiency score: %d/100\n", r.EfficiencyScore)
	fmt.Fprintf(b, "Trend: %s (strength %.2f)\n", r.Trend, r.TrendStrength)
	if r.CompletedTasks > 0 {
		fmt.Fprintf(b, "Average days to complete: %.1f\n", r.AvgDaysToComplete)
		fmt.Fprintf(b, "Completion speed: %d same day, %d within a week, %d within a month, %d longer\n",
			r.CompletionSpeed["same_day"], r.CompletionSpeed["within_week"],
			r.CompletionSpeed["within_month"], r.CompletionSpeed["over_month"])
	}

	if len(r.ByTag) > 0 {
		b.WriteString("\nBy life area:\n")
		for _, tag := range sortedKeys(r.ByTag) {
			bd := r.ByTag[tag]
			fmt.Fprintf(b, "  %-12s %d/%d done (%.0f%%)\n", tag, bd.Completed, bd.Total, bd.Rate*100)
		}
	}
	if len(r.ByPriority) > 0 {
		b.WriteString("\nBy priority:\n")
		for _, p := range sortedKeys(r.ByPriority) {
			bd := r.ByPriority[p]
			fmt.Fprintf(b, "  %-12s %d/%d done (%.0f%%)\n", p, bd.Completed, bd.Total, bd.Rate*100)
		}
	}
	if len(r.WeeklyCompletions) > 0 {
		fmt.Fprintf(b, "\nWeekly completions (oldest first): %v\n", r.WeeklyCompletions)
	}
}

func writeInsights(b *strings.Builder, ins *insight.Insights) {
	fmt.Fprintf(b, "Assessment: %s\n", ins.OverallAssessment)
	if len(ins.CoreInsights) > 0 {
		b.WriteString("\nInsights:\n")
		for _, s := range ins.CoreInsights {
			fmt.Fprintf(b, "  - %s\n", s)
		}
	}
	if len(ins.ActionableRecommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, s := range ins.ActionableRecommendations {
			fmt.Fprintf(b, "  - %s\n", s)
		}
	}
	if len(ins.RiskAlerts) > 0 {
		b.WriteString("\nWatch out:\n")
		for _, s := range ins.RiskAlerts {
			fmt.Fprintf(b, "  - %s\n", s)
		}
	}
	fmt.Fprintf(b, "\n%s\n", ins.MotivationMessage)
}

func sortedKeys(m map[string]insight.Breakdown) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
