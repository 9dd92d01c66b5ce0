// Package taskctx renders records into the plain-text context blocks fed
// to completion prompts. Rendering is pure and deterministic: the same
// inputs always produce the same block, so prompts are reproducible and
// testable without a live model.
package taskctx

import (
	"fmt"
	"strings"

	"github.com/focusloop/focusloop/internal/tracker"
)

const (
	// contentLimit bounds the record content carried into a prompt.
	contentLimit = 500

	// candidateContentLimit bounds each entry of a candidate list.
	candidateContentLimit = 200

	// maxSubtasksShown caps the subtask preview per candidate.
	maxSubtasksShown = 3
)

// Build renders a single record with its subtask state into a context
// block for decomposition and insight prompts. extraNotes, when present,
// is appended as a caller-supplied addendum.
func Build(rec *tracker.Record, completed, pending []tracker.Record, extraNotes string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\n", tracker.Truncate(rec.Content, contentLimit))
	fmt.Fprintf(&b, "Priority: %s | Area: %s | Status: %s\n", rec.Priority, rec.Tag, rec.Status)

	if rec.ProgressNotes != "" {
		fmt.Fprintf(&b, "Progress: %d%% - %s\n", rec.Progress, rec.ProgressNotes)
	} else {
		fmt.Fprintf(&b, "Progress: %d%% - no progress notes\n", rec.Progress)
	}

	if len(completed) > 0 {
		b.WriteString("\nCompleted subtasks:\n")
		for i, c := range completed {
			fmt.Fprintf(&b, "%d. %s\n", i+1, tracker.Truncate(c.Content, candidateContentLimit))
		}
	}
	if len(pending) > 0 {
		b.WriteString("\nPending subtasks:\n")
		for i, p := range pending {
			fmt.Fprintf(&b, "%d. %s (%d%%)\n", i+1,
				tracker.Truncate(p.Content, candidateContentLimit), p.Progress)
		}
	}
	if len(completed) == 0 && len(pending) == 0 {
		b.WriteString("\nNo subtasks yet.\n")
	}

	if strings.TrimSpace(extraNotes) != "" {
		fmt.Fprintf(&b, "\nAdditional context from the user:\n%s\n", strings.TrimSpace(extraNotes))
	}

	return b.String()
}

// BuildCandidateList renders the numbered candidate block for worklist
// generation. childrenOf maps a task ID to its active subtasks; at most
// three are shown per candidate, with a count tail for the rest.
func BuildCandidateList(tasks []tracker.Record, childrenOf map[int64][]tracker.Record) string {
	var b strings.Builder

	for i, task := range tasks {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1,
			strings.ToUpper(task.Priority),
			tracker.Truncate(task.Content, candidateContentLimit))
		fmt.Fprintf(&b, "   id: %d | area: %s | progress: %d%% | created: %s\n",
			task.ID, task.Tag, task.Progress, task.CreatedAt.Format("2006-01-02"))
		if task.ProgressNotes != "" {
			fmt.Fprintf(&b, "   notes: %s\n", tracker.Truncate(task.ProgressNotes, candidateContentLimit))
		}

		children := childrenOf[task.ID]
		if len(children) > 0 {
			shown := children
			if len(shown) > maxSubtasksShown {
				shown = shown[:maxSubtasksShown]
			}
			parts := make([]string, 0, len(shown))
			for _, c := range shown {
				parts = append(parts, tracker.Truncate(c.Content, 80))
			}
			fmt.Fprintf(&b, "   subtasks: %s", strings.Join(parts, "; "))
			if rest := len(children) - len(shown); rest > 0 {
				fmt.Fprintf(&b, " (and %d more)", rest)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
