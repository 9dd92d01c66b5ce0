// Package assist analyzes a single task and suggests how to break it
// down. The analysis itself is advisory: AI output is contract-checked
// and replaced with a static suggestion set on any failure. Writing the
// chosen subtasks back goes through the tracker's normal validation, so
// the depth limit and owner inheritance hold for AI-born records too.
package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/focusloop/focusloop/internal/completion"
	"github.com/focusloop/focusloop/internal/contract"
	"github.com/focusloop/focusloop/internal/taskctx"
	"github.com/focusloop/focusloop/internal/tracker"
)

// ContextMacro marks where an override prompt wants the task context
// injected. Override prompts without the macro get the context appended.
const ContextMacro = "{{CONTEXT}}"

const maxSuggestions = 7

// Store is the subset of the tracker the assistant needs.
type Store interface {
	GetRecord(id int64) (*tracker.Record, error)
	ListChildren(parentID int64, includeInactive bool) ([]tracker.Record, error)
	CreateRecord(p tracker.CreateRecordParams) (*tracker.Record, error)
}

// SubtaskSuggestion is one proposed child task.
type SubtaskSuggestion struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Priority       string `json:"priority"`
	EstimatedUnits int    `json:"estimated_units"`
}

// Analysis is the decomposition result for one task.
type Analysis struct {
	ExecutionStrategy  string              `json:"execution_strategy"`
	Opportunities      []string            `json:"opportunities"`
	SubtaskSuggestions []SubtaskSuggestion `json:"subtask_suggestions"`

	// PromptUsed records the exact prompt sent (or that would have been
	// sent), for caller-side debugging of override prompts.
	PromptUsed string `json:"-"`
	// Fallback reports that the static payload was used instead of a
	// model response.
	Fallback bool `json:"-"`
}

var analysisRequired = []string{
	"execution_strategy", "opportunities", "subtask_suggestions",
}

// Assistant runs decomposition analyses.
type Assistant struct {
	store  Store
	ai     completion.Client // nil when AI features are disabled
	logger zerolog.Logger
}

// New creates an Assistant. ai may be nil; analyses then always return
// the fallback payload.
func New(store Store, ai completion.Client, logger zerolog.Logger) *Assistant {
	return &Assistant{store: store, ai: ai, logger: logger}
}

const analysisPromptTemplate = `You are helping someone execute a task. Here is the task and its
current subtask state:

%s

Respond with a single JSON object, no other text:

{
  "execution_strategy": "2-3 sentences on the best way to approach this",
  "opportunities": ["things that could make this easier or more valuable"],
  "subtask_suggestions": [
    {
      "title": "short actionable subtask",
      "description": "what doing it looks like",
      "priority": "low|medium|high|urgent",
      "estimated_units": 1-4
    }
  ]
}

Suggest 3-5 subtasks that are not already covered.`

// AnalyzeTask builds the task context and asks the completion client for
// a decomposition. overridePrompt, when non-empty, replaces the default
// template; a ContextMacro occurrence inside it is substituted with the
// context block, otherwise the block is appended.
func (a *Assistant) AnalyzeTask(ctx context.Context, recordID int64, extraNotes, overridePrompt string) (*Analysis, error) {
	rec, err := a.store.GetRecord(recordID)
	if err != nil {
		return nil, err
	}

	children, err := a.store.ListChildren(recordID, true)
	if err != nil {
		return nil, err
	}
	var completed, pending []tracker.Record
	for _, c := range children {
		if c.Status == tracker.StatusCompleted {
			completed = append(completed, c)
		} else {
			pending = append(pending, c)
		}
	}

	block := taskctx.Build(rec, completed, pending, extraNotes)
	prompt := buildPrompt(block, overridePrompt)

	if a.ai == nil {
		out := fallbackAnalysis(rec)
		out.PromptUsed = prompt
		return out, nil
	}

	raw, err := a.ai.Complete(ctx, prompt)
	if err != nil {
		a.logger.Warn().Err(err).Int64("record", recordID).
			Msg("decomposition completion failed, using fallback")
		out := fallbackAnalysis(rec)
		out.PromptUsed = prompt
		return out, nil
	}

	var out Analysis
	if err := contract.Decode(raw, analysisRequired, &out); err != nil {
		a.logger.Warn().Err(err).Int64("record", recordID).
			Msg("decomposition output violated its contract, using fallback")
		fb := fallbackAnalysis(rec)
		fb.PromptUsed = prompt
		return fb, nil
	}

	out.PromptUsed = prompt
	out.SubtaskSuggestions = sanitizeSuggestions(out.SubtaskSuggestions)
	return &out, nil
}

func buildPrompt(block, override string) string {
	if override == "" {
		return fmt.Sprintf(analysisPromptTemplate, block)
	}
	if strings.Contains(override, ContextMacro) {
		return strings.ReplaceAll(override, ContextMacro, block)
	}
	return override + "\n\n" + block
}

// sanitizeSuggestions drops untitled entries and normalizes bad
// priorities and unit counts instead of rejecting the whole analysis.
func sanitizeSuggestions(in []SubtaskSuggestion) []SubtaskSuggestion {
	out := make([]SubtaskSuggestion, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		switch s.Priority {
		case tracker.PriorityLow, tracker.PriorityMedium, tracker.PriorityHigh, tracker.PriorityUrgent:
		default:
			s.Priority = tracker.PriorityMedium
		}
		if s.EstimatedUnits < 1 {
			s.EstimatedUnits = 1
		}
		if s.EstimatedUnits > 4 {
			s.EstimatedUnits = 4
		}
		out = append(out, s)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func fallbackAnalysis(rec *tracker.Record) *Analysis {
	return &Analysis{
		ExecutionStrategy: fmt.Sprintf(
			"Work on %q in short focused sessions: clarify what done means, do the smallest useful step first, and record progress as you go.",
			tracker.Truncate(rec.Content, 80)),
		Opportunities: []string{
			"Splitting the task makes progress visible and easier to resume.",
		},
		SubtaskSuggestions: []SubtaskSuggestion{
			{Title: "Define what finished looks like", Description: "Write one sentence describing the done state.", Priority: tracker.PriorityMedium, EstimatedUnits: 1},
			{Title: "Do the first concrete step", Description: "Pick the smallest action that moves this forward and do it.", Priority: tracker.PriorityMedium, EstimatedUnits: 1},
			{Title: "Review and plan the rest", Description: "Check what remains and split it into further steps.", Priority: tracker.PriorityLow, EstimatedUnits: 1},
		},
		Fallback: true,
	}
}

// MaterializeSubtasks creates the picked suggestions as child records of
// the task. Each insert goes through the tracker's validation path, so
// the parent rules and owner inheritance apply unchanged.
func (a *Assistant) MaterializeSubtasks(recordID int64, picks []SubtaskSuggestion) ([]tracker.Record, error) {
	created := make([]tracker.Record, 0, len(picks))
	for _, pick := range sanitizeSuggestions(picks) {
		content := pick.Title
		if pick.Description != "" {
			content += ": " + pick.Description
		}
		rec, err := a.store.CreateRecord(tracker.CreateRecordParams{
			Content:  content,
			Category: tracker.CategoryTask,
			ParentID: &recordID,
			Priority: pick.Priority,
		})
		if err != nil {
			return created, fmt.Errorf("assist: materialize %q: %w", pick.Title, err)
		}
		created = append(created, *rec)
	}
	return created, nil
}
