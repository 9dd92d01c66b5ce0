// Package planner turns the record backlog into the owner's focus-task
// worklist: AI batch generation, manual promotion of a single record, and
// lifecycle transitions.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/focusloop/focusloop/internal/completion"
	"github.com/focusloop/focusloop/internal/contract"
	"github.com/focusloop/focusloop/internal/taskctx"
	"github.com/focusloop/focusloop/internal/tracker"
)

// BatchSize is the number of entries a generated worklist carries.
const BatchSize = 5

// candidateLimit caps how many backlog tasks feed one generation.
const candidateLimit = 10

// titleLimit bounds the title derived from record content on manual
// promotion.
const titleLimit = 100

// ErrBatchContract is returned when the completion output for a batch
// violates its contract. Generation fails closed: the previous worklist
// stays untouched and the caller may retry.
var ErrBatchContract = errors.New("planner: completion output violated the batch contract")

// ErrNoCandidates is returned when the owner has no active tasks to plan
// from.
var ErrNoCandidates = errors.New("planner: no active tasks to plan from")

// ErrNoCompletion is returned when batch generation is requested but no
// completion client is configured.
var ErrNoCompletion = errors.New("planner: no completion client configured")

// priorityScores maps record priorities to manual-promotion scores.
var priorityScores = map[string]int{
	tracker.PriorityUrgent: 90,
	tracker.PriorityHigh:   75,
	tracker.PriorityMedium: 50,
	tracker.PriorityLow:    25,
}

// Store is the subset of the tracker the planner needs.
type Store interface {
	TopTasks(owner *int64, limit int) ([]tracker.Record, error)
	ListChildren(parentID int64, includeInactive bool) ([]tracker.Record, error)
	GetRecord(id int64) (*tracker.Record, error)
	ReplaceBatch(ownerID int64, tasks []tracker.FocusTask) ([]tracker.FocusTask, error)
	InsertFront(ft tracker.FocusTask) (*tracker.FocusTask, error)
	StartTask(ownerID, id int64) (*tracker.FocusTask, error)
	CompleteUnit(ownerID, id int64, minutes int) (*tracker.FocusTask, error)
	SkipTask(ownerID, id int64) (*tracker.FocusTask, error)
	ResetTask(ownerID, id int64) (*tracker.FocusTask, error)
}

// Planner generates and maintains per-owner worklists.
type Planner struct {
	store  Store
	ai     completion.Client // nil when AI features are disabled
	logger zerolog.Logger

	mu     sync.Mutex
	owners map[int64]*sync.Mutex
}

// New creates a Planner. ai may be nil; GenerateBatch then fails with
// ErrNoCompletion while manual promotion and transitions keep working.
func New(store Store, ai completion.Client, logger zerolog.Logger) *Planner {
	return &Planner{
		store:  store,
		ai:     ai,
		logger: logger,
		owners: make(map[int64]*sync.Mutex),
	}
}

// ownerLock returns the mutex serializing worklist mutations for one
// owner. Without it, two concurrent front-inserts could both observe the
// same active task and leave two active entries behind.
func (p *Planner) ownerLock(ownerID int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.owners[ownerID]
	if !ok {
		m = &sync.Mutex{}
		p.owners[ownerID] = m
	}
	return m
}

// ownerScope maps the zero owner to the anonymous record scope.
func ownerScope(ownerID int64) *int64 {
	if ownerID == 0 {
		return nil
	}
	return &ownerID
}

const batchPromptTemplate = `You are a focus planner. Below is a numbered list of a person's
active tasks, most important first.

%s

Pick and rank the %d most impactful focus tasks for today. Respond with a
single JSON object, no other text:

{
  "tasks": [
    {
      "title": "short actionable title",
      "description": "what to actually do",
      "related_record_ids": [list of candidate ids this draws from],
      "priority_score": 0-100,
      "estimated_units": 1-4,
      "reasoning": "one sentence on why this ranks here"
    }
  ]
}

Return exactly %d entries, ordered most important first.`

type batchEntry struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	RelatedRecordIDs []int64 `json:"related_record_ids"`
	PriorityScore    int     `json:"priority_score"`
	EstimatedUnits   int     `json:"estimated_units"`
	Reasoning        string  `json:"reasoning"`
}

type batchPayload struct {
	Tasks []batchEntry `json:"tasks"`
}

// GenerateBatch plans a fresh worklist for the owner: top backlog tasks
// become prompt candidates, the completion output is contract-checked,
// and only a fully valid batch replaces the previous one. Any contract
// violation fails closed with ErrBatchContract.
func (p *Planner) GenerateBatch(ctx context.Context, ownerID int64) ([]tracker.FocusTask, error) {
	if p.ai == nil {
		return nil, ErrNoCompletion
	}

	lock := p.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	candidates, err := p.store.TopTasks(ownerScope(ownerID), candidateLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	childrenOf := make(map[int64][]tracker.Record, len(candidates))
	for _, c := range candidates {
		children, err := p.store.ListChildren(c.ID, false)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			childrenOf[c.ID] = children
		}
	}

	candidateBlock := taskctx.BuildCandidateList(candidates, childrenOf)
	prompt := fmt.Sprintf(batchPromptTemplate, candidateBlock, BatchSize, BatchSize)

	raw, err := p.ai.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("planner: batch completion: %w", err)
	}

	entries, err := parseBatch(raw)
	if err != nil {
		p.logger.Warn().Err(err).Int64("owner", ownerID).
			Msg("batch generation failed closed, previous worklist kept")
		return nil, err
	}

	tasks := make([]tracker.FocusTask, len(entries))
	for i, e := range entries {
		tasks[i] = tracker.FocusTask{
			Title:             e.Title,
			Description:       e.Description,
			RelatedRecordIDs:  e.RelatedRecordIDs,
			PriorityScore:     clamp(e.PriorityScore, 0, 100),
			EstimatedUnits:    clamp(e.EstimatedUnits, 1, 4),
			GenerationContext: candidateBlock,
			Reasoning:         e.Reasoning,
		}
	}

	batch, err := p.store.ReplaceBatch(ownerID, tasks)
	if err != nil {
		return nil, err
	}
	p.logger.Info().Int64("owner", ownerID).Int("tasks", len(batch)).
		Str("batch_id", batch[0].BatchID).Msg("worklist generated")
	return batch, nil
}

// parseBatch contract-checks raw completion output. Entries beyond
// BatchSize are dropped; an empty list, or any entry without a title,
// is a violation.
func parseBatch(raw string) ([]batchEntry, error) {
	var payload batchPayload
	if err := contract.Decode(raw, []string{"tasks"}, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBatchContract, err)
	}
	if len(payload.Tasks) == 0 {
		return nil, fmt.Errorf("%w: empty task list", ErrBatchContract)
	}
	if len(payload.Tasks) > BatchSize {
		payload.Tasks = payload.Tasks[:BatchSize]
	}
	for i, e := range payload.Tasks {
		if e.Title == "" {
			return nil, fmt.Errorf("%w: entry %d has no title", ErrBatchContract, i+1)
		}
	}
	return payload.Tasks, nil
}

// AddSingleTask promotes one record to the front of the worklist without
// any AI involvement. The insert auto-skips the currently active task and
// shifts the rest down; per-owner serialization keeps concurrent adds
// from racing on the active slot.
func (p *Planner) AddSingleTask(ownerID, recordID int64) (*tracker.FocusTask, error) {
	lock := p.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := p.store.GetRecord(recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != tracker.StatusActive {
		return nil, &tracker.ValidationError{
			Field: "record_id",
			Msg:   fmt.Sprintf("record %d is %s, only active records can be promoted", recordID, rec.Status),
		}
	}

	score, ok := priorityScores[rec.Priority]
	if !ok {
		score = priorityScores[tracker.PriorityMedium]
	}

	ft, err := p.store.InsertFront(tracker.FocusTask{
		OwnerID:          ownerID,
		Title:            tracker.Truncate(rec.Content, titleLimit),
		Description:      rec.ProgressNotes,
		RelatedRecordIDs: []int64{rec.ID},
		PriorityScore:    score,
		EstimatedUnits:   1,
		Reasoning:        "manually promoted from the backlog",
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info().Int64("owner", ownerID).Int64("record", recordID).
		Msg("record promoted to worklist front")
	return ft, nil
}

// Transition actions.
const (
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionSkip     = "skip"
	ActionReset    = "reset"
)

// Transition dispatches a lifecycle action on one focus task. minutes is
// only meaningful for complete; zero falls back to the default unit
// length.
func (p *Planner) Transition(ownerID, taskID int64, action string, minutes int) (*tracker.FocusTask, error) {
	switch action {
	case ActionStart:
		return p.store.StartTask(ownerID, taskID)
	case ActionComplete:
		return p.store.CompleteUnit(ownerID, taskID, minutes)
	case ActionSkip:
		return p.store.SkipTask(ownerID, taskID)
	case ActionReset:
		return p.store.ResetTask(ownerID, taskID)
	default:
		return nil, &tracker.ValidationError{
			Field: "action",
			Msg:   fmt.Sprintf("%q is not one of start, complete, skip, reset", action),
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
