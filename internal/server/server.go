// Package server wires all focusloop components and creates the MCP
// server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools that depend on them. No business logic
// lives here, only wiring.
package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/focusloop/focusloop/internal/assist"
	"github.com/focusloop/focusloop/internal/completion"
	"github.com/focusloop/focusloop/internal/config"
	"github.com/focusloop/focusloop/internal/insight"
	"github.com/focusloop/focusloop/internal/planner"
	"github.com/focusloop/focusloop/internal/tools"
	"github.com/focusloop/focusloop/internal/tracker"
)

// Version is set at build time via ldflags.
var Version = "dev"

// noop is the cleanup returned on early failure; always safe to call.
func noop() {}

// New creates and configures the MCP server with all tools registered.
//
// The returned cleanup function closes the tracker store's database
// connection and must be called on shutdown (typically via defer). It is
// always non-nil.
func New(cfg config.Config, logger zerolog.Logger) (*server.MCPServer, func(), error) {
	store, err := tracker.New(tracker.Config{DataDir: cfg.DataDir})
	if err != nil {
		return nil, noop, fmt.Errorf("opening tracker store: %w", err)
	}
	cleanup := func() { _ = store.Close() }

	// AI features degrade, they never block startup: without a key the
	// planner refuses batch generation and everything else falls back.
	var ai completion.Client
	client, err := completion.NewOpenRouter(completion.Config{
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
		Timeout: time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	}, logger)
	switch {
	case err == nil:
		ai = client
	case errors.Is(err, completion.ErrNoAPIKey):
		logger.Warn().Msg("no API key configured, AI features disabled")
	default:
		cleanup()
		return nil, noop, fmt.Errorf("creating completion client: %w", err)
	}

	plan := planner.New(store, ai, logger)
	engine := insight.New(store, ai, logger)
	assistant := assist.New(store, ai, logger)

	s := server.NewMCPServer(
		"focusloop",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	recordCreate := tools.NewRecordCreateTool(store)
	s.AddTool(recordCreate.Definition(), recordCreate.Handle)

	recordGet := tools.NewRecordGetTool(store)
	s.AddTool(recordGet.Definition(), recordGet.Handle)

	recordList := tools.NewRecordListTool(store)
	s.AddTool(recordList.Definition(), recordList.Handle)

	recordChildren := tools.NewRecordChildrenTool(store)
	s.AddTool(recordChildren.Definition(), recordChildren.Handle)

	recordUpdate := tools.NewRecordUpdateTool(store)
	s.AddTool(recordUpdate.Definition(), recordUpdate.Handle)

	recordDelete := tools.NewRecordDeleteTool(store)
	s.AddTool(recordDelete.Definition(), recordDelete.Handle)

	focusGenerate := tools.NewFocusGenerateTool(plan)
	s.AddTool(focusGenerate.Definition(), focusGenerate.Handle)

	focusAdd := tools.NewFocusAddTaskTool(plan)
	s.AddTool(focusAdd.Definition(), focusAdd.Handle)

	focusList := tools.NewFocusListTool(store)
	s.AddTool(focusList.Definition(), focusList.Handle)

	focusTransition := tools.NewFocusTransitionTool(plan)
	s.AddTool(focusTransition.Definition(), focusTransition.Handle)

	progressReport := tools.NewProgressReportTool(engine)
	s.AddTool(progressReport.Definition(), progressReport.Handle)

	taskDecompose := tools.NewTaskDecomposeTool(assistant)
	s.AddTool(taskDecompose.Definition(), taskDecompose.Handle)

	logger.Info().Str("version", Version).Str("data_dir", cfg.DataDir).
		Bool("ai", ai != nil).Msg("focusloop server ready")

	return s, cleanup, nil
}

func serverInstructions() string {
	return `focusloop tracks a person's ideas, tasks and notes, and helps plan
what to focus on next.

Typical flow:
1. Capture things with record_create (tasks can have one level of subtasks).
2. Keep them current with record_update and record_delete.
3. Plan with focus_generate (AI-ranked worklist) or focus_add_task
   (promote one record directly).
4. Work the list with focus_transition: start, complete, skip, reset.
5. Review with progress_report; break big tasks down with task_decompose.`
}
