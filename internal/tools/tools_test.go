package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/focusloop/focusloop/internal/assist"
	"github.com/focusloop/focusloop/internal/insight"
	"github.com/focusloop/focusloop/internal/planner"
	"github.com/focusloop/focusloop/internal/tracker"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

func newTestStore(t *testing.T) *tracker.Store {
	t.Helper()
	store, err := tracker.New(tracker.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

type fakeClient struct{ reply string }

func (f *fakeClient) Complete(context.Context, string) (string, error) {
	return f.reply, nil
}

// ─── Record tools ────────────────────────────────────────────────────────────

func TestRecordTools_CreateGetUpdateDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	create := NewRecordCreateTool(store)
	res, err := create.Handle(ctx, makeReq(map[string]interface{}{
		"content":  "plan the offsite",
		"category": "task",
		"priority": "high",
	}))
	if err != nil {
		t.Fatalf("create Handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("create failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "plan the offsite") {
		t.Errorf("create output: %s", resultText(res))
	}

	recs, err := store.ListRecords(tracker.ListRecordsOptions{})
	if err != nil || len(recs) != 1 {
		t.Fatalf("record not persisted: %v, %d", err, len(recs))
	}
	id := float64(recs[0].ID)

	get := NewRecordGetTool(store)
	res, _ = get.Handle(ctx, makeReq(map[string]interface{}{"id": id}))
	if res.IsError || !strings.Contains(resultText(res), "plan the offsite") {
		t.Errorf("get output: %s", resultText(res))
	}

	update := NewRecordUpdateTool(store)
	res, _ = update.Handle(ctx, makeReq(map[string]interface{}{
		"id":       id,
		"progress": float64(60),
	}))
	if res.IsError || !strings.Contains(resultText(res), "60%") {
		t.Errorf("update output: %s", resultText(res))
	}

	del := NewRecordDeleteTool(store)
	res, _ = del.Handle(ctx, makeReq(map[string]interface{}{"id": id}))
	if res.IsError || !strings.Contains(resultText(res), "soft") {
		t.Errorf("delete output: %s", resultText(res))
	}

	// Gone from the normal path, reachable via the audit flag.
	res, _ = get.Handle(ctx, makeReq(map[string]interface{}{"id": id}))
	if !res.IsError {
		t.Error("get after delete should fail")
	}
	res, _ = get.Handle(ctx, makeReq(map[string]interface{}{"id": id, "include_deleted": true}))
	if res.IsError {
		t.Errorf("audit get failed: %s", resultText(res))
	}
}

func TestRecordCreateTool_ValidationSurfaces(t *testing.T) {
	store := newTestStore(t)
	create := NewRecordCreateTool(store)

	res, err := create.Handle(context.Background(), makeReq(map[string]interface{}{
		"content":  "x",
		"category": "epic",
	}))
	if err != nil {
		t.Fatalf("Handle returned a Go error: %v", err)
	}
	if !res.IsError {
		t.Fatal("invalid category accepted")
	}
	if !strings.Contains(resultText(res), "category") {
		t.Errorf("error text: %s", resultText(res))
	}
}

func TestRecordGetTool_RequiresID(t *testing.T) {
	store := newTestStore(t)
	get := NewRecordGetTool(store)

	res, _ := get.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !res.IsError {
		t.Error("missing id accepted")
	}
}

func TestRecordListTool_Empty(t *testing.T) {
	store := newTestStore(t)
	list := NewRecordListTool(store)

	res, _ := list.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if res.IsError {
		t.Fatalf("list failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "No records") {
		t.Errorf("list output: %s", resultText(res))
	}
}

// ─── Focus tools ─────────────────────────────────────────────────────────────

func TestFocusTools_AddTransitionList(t *testing.T) {
	store := newTestStore(t)
	p := planner.New(store, nil, zerolog.Nop())
	ctx := context.Background()

	rec, err := store.CreateRecord(tracker.CreateRecordParams{
		Content: "fix the roof", Category: tracker.CategoryTask, Priority: tracker.PriorityUrgent,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	add := NewFocusAddTaskTool(p)
	res, _ := add.Handle(ctx, makeReq(map[string]interface{}{"record_id": float64(rec.ID)}))
	if res.IsError {
		t.Fatalf("add failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "fix the roof") {
		t.Errorf("add output: %s", resultText(res))
	}

	batch, err := store.ListBatch(0)
	if err != nil || len(batch) != 1 {
		t.Fatalf("worklist wrong: %v, %d", err, len(batch))
	}

	transition := NewFocusTransitionTool(p)
	res, _ = transition.Handle(ctx, makeReq(map[string]interface{}{
		"task_id": float64(batch[0].ID),
		"action":  "complete",
		"minutes": float64(40),
	}))
	if res.IsError {
		t.Fatalf("transition failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "completed") {
		t.Errorf("transition output: %s", resultText(res))
	}

	res, _ = transition.Handle(ctx, makeReq(map[string]interface{}{
		"task_id": float64(batch[0].ID),
		"action":  "levitate",
	}))
	if !res.IsError {
		t.Error("unknown action accepted")
	}

	list := NewFocusListTool(store)
	res, _ = list.Handle(ctx, makeReq(map[string]interface{}{}))
	if res.IsError || !strings.Contains(resultText(res), "fix the roof") {
		t.Errorf("list output: %s", resultText(res))
	}
}

func TestFocusGenerateTool_MapsPlannerErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// No completion client configured.
	p := planner.New(store, nil, zerolog.Nop())
	gen := NewFocusGenerateTool(p)
	res, _ := gen.Handle(ctx, makeReq(map[string]interface{}{}))
	if !res.IsError || !strings.Contains(resultText(res), "disabled") {
		t.Errorf("no-client output: %s", resultText(res))
	}

	// Client present but nothing to plan from.
	p = planner.New(store, &fakeClient{reply: "{}"}, zerolog.Nop())
	gen = NewFocusGenerateTool(p)
	res, _ = gen.Handle(ctx, makeReq(map[string]interface{}{}))
	if !res.IsError || !strings.Contains(resultText(res), "no active tasks") {
		t.Errorf("no-candidates output: %s", resultText(res))
	}

	// Contract violation keeps the previous worklist.
	if _, err := store.CreateRecord(tracker.CreateRecordParams{
		Content: "a task", Category: tracker.CategoryTask,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res, _ = gen.Handle(ctx, makeReq(map[string]interface{}{}))
	if !res.IsError || !strings.Contains(resultText(res), "unchanged") {
		t.Errorf("contract-violation output: %s", resultText(res))
	}
}

// ─── Progress / decompose tools ──────────────────────────────────────────────

func TestProgressReportTool(t *testing.T) {
	store := newTestStore(t)
	engine := insight.New(store, nil, zerolog.Nop())
	tool := NewProgressReportTool(engine)
	ctx := context.Background()

	rec, err := store.CreateRecord(tracker.CreateRecordParams{
		Content: "a task", Category: tracker.CategoryTask,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	status := tracker.StatusCompleted
	if _, err := store.UpdateRecord(rec.ID, tracker.UpdateRecordParams{Status: &status}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	res, _ := tool.Handle(ctx, makeReq(map[string]interface{}{}))
	if res.IsError {
		t.Fatalf("report failed: %s", resultText(res))
	}
	out := resultText(res)
	if !strings.Contains(out, "1 total") || !strings.Contains(out, "1 completed") {
		t.Errorf("report output: %s", out)
	}
	if strings.Contains(out, "Assessment:") {
		t.Error("insights rendered without the flag")
	}

	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{"insights": true}))
	if res.IsError || !strings.Contains(resultText(res), "Assessment:") {
		t.Errorf("insights output: %s", resultText(res))
	}
}

func TestTaskDecomposeTool_FallbackAndMaterialize(t *testing.T) {
	store := newTestStore(t)
	a := assist.New(store, nil, zerolog.Nop())
	tool := NewTaskDecomposeTool(a)
	ctx := context.Background()

	rec, err := store.CreateRecord(tracker.CreateRecordParams{
		Content: "build a shed", Category: tracker.CategoryTask,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, _ := tool.Handle(ctx, makeReq(map[string]interface{}{
		"record_id": float64(rec.ID),
	}))
	if res.IsError {
		t.Fatalf("decompose failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "generic breakdown") {
		t.Errorf("fallback not flagged: %s", resultText(res))
	}

	res, _ = tool.Handle(ctx, makeReq(map[string]interface{}{
		"record_id":   float64(rec.ID),
		"materialize": true,
	}))
	if res.IsError {
		t.Fatalf("materialize failed: %s", resultText(res))
	}
	children, err := store.ListChildren(rec.ID, false)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(children) == 0 {
		t.Error("materialize created no subtasks")
	}
}
