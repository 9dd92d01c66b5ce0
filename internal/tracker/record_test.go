package tracker_test

import (
	"errors"
	"testing"

	"github.com/focusloop/focusloop/internal/ident"
	"github.com/focusloop/focusloop/internal/tracker"
)

func ptr[T any](v T) *T { return &v }

func TestCreateRecord_Defaults(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.CreateRecord(tracker.CreateRecordParams{Content: "write the report"})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if !ident.IsValidFormat(rec.ID) {
		t.Errorf("record ID %d is not a 48-bit identifier", rec.ID)
	}
	if rec.Category != tracker.CategoryGeneral {
		t.Errorf("category = %q, want general", rec.Category)
	}
	if rec.Priority != tracker.PriorityMedium {
		t.Errorf("priority = %q, want medium", rec.Priority)
	}
	if rec.Status != tracker.StatusActive {
		t.Errorf("status = %q, want active", rec.Status)
	}
	if rec.Tag != "work" {
		t.Errorf("tag = %q, want work", rec.Tag)
	}
	if rec.Progress != 0 {
		t.Errorf("progress = %d, want 0", rec.Progress)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestCreateRecord_Validation(t *testing.T) {
	s := newTestStore(t)

	cases := []struct {
		name   string
		params tracker.CreateRecordParams
	}{
		{"empty content", tracker.CreateRecordParams{Content: "   "}},
		{"bad category", tracker.CreateRecordParams{Content: "x", Category: "epic"}},
		{"bad priority", tracker.CreateRecordParams{Content: "x", Priority: "asap"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateRecord(tc.params)
			var verr *tracker.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestCreateRecord_ParentRules(t *testing.T) {
	s := newTestStore(t)

	parent, err := s.CreateRecord(tracker.CreateRecordParams{
		Content:  "ship v2",
		Category: tracker.CategoryTask,
		OwnerID:  ptr(int64(42)),
	})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}

	child, err := s.CreateRecord(tracker.CreateRecordParams{
		Content:  "write changelog",
		Category: tracker.CategoryTask,
		ParentID: &parent.ID,
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if child.OwnerID == nil || *child.OwnerID != 42 {
		t.Errorf("child owner = %v, want inherited 42", child.OwnerID)
	}

	// A subtask cannot itself have children.
	_, err = s.CreateRecord(tracker.CreateRecordParams{
		Content:  "too deep",
		Category: tracker.CategoryTask,
		ParentID: &child.ID,
	})
	var verr *tracker.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("grandchild create: got %v, want ValidationError", err)
	}

	// Only tasks can be parents.
	note, err := s.CreateRecord(tracker.CreateRecordParams{
		Content:  "loose thought",
		Category: tracker.CategoryNote,
	})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	_, err = s.CreateRecord(tracker.CreateRecordParams{
		Content:  "child of a note",
		Category: tracker.CategoryTask,
		ParentID: &note.ID,
	})
	if !errors.As(err, &verr) {
		t.Fatalf("note parent: got %v, want ValidationError", err)
	}

	// Missing parents are a validation failure, not a not-found.
	missing := int64(1) << 47
	_, err = s.CreateRecord(tracker.CreateRecordParams{
		Content:  "orphan",
		Category: tracker.CategoryTask,
		ParentID: &missing,
	})
	if !errors.As(err, &verr) {
		t.Fatalf("missing parent: got %v, want ValidationError", err)
	}
}

func TestGetRecord_SoftDeleteVisibility(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.CreateRecord(tracker.CreateRecordParams{Content: "doomed"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteRecord(rec.ID, false); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if _, err := s.GetRecord(rec.ID); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("GetRecord after soft delete: got %v, want ErrNotFound", err)
	}

	audit, err := s.AuditRecord(rec.ID)
	if err != nil {
		t.Fatalf("AuditRecord: %v", err)
	}
	if audit.Status != tracker.StatusDeleted {
		t.Errorf("audit status = %q, want deleted", audit.Status)
	}

	recs, err := s.ListRecords(tracker.ListRecordsOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("listing shows %d records after soft delete, want 0", len(recs))
	}
}

func TestDeleteRecord_HardRemovesChildren(t *testing.T) {
	s := newTestStore(t)

	parent, _ := s.CreateRecord(tracker.CreateRecordParams{
		Content: "parent", Category: tracker.CategoryTask,
	})
	child, err := s.CreateRecord(tracker.CreateRecordParams{
		Content: "child", Category: tracker.CategoryTask, ParentID: &parent.ID,
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	if err := s.DeleteRecord(parent.ID, true); err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	if _, err := s.AuditRecord(parent.ID); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("parent still readable after hard delete: %v", err)
	}
	if _, err := s.AuditRecord(child.ID); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("child still readable after hard delete: %v", err)
	}
}

func TestUpdateRecord_PatchAndClamp(t *testing.T) {
	s := newTestStore(t)

	rec, _ := s.CreateRecord(tracker.CreateRecordParams{
		Content: "refactor importer", Category: tracker.CategoryTask,
	})

	updated, err := s.UpdateRecord(rec.ID, tracker.UpdateRecordParams{
		Progress:      ptr(250),
		ProgressNotes: ptr("blocked on schema review"),
		Priority:      ptr(tracker.PriorityHigh),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Progress != 100 {
		t.Errorf("progress = %d, want clamped 100", updated.Progress)
	}
	if updated.ProgressNotes != "blocked on schema review" {
		t.Errorf("notes = %q", updated.ProgressNotes)
	}
	if updated.Priority != tracker.PriorityHigh {
		t.Errorf("priority = %q, want high", updated.Priority)
	}
	if updated.Content != "refactor importer" {
		t.Errorf("content changed unexpectedly: %q", updated.Content)
	}

	// Deleted is not reachable through update.
	_, err = s.UpdateRecord(rec.ID, tracker.UpdateRecordParams{
		Status: ptr(tracker.StatusDeleted),
	})
	var verr *tracker.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("status=deleted via update: got %v, want ValidationError", err)
	}

	// Negative progress clamps to zero.
	updated, err = s.UpdateRecord(rec.ID, tracker.UpdateRecordParams{Progress: ptr(-5)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Progress != 0 {
		t.Errorf("progress = %d, want clamped 0", updated.Progress)
	}
}

func TestUpdateRecord_CategoryLockedWithSubtasks(t *testing.T) {
	s := newTestStore(t)

	parent, _ := s.CreateRecord(tracker.CreateRecordParams{
		Content: "parent", Category: tracker.CategoryTask,
	})
	if _, err := s.CreateRecord(tracker.CreateRecordParams{
		Content: "child", Category: tracker.CategoryTask, ParentID: &parent.ID,
	}); err != nil {
		t.Fatalf("create child: %v", err)
	}

	_, err := s.UpdateRecord(parent.ID, tracker.UpdateRecordParams{
		Category: ptr(tracker.CategoryNote),
	})
	var verr *tracker.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("got %v, want ValidationError", err)
	}
}

func TestListChildren_StatusFiltering(t *testing.T) {
	s := newTestStore(t)

	parent, _ := s.CreateRecord(tracker.CreateRecordParams{
		Content: "parent", Category: tracker.CategoryTask,
	})
	active, _ := s.CreateRecord(tracker.CreateRecordParams{
		Content: "active child", Category: tracker.CategoryTask, ParentID: &parent.ID,
	})
	done, _ := s.CreateRecord(tracker.CreateRecordParams{
		Content: "done child", Category: tracker.CategoryTask, ParentID: &parent.ID,
	})
	if _, err := s.UpdateRecord(done.ID, tracker.UpdateRecordParams{
		Status: ptr(tracker.StatusCompleted),
	}); err != nil {
		t.Fatalf("complete child: %v", err)
	}
	gone, _ := s.CreateRecord(tracker.CreateRecordParams{
		Content: "deleted child", Category: tracker.CategoryTask, ParentID: &parent.ID,
	})
	if err := s.DeleteRecord(gone.ID, false); err != nil {
		t.Fatalf("delete child: %v", err)
	}

	defaults, err := s.ListChildren(parent.ID, false)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(defaults) != 1 || defaults[0].ID != active.ID {
		t.Errorf("default children = %d entries, want only the active one", len(defaults))
	}

	wide, err := s.ListChildren(parent.ID, true)
	if err != nil {
		t.Fatalf("ListChildren inactive: %v", err)
	}
	if len(wide) != 2 {
		t.Errorf("includeInactive children = %d entries, want 2 (deleted stays hidden)", len(wide))
	}

	sum, err := s.ToSummary(parent, false)
	if err != nil {
		t.Fatalf("ToSummary: %v", err)
	}
	if sum.ActiveChildren != 1 {
		t.Errorf("ActiveChildren = %d, want 1", sum.ActiveChildren)
	}
	if sum.Children != nil {
		t.Error("children loaded without includeChildren")
	}

	full, err := s.ToSummary(parent, true)
	if err != nil {
		t.Fatalf("ToSummary with children: %v", err)
	}
	if len(full.Children) != 1 || full.Children[0].ID != active.ID {
		t.Errorf("summary children = %d entries, want only the active one", len(full.Children))
	}
}

func TestTopTasks_PriorityThenAge(t *testing.T) {
	s := newTestStore(t)

	mk := func(content, priority string) *tracker.Record {
		rec, err := s.CreateRecord(tracker.CreateRecordParams{
			Content: content, Category: tracker.CategoryTask, Priority: priority,
		})
		if err != nil {
			t.Fatalf("create %q: %v", content, err)
		}
		return rec
	}

	mk("low first", tracker.PriorityLow)
	urgent := mk("urgent late", tracker.PriorityUrgent)
	highA := mk("high a", tracker.PriorityHigh)
	highB := mk("high b", tracker.PriorityHigh)
	mk("medium", tracker.PriorityMedium)

	// Ideas never enter the worklist pool.
	if _, err := s.CreateRecord(tracker.CreateRecordParams{
		Content: "an idea", Category: tracker.CategoryIdea, Priority: tracker.PriorityUrgent,
	}); err != nil {
		t.Fatalf("create idea: %v", err)
	}

	top, err := s.TopTasks(nil, 3)
	if err != nil {
		t.Fatalf("TopTasks: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("got %d tasks, want 3", len(top))
	}
	if top[0].ID != urgent.ID {
		t.Errorf("top[0] = %q, want the urgent task", top[0].Content)
	}
	highIDs := map[int64]bool{top[1].ID: true, top[2].ID: true}
	if !highIDs[highA.ID] || !highIDs[highB.ID] {
		t.Errorf("positions 2-3 are %q, %q, want the high-priority tasks",
			top[1].Content, top[2].Content)
	}
}

func TestListRecords_OwnerScoping(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateRecord(tracker.CreateRecordParams{Content: "anonymous"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateRecord(tracker.CreateRecordParams{
		Content: "owned", OwnerID: ptr(int64(7)),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	anon, err := s.ListRecords(tracker.ListRecordsOptions{})
	if err != nil {
		t.Fatalf("list anonymous: %v", err)
	}
	if len(anon) != 1 || anon[0].Content != "anonymous" {
		t.Errorf("anonymous scope = %d records", len(anon))
	}

	owned, err := s.ListRecords(tracker.ListRecordsOptions{OwnerID: ptr(int64(7))})
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	if len(owned) != 1 || owned[0].Content != "owned" {
		t.Errorf("owner scope = %d records", len(owned))
	}
}
