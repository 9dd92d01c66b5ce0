package insight_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/focusloop/focusloop/internal/insight"
	"github.com/focusloop/focusloop/internal/tracker"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	tasks []tracker.Record
	err   error
}

func (f *fakeSource) TasksInWindow(*int64, time.Time) ([]tracker.Record, error) {
	return f.tasks, f.err
}

type fakeClient struct {
	reply string
	err   error
}

func (f *fakeClient) Complete(context.Context, string) (string, error) {
	return f.reply, f.err
}

// task builds a fixture row. daysAgo* position it relative to testNow.
func task(status, priority, tag string, createdDaysAgo, updatedDaysAgo int) tracker.Record {
	return tracker.Record{
		Category:  tracker.CategoryTask,
		Status:    status,
		Priority:  priority,
		Tag:       tag,
		CreatedAt: testNow.AddDate(0, 0, -createdDaysAgo),
		UpdatedAt: testNow.AddDate(0, 0, -updatedDaysAgo),
	}
}

func analyze(t *testing.T, tasks []tracker.Record) *insight.Report {
	t.Helper()
	e := insight.New(&fakeSource{tasks: tasks}, nil, zerolog.Nop())
	r, err := e.AnalyzeAt(0, 30, testNow)
	if err != nil {
		t.Fatalf("AnalyzeAt: %v", err)
	}
	return r
}

func TestAnalyze_EfficiencyScenario(t *testing.T) {
	// 10 tasks, 6 completed (both high-priority ones among them), exactly
	// one stalled.
	var tasks []tracker.Record
	// 2 completed high-priority, finished this week.
	tasks = append(tasks,
		task(tracker.StatusCompleted, tracker.PriorityHigh, "work", 20, 2),
		task(tracker.StatusCompleted, tracker.PriorityHigh, "work", 20, 2))
	// 1 more completion this week, 3 the week before.
	tasks = append(tasks,
		task(tracker.StatusCompleted, tracker.PriorityMedium, "work", 20, 3),
		task(tracker.StatusCompleted, tracker.PriorityMedium, "work", 20, 10),
		task(tracker.StatusCompleted, tracker.PriorityMedium, "work", 20, 10),
		task(tracker.StatusCompleted, tracker.PriorityMedium, "work", 20, 10))
	// 1 stalled: active, untouched for 10 days.
	tasks = append(tasks, task(tracker.StatusActive, tracker.PriorityMedium, "work", 20, 10))
	// 3 active tasks touched yesterday.
	tasks = append(tasks,
		task(tracker.StatusActive, tracker.PriorityMedium, "work", 20, 1),
		task(tracker.StatusActive, tracker.PriorityMedium, "work", 20, 1),
		task(tracker.StatusActive, tracker.PriorityMedium, "work", 20, 1))

	r := analyze(t, tasks)

	if r.TotalTasks != 10 || r.CompletedTasks != 6 {
		t.Fatalf("totals = %d/%d, want 6/10", r.CompletedTasks, r.TotalTasks)
	}
	if r.StalledTasks != 1 {
		t.Fatalf("stalled = %d, want 1", r.StalledTasks)
	}
	// 0.6*40 + (2/2)*30 - 1*5 + 10 = 59.
	if r.EfficiencyScore != 59 {
		t.Errorf("efficiency = %d, want 59", r.EfficiencyScore)
	}
}

func TestAnalyze_EfficiencyBonusForOldCompletions(t *testing.T) {
	// Same shape as the scenario above, but every completion is 20 days
	// old: the completed-anything bonus does not depend on which week the
	// completions landed in.
	var tasks []tracker.Record
	tasks = append(tasks,
		task(tracker.StatusCompleted, tracker.PriorityHigh, "work", 25, 20),
		task(tracker.StatusCompleted, tracker.PriorityHigh, "work", 25, 20))
	for i := 0; i < 4; i++ {
		tasks = append(tasks, task(tracker.StatusCompleted, tracker.PriorityMedium, "work", 25, 20))
	}
	tasks = append(tasks, task(tracker.StatusActive, tracker.PriorityMedium, "work", 25, 10))
	for i := 0; i < 3; i++ {
		tasks = append(tasks, task(tracker.StatusActive, tracker.PriorityMedium, "work", 25, 1))
	}

	r := analyze(t, tasks)

	// 0.6*40 + (2/2)*30 - 1*5 + 10 = 59, bonus included.
	if r.EfficiencyScore != 59 {
		t.Errorf("efficiency = %d, want 59", r.EfficiencyScore)
	}
	if r.Trend != insight.TrendStable {
		t.Errorf("trend = %q, want stable with no recent completions", r.Trend)
	}
}

func TestAnalyze_BottleneckScenario(t *testing.T) {
	var tasks []tracker.Record
	// 2 stuck high-priority tasks (active, untouched >7 days).
	tasks = append(tasks,
		task(tracker.StatusActive, tracker.PriorityHigh, "alpha", 20, 10),
		task(tracker.StatusActive, tracker.PriorityUrgent, "beta", 20, 12))
	// 3 paused tasks, recently touched so they are not also "stuck".
	tasks = append(tasks,
		task(tracker.StatusPaused, tracker.PriorityMedium, "gamma", 20, 1),
		task(tracker.StatusPaused, tracker.PriorityMedium, "delta", 20, 1),
		task(tracker.StatusPaused, tracker.PriorityMedium, "epsilon", 20, 1))
	// One life area with 3+ tasks and nothing finished.
	tasks = append(tasks,
		task(tracker.StatusActive, tracker.PriorityLow, "health", 20, 1),
		task(tracker.StatusActive, tracker.PriorityLow, "health", 20, 1),
		task(tracker.StatusActive, tracker.PriorityLow, "health", 20, 1))

	r := analyze(t, tasks)

	// 2*15 + 3*5 + 1*10 = 55.
	if r.BottleneckScore != 55 {
		t.Errorf("bottleneck = %d, want 55", r.BottleneckScore)
	}
}

func TestAnalyze_BottleneckCapped(t *testing.T) {
	var tasks []tracker.Record
	for i := 0; i < 10; i++ {
		tasks = append(tasks, task(tracker.StatusActive, tracker.PriorityUrgent, "work", 20, 10))
	}
	r := analyze(t, tasks)
	if r.BottleneckScore != 100 {
		t.Errorf("bottleneck = %d, want capped at 100", r.BottleneckScore)
	}
}

func TestAnalyze_EmptyBacklog(t *testing.T) {
	r := analyze(t, nil)

	if r.TotalTasks != 0 || r.CompletionRate != 0 {
		t.Errorf("totals not zero: %+v", r)
	}
	if r.Trend != insight.TrendStable {
		t.Errorf("trend = %q, want stable", r.Trend)
	}
	// No high-priority tasks: that component is granted, nothing else.
	if r.EfficiencyScore != 30 {
		t.Errorf("efficiency = %d, want 30", r.EfficiencyScore)
	}
}

func TestAnalyze_Trend(t *testing.T) {
	cases := []struct {
		name               string
		recent, prior      int
		want               string
		wantStrengthAtMost float64
	}{
		{"improving from nothing", 3, 0, insight.TrendImproving, 1},
		{"improving", 4, 2, insight.TrendImproving, 1},
		{"slightly improving", 11, 10, insight.TrendImproving, 1},
		{"declining", 1, 4, insight.TrendDeclining, 1},
		{"slightly declining", 9, 10, insight.TrendDeclining, 1},
		{"stable", 3, 3, insight.TrendStable, 0},
		{"quiet", 0, 0, insight.TrendStable, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var tasks []tracker.Record
			for i := 0; i < tc.recent; i++ {
				tasks = append(tasks, task(tracker.StatusCompleted, tracker.PriorityMedium, "work", 20, 2))
			}
			for i := 0; i < tc.prior; i++ {
				tasks = append(tasks, task(tracker.StatusCompleted, tracker.PriorityMedium, "work", 20, 10))
			}
			r := analyze(t, tasks)
			if r.Trend != tc.want {
				t.Errorf("trend = %q, want %q", r.Trend, tc.want)
			}
			if r.TrendStrength > tc.wantStrengthAtMost {
				t.Errorf("strength = %f, want <= %f", r.TrendStrength, tc.wantStrengthAtMost)
			}
		})
	}
}

func TestAnalyze_BreakdownsAndSpeed(t *testing.T) {
	tasks := []tracker.Record{
		task(tracker.StatusCompleted, tracker.PriorityHigh, "work", 2, 2),      // same day
		task(tracker.StatusCompleted, tracker.PriorityHigh, "work", 8, 3),      // 5 days
		task(tracker.StatusCompleted, tracker.PriorityLow, "personal", 20, 10), // 10 days
		task(tracker.StatusActive, tracker.PriorityHigh, "work", 5, 1),
	}

	r := analyze(t, tasks)

	high := r.ByPriority[tracker.PriorityHigh]
	if high.Total != 3 || high.Completed != 2 {
		t.Errorf("high breakdown = %+v", high)
	}
	work := r.ByTag["work"]
	if work.Total != 3 || work.Completed != 2 {
		t.Errorf("work breakdown = %+v", work)
	}

	if r.CompletionSpeed["same_day"] != 1 ||
		r.CompletionSpeed["within_week"] != 1 ||
		r.CompletionSpeed["within_month"] != 1 {
		t.Errorf("completion speed = %v", r.CompletionSpeed)
	}
	// (0 + 5 + 10) / 3 = 5.
	if r.AvgDaysToComplete != 5 {
		t.Errorf("avg days = %f, want 5", r.AvgDaysToComplete)
	}
}

func TestAnalyze_WeeklySeries(t *testing.T) {
	tasks := []tracker.Record{
		task(tracker.StatusCompleted, tracker.PriorityMedium, "work", 25, 2),  // newest bucket
		task(tracker.StatusCompleted, tracker.PriorityMedium, "work", 25, 10), // one back
		task(tracker.StatusCompleted, tracker.PriorityMedium, "work", 25, 10),
	}

	r := analyze(t, tasks)

	// 30-day window rounds up to 5 buckets, oldest first.
	if len(r.WeeklyCompletions) != 5 {
		t.Fatalf("series length = %d, want 5", len(r.WeeklyCompletions))
	}
	if r.WeeklyCompletions[4] != 1 || r.WeeklyCompletions[3] != 2 {
		t.Errorf("series = %v", r.WeeklyCompletions)
	}
}

func TestAnalyze_SourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	e := insight.New(&fakeSource{err: boom}, nil, zerolog.Nop())
	if _, err := e.AnalyzeAt(0, 30, testNow); !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped source error", err)
	}
}

func TestInsights_FallbackWithoutClient(t *testing.T) {
	e := insight.New(&fakeSource{}, nil, zerolog.Nop())
	r := analyze(t, nil)

	ins := e.Insights(context.Background(), r)
	if ins.OverallAssessment == "" || ins.MotivationMessage == "" {
		t.Errorf("fallback incomplete: %+v", ins)
	}
	if ins.RiskAlerts == nil {
		t.Error("risk alerts must be an empty list, not nil")
	}
}

func TestInsights_FallbackOnContractViolation(t *testing.T) {
	r := analyze(t, nil)

	for _, reply := range []string{
		"no json at all",
		`{"overall_assessment":"ok"}`, // missing fields
	} {
		e := insight.New(&fakeSource{}, &fakeClient{reply: reply}, zerolog.Nop())
		ins := e.Insights(context.Background(), r)
		if ins.MotivationMessage == "" {
			t.Errorf("reply %q: fallback not applied", reply)
		}
	}
}

func TestInsights_DecodesValidReply(t *testing.T) {
	r := analyze(t, nil)
	reply := `Here you go: {"overall_assessment":"solid week","core_insights":["a"],` +
		`"actionable_recommendations":["b"],"risk_alerts":[],"motivation_message":"nice"}`
	e := insight.New(&fakeSource{}, &fakeClient{reply: reply}, zerolog.Nop())

	ins := e.Insights(context.Background(), r)
	if ins.OverallAssessment != "solid week" {
		t.Errorf("assessment = %q", ins.OverallAssessment)
	}
	if len(ins.CoreInsights) != 1 || ins.CoreInsights[0] != "a" {
		t.Errorf("insights = %v", ins.CoreInsights)
	}
}
