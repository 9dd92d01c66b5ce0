// Package insight computes progress analytics over the task backlog and
// optionally narrates them through the completion client. The numeric
// report is pure arithmetic over stored rows; the narrated insights are
// best-effort and fall back to a static payload on any AI failure, so the
// report itself can never be invalidated by a bad completion.
package insight

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/focusloop/focusloop/internal/completion"
	"github.com/focusloop/focusloop/internal/contract"
	"github.com/focusloop/focusloop/internal/tracker"
)

const (
	// DefaultWindowDays is the analysis window when the caller does not
	// pick one.
	DefaultWindowDays = 30

	// stalledAfter is how long an active task may go unmodified before
	// it counts as stalled.
	stalledAfter = 7 * 24 * time.Hour

	// Bottleneck weights, capped at 100 total.
	weightStuckHigh    = 15
	weightPaused       = 5
	weightLowTag       = 10
	lowTagMinSamples   = 3
	lowTagRateCeiling  = 0.5
	bottleneckScoreCap = 100

	// Efficiency components.
	stalledPenaltyPer = 5
	stalledPenaltyCap = 20
	consistencyBonus  = 10
)

// Trend directions.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// Source feeds the engine. *tracker.Store satisfies it.
type Source interface {
	TasksInWindow(owner *int64, since time.Time) ([]tracker.Record, error)
}

// Breakdown is a per-group completion summary.
type Breakdown struct {
	Total     int
	Completed int
	Rate      float64
}

// Report is the full numeric analysis for one owner and window.
type Report struct {
	WindowDays int

	TotalTasks     int
	CompletedTasks int
	ActiveTasks    int
	PausedTasks    int
	CompletionRate float64

	ByPriority map[string]Breakdown
	ByTag      map[string]Breakdown

	// WeeklyCompletions lists completions per 7-day bucket, oldest
	// bucket first.
	WeeklyCompletions []int

	AvgDaysToComplete float64
	// CompletionSpeed buckets completed tasks by how long they took:
	// same_day, within_week, within_month, over_month.
	CompletionSpeed map[string]int

	StalledTasks    int
	BottleneckScore int

	Trend         string
	TrendStrength float64

	EfficiencyScore int
}

// Engine computes reports and optional narrated insights.
type Engine struct {
	source Source
	ai     completion.Client // nil when AI features are disabled
	logger zerolog.Logger
}

// New creates an Engine. ai may be nil; Insights then always returns the
// static fallback.
func New(source Source, ai completion.Client, logger zerolog.Logger) *Engine {
	return &Engine{source: source, ai: ai, logger: logger}
}

// Analyze computes the report for the owner over the last windowDays
// days (DefaultWindowDays when non-positive).
func (e *Engine) Analyze(ownerID int64, windowDays int) (*Report, error) {
	return e.AnalyzeAt(ownerID, windowDays, time.Now().UTC())
}

// AnalyzeAt is Analyze with an explicit reference time. Aging metrics
// (stalled tasks, trend buckets) are measured against now.
func (e *Engine) AnalyzeAt(ownerID int64, windowDays int, now time.Time) (*Report, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	var scope *int64
	if ownerID != 0 {
		scope = &ownerID
	}
	since := now.AddDate(0, 0, -windowDays)
	tasks, err := e.source.TasksInWindow(scope, since)
	if err != nil {
		return nil, fmt.Errorf("insight: load tasks: %w", err)
	}

	return buildReport(tasks, windowDays, now), nil
}

// buildReport is the pure core: rows in, numbers out.
func buildReport(tasks []tracker.Record, windowDays int, now time.Time) *Report {
	r := &Report{
		WindowDays:      windowDays,
		ByPriority:      make(map[string]Breakdown),
		ByTag:           make(map[string]Breakdown),
		CompletionSpeed: map[string]int{"same_day": 0, "within_week": 0, "within_month": 0, "over_month": 0},
		Trend:           TrendStable,
	}

	highTotal, highCompleted := 0, 0
	stuckHigh, pausedCount := 0, 0
	var completionDays float64

	for _, task := range tasks {
		r.TotalTasks++
		completed := task.Status == tracker.StatusCompleted
		switch task.Status {
		case tracker.StatusCompleted:
			r.CompletedTasks++
		case tracker.StatusActive:
			r.ActiveTasks++
		case tracker.StatusPaused:
			r.PausedTasks++
			pausedCount++
		}

		bumpBreakdown(r.ByPriority, task.Priority, completed)
		bumpBreakdown(r.ByTag, task.Tag, completed)

		highPriority := task.Priority == tracker.PriorityHigh || task.Priority == tracker.PriorityUrgent
		if highPriority {
			highTotal++
			if completed {
				highCompleted++
			}
		}

		age := now.Sub(task.UpdatedAt)
		if task.Status == tracker.StatusActive && task.Progress < 100 && age > stalledAfter {
			r.StalledTasks++
		}
		if highPriority && age > stalledAfter &&
			(task.Status == tracker.StatusActive || task.Status == tracker.StatusPaused) {
			stuckHigh++
		}

		if completed {
			// Records carry no separate completion timestamp; the
			// terminal update stands in for it.
			days := task.UpdatedAt.Sub(task.CreatedAt).Hours() / 24
			if days < 0 {
				days = 0
			}
			completionDays += days
			switch {
			case days < 1:
				r.CompletionSpeed["same_day"]++
			case days < 7:
				r.CompletionSpeed["within_week"]++
			case days < 30:
				r.CompletionSpeed["within_month"]++
			default:
				r.CompletionSpeed["over_month"]++
			}
		}
	}

	if r.TotalTasks > 0 {
		r.CompletionRate = float64(r.CompletedTasks) / float64(r.TotalTasks)
	}
	if r.CompletedTasks > 0 {
		r.AvgDaysToComplete = completionDays / float64(r.CompletedTasks)
	}

	r.WeeklyCompletions = weeklySeries(tasks, windowDays, now)

	// Bottleneck: each stuck high-priority task weighs heaviest, paused
	// tasks add drag, and life areas that rarely finish anything add a
	// flat penalty per area.
	lowTags := 0
	for _, b := range r.ByTag {
		if b.Total >= lowTagMinSamples && b.Rate < lowTagRateCeiling {
			lowTags++
		}
	}
	score := stuckHigh*weightStuckHigh + pausedCount*weightPaused + lowTags*weightLowTag
	if score > bottleneckScoreCap {
		score = bottleneckScoreCap
	}
	r.BottleneckScore = score

	recent, prior := trendBuckets(tasks, now)
	r.Trend, r.TrendStrength = classifyTrend(recent, prior)

	r.EfficiencyScore = efficiencyScore(r.CompletionRate, highTotal, highCompleted,
		r.StalledTasks, r.TotalTasks > 0 && r.CompletedTasks > 0)

	return r
}

func bumpBreakdown(m map[string]Breakdown, key string, completed bool) {
	b := m[key]
	b.Total++
	if completed {
		b.Completed++
	}
	b.Rate = float64(b.Completed) / float64(b.Total)
	m[key] = b
}

// weeklySeries counts completions per 7-day bucket, oldest first.
func weeklySeries(tasks []tracker.Record, windowDays int, now time.Time) []int {
	weeks := (windowDays + 6) / 7
	series := make([]int, weeks)
	for _, task := range tasks {
		if task.Status != tracker.StatusCompleted {
			continue
		}
		daysAgo := now.Sub(task.UpdatedAt).Hours() / 24
		if daysAgo < 0 {
			daysAgo = 0
		}
		bucket := int(daysAgo) / 7
		if bucket >= weeks {
			continue
		}
		series[weeks-1-bucket]++
	}
	return series
}

// trendBuckets counts completions in the last 7 days and the 7 days
// before that.
func trendBuckets(tasks []tracker.Record, now time.Time) (recent, prior int) {
	for _, task := range tasks {
		if task.Status != tracker.StatusCompleted {
			continue
		}
		age := now.Sub(task.UpdatedAt)
		switch {
		case age < 0:
			continue
		case age <= 7*24*time.Hour:
			recent++
		case age <= 14*24*time.Hour:
			prior++
		}
	}
	return recent, prior
}

func classifyTrend(recent, prior int) (string, float64) {
	recentAvg := float64(recent) / 7
	priorAvg := float64(prior) / 7

	if prior == 0 {
		if recent == 0 {
			return TrendStable, 0
		}
		return TrendImproving, 1
	}

	change := (recentAvg - priorAvg) / priorAvg
	strength := math.Min(math.Abs(change), 1)
	switch {
	case change > 0:
		return TrendImproving, strength
	case change < 0:
		return TrendDeclining, strength
	default:
		return TrendStable, 0
	}
}

// efficiencyScore blends completion rate, high-priority follow-through, a
// stall penalty and a flat bonus for having completed anything in the
// window at all into one 0-100 number. Owners with no high-priority
// tasks get that component for free rather than being punished for a
// calm backlog.
func efficiencyScore(rate float64, highTotal, highCompleted, stalled int, completedAny bool) int {
	base := rate * 40

	high := 30.0
	if highTotal > 0 {
		high = float64(highCompleted) / float64(highTotal) * 30
	}

	penalty := float64(stalled * stalledPenaltyPer)
	if penalty > stalledPenaltyCap {
		penalty = stalledPenaltyCap
	}

	bonus := 0.0
	if completedAny {
		bonus = consistencyBonus
	}

	score := int(math.Round(base + high - penalty + bonus))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ─── Narrated insights ───────────────────────────────────────────────────────

// Insights is the narrated companion to a Report.
type Insights struct {
	OverallAssessment         string   `json:"overall_assessment"`
	CoreInsights              []string `json:"core_insights"`
	ActionableRecommendations []string `json:"actionable_recommendations"`
	RiskAlerts                []string `json:"risk_alerts"`
	MotivationMessage         string   `json:"motivation_message"`
}

var insightsRequired = []string{
	"overall_assessment", "core_insights",
	"actionable_recommendations", "risk_alerts", "motivation_message",
}

// fallbackInsights satisfies the same contract as a model response and is
// returned whenever the completion path fails.
func fallbackInsights(r *Report) *Insights {
	assessment := fmt.Sprintf(
		"You completed %d of %d tasks in the last %d days (%.0f%%).",
		r.CompletedTasks, r.TotalTasks, r.WindowDays, r.CompletionRate*100)
	return &Insights{
		OverallAssessment: assessment,
		CoreInsights: []string{
			fmt.Sprintf("Your completion trend is %s.", r.Trend),
			fmt.Sprintf("%d task(s) have not moved in over a week.", r.StalledTasks),
		},
		ActionableRecommendations: []string{
			"Pick one stalled task and either finish a small piece of it or archive it.",
		},
		RiskAlerts:        riskAlerts(r),
		MotivationMessage: "Progress counts even when it is slow. Keep going.",
	}
}

func riskAlerts(r *Report) []string {
	var alerts []string
	if r.BottleneckScore >= 50 {
		alerts = append(alerts, "Several tasks are stuck; your backlog needs attention.")
	}
	if r.Trend == TrendDeclining {
		alerts = append(alerts, "Completions are slowing down compared to last week.")
	}
	if alerts == nil {
		alerts = []string{}
	}
	return alerts
}

const insightsPromptTemplate = `You are a supportive productivity coach. Here is a person's
progress report for the last %d days:

%s

Respond with a single JSON object, no other text:

{
  "overall_assessment": "two sentences on how things are going",
  "core_insights": ["2-4 observations grounded in the numbers"],
  "actionable_recommendations": ["2-3 concrete next steps"],
  "risk_alerts": ["0-2 warnings, empty list if none"],
  "motivation_message": "one encouraging sentence"
}`

// Insights narrates a report. Any failure on the completion path (no
// client, transport error, contract violation) yields the static
// fallback; the error is logged, never surfaced.
func (e *Engine) Insights(ctx context.Context, r *Report) *Insights {
	if e.ai == nil {
		return fallbackInsights(r)
	}

	raw, err := e.ai.Complete(ctx, fmt.Sprintf(insightsPromptTemplate, r.WindowDays, renderReport(r)))
	if err != nil {
		e.logger.Warn().Err(err).Msg("insight narration failed, using fallback")
		return fallbackInsights(r)
	}

	var out Insights
	if err := contract.Decode(raw, insightsRequired, &out); err != nil {
		e.logger.Warn().Err(err).Msg("insight narration violated its contract, using fallback")
		return fallbackInsights(r)
	}
	return &out
}

// renderReport flattens a report into the prompt body.
func renderReport(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tasks: %d total, %d completed, %d active, %d paused (%.0f%% completion)\n",
		r.TotalTasks, r.CompletedTasks, r.ActiveTasks, r.PausedTasks, r.CompletionRate*100)
	fmt.Fprintf(&b, "Stalled tasks: %d | Bottleneck score: %d/100 | Efficiency: %d/100\n",
		r.StalledTasks, r.BottleneckScore, r.EfficiencyScore)
	fmt.Fprintf(&b, "Trend: %s (strength %.2f)\n", r.Trend, r.TrendStrength)
	if r.CompletedTasks > 0 {
		fmt.Fprintf(&b, "Average days to complete: %.1f\n", r.AvgDaysToComplete)
	}
	for tag, bd := range r.ByTag {
		fmt.Fprintf(&b, "Area %q: %d/%d done\n", tag, bd.Completed, bd.Total)
	}
	return b.String()
}
