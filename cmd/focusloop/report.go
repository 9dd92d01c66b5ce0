package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/focusloop/focusloop/internal/completion"
	"github.com/focusloop/focusloop/internal/insight"
	"github.com/focusloop/focusloop/internal/tracker"
)

func newReportCmd() *cobra.Command {
	var (
		ownerID    int64
		windowDays int
		narrated   bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a progress report to the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			store, err := tracker.New(tracker.Config{DataDir: cfg.DataDir})
			if err != nil {
				return fmt.Errorf("opening tracker store: %w", err)
			}
			defer store.Close()

			var ai completion.Client
			if narrated {
				client, err := completion.NewOpenRouter(completion.Config{
					APIKey:  cfg.AI.APIKey,
					Model:   cfg.AI.Model,
					BaseURL: cfg.AI.BaseURL,
					Timeout: time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
				}, logger)
				if err == nil {
					ai = client
				}
			}

			engine := insight.New(store, ai, logger)
			report, err := engine.Analyze(ownerID, windowDays)
			if err != nil {
				return err
			}

			renderReportTables(report)

			if narrated {
				ins := engine.Insights(context.Background(), report)
				fmt.Println()
				fmt.Println(ins.OverallAssessment)
				for _, s := range ins.CoreInsights {
					fmt.Printf("  - %s\n", s)
				}
				for _, s := range ins.ActionableRecommendations {
					fmt.Printf("  > %s\n", s)
				}
				fmt.Println()
				fmt.Println(ins.MotivationMessage)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 0, "Owner scope (0 for anonymous)")
	cmd.Flags().IntVar(&windowDays, "days", 30, "Analysis window in days")
	cmd.Flags().BoolVar(&narrated, "insights", false, "Add AI-narrated insights")

	return cmd
}

func renderReportTables(r *insight.Report) {
	summary := table.NewWriter()
	summary.SetOutputMirror(os.Stdout)
	summary.SetStyle(table.StyleLight)
	summary.SetTitle(fmt.Sprintf("Progress, last %d days", r.WindowDays))
	summary.AppendRows([]table.Row{
		{"Total tasks", r.TotalTasks},
		{"Completed", r.CompletedTasks},
		{"Active", r.ActiveTasks},
		{"Paused", r.PausedTasks},
		{"Completion rate", fmt.Sprintf("%.0f%%", r.CompletionRate*100)},
		{"Stalled (7+ days idle)", r.StalledTasks},
		{"Bottleneck score", fmt.Sprintf("%d/100", r.BottleneckScore)},
		{"Efficiency score", fmt.Sprintf("%d/100", r.EfficiencyScore)},
		{"Trend", fmt.Sprintf("%s (%.2f)", r.Trend, r.TrendStrength)},
	})
	if r.CompletedTasks > 0 {
		summary.AppendRow(table.Row{"Avg days to complete", fmt.Sprintf("%.1f", r.AvgDaysToComplete)})
	}
	summary.Render()

	if len(r.ByTag) > 0 {
		tags := table.NewWriter()
		tags.SetOutputMirror(os.Stdout)
		tags.SetStyle(table.StyleLight)
		tags.AppendHeader(table.Row{"Life area", "Done", "Total", "Rate"})
		keys := make([]string, 0, len(r.ByTag))
		for k := range r.ByTag {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b := r.ByTag[k]
			tags.AppendRow(table.Row{k, b.Completed, b.Total, fmt.Sprintf("%.0f%%", b.Rate*100)})
		}
		tags.Render()
	}
}
