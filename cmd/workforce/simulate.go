package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/workforce-engine/api"
	"github.com/warp/workforce-engine/telemetry"
	"github.com/warp/workforce-engine/workforce"
	"github.com/warp/workforce-engine/workforce/store"
)

// runReport is the outcome of one in-memory scenario run.
type runReport struct {
	Scenario     string                                   `json:"scenario"`
	Seed         string                                   `json:"seed"`
	Ticks        int64                                    `json:"ticks"`
	Digest       string                                   `json:"digest"`
	Headcount    int                                      `json:"headcount"`
	Rejected     int                                      `json:"rejected"`
	Dropped      int                                      `json:"dropped"`
	LedgerTotals map[workforce.LedgerKind]decimal.Decimal `json:"ledgerTotals"`
	KPIs         []tickKPI                                `json:"kpis"`
}

type tickKPI struct {
	Tick     int64                 `json:"tick"`
	KPI      workforce.KpiSnapshot `json:"kpi"`
	Warnings int                   `json:"warnings"`
}

func (a *app) simulateCmd() *cobra.Command {
	var (
		ticks  int
		every  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario in memory and print KPIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticks < 1 {
				return fmt.Errorf("--ticks must be >= 1")
			}
			if every < 1 {
				every = 1
			}
			report, err := a.run(cmd.Context(), ticks)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			renderReport(out, report, every)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&ticks, "ticks", 24*7, "number of ticks to run")
	f.IntVar(&every, "every", 24, "print one KPI row every N ticks")
	f.BoolVar(&asJSON, "json", false, "output JSON (every tick)")
	return cmd
}

// run loads the configured scenario into an in-memory store and steps it.
func (a *app) run(ctx context.Context, ticks int) (*runReport, error) {
	engine, err := a.engine()
	if err != nil {
		return nil, err
	}
	sc, err := a.scenario()
	if err != nil {
		return nil, err
	}

	var opts []api.SimOption
	opts = append(opts, api.WithSimLogger(a.log))
	if a.cfg.TelemetryDir != "" {
		jsonl := telemetry.NewJSONLWriter(a.cfg.TelemetryDir, sc.ID, engine.Tuning().TickHours)
		defer jsonl.Close()
		opts = append(opts, api.WithSink(jsonl))
	}
	sim := api.NewSimulation(engine, store.NewTxMemory(), opts...)
	if err := sim.Load(ctx, sc, a.cfg.Seed); err != nil {
		return nil, err
	}

	report := &runReport{Scenario: sc.ID, KPIs: make([]tickKPI, 0, ticks)}
	for i := 0; i < ticks; i++ {
		results, err := sim.Advance(ctx, 1)
		if err != nil {
			return nil, err
		}
		res := results[0]
		report.Rejected += len(res.Rejected)
		report.Dropped += len(res.Dropped)
		report.KPIs = append(report.KPIs, tickKPI{Tick: res.State.Tick, KPI: res.KPI, Warnings: len(res.Warnings)})
	}

	final, err := sim.State()
	if err != nil {
		return nil, err
	}
	digest, err := workforce.Digest(final)
	if err != nil {
		return nil, err
	}
	report.Seed = final.Seed
	report.Ticks = final.Tick
	report.Digest = digest
	report.Headcount = len(final.Employees)
	report.LedgerTotals = map[workforce.LedgerKind]decimal.Decimal{}
	for _, kind := range []workforce.LedgerKind{
		workforce.LedgerPayroll, workforce.LedgerScanCost, workforce.LedgerBonus, workforce.LedgerSeverance,
	} {
		report.LedgerTotals[kind] = workforce.LedgerTotal(final.Ledger, kind)
	}
	return report, nil
}

func renderReport(out io.Writer, r *runReport, every int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetTitle(fmt.Sprintf("%s (seed %s)", r.Scenario, r.Seed))
	tw.AppendHeader(table.Row{"Tick", "Done", "Queue", "Util", "P95 Wait h", "OT h", "Morale", "Fatigue", "Warnings"})
	for i, k := range r.KPIs {
		if (i+1)%every != 0 && i != len(r.KPIs)-1 {
			continue
		}
		tw.AppendRow(table.Row{
			k.Tick,
			k.KPI.TasksCompleted,
			k.KPI.QueueDepth,
			fmt.Sprintf("%.2f", k.KPI.Utilization),
			fmt.Sprintf("%.1f", k.KPI.P95WaitTimeHours),
			fmt.Sprintf("%.2f", k.KPI.OvertimeHoursCommitted),
			fmt.Sprintf("%.3f", k.KPI.AverageMorale),
			fmt.Sprintf("%.3f", k.KPI.AverageFatigue),
			k.Warnings,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	tw.Render()

	sw := table.NewWriter()
	sw.SetOutputMirror(out)
	sw.AppendHeader(table.Row{"Summary", "Value"})
	sw.AppendRow(table.Row{"Ticks", r.Ticks})
	sw.AppendRow(table.Row{"Headcount", r.Headcount})
	sw.AppendRow(table.Row{"Rejected intents", r.Rejected})
	sw.AppendRow(table.Row{"Dropped intents", r.Dropped})
	for _, kind := range []workforce.LedgerKind{
		workforce.LedgerPayroll, workforce.LedgerScanCost, workforce.LedgerBonus, workforce.LedgerSeverance,
	} {
		sw.AppendRow(table.Row{"Ledger " + string(kind), r.LedgerTotals[kind].StringFixed(2)})
	}
	sw.AppendRow(table.Row{"Digest", r.Digest})
	sw.Render()
}
