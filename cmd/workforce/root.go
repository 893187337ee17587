package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/warp/workforce-engine/config"
	"github.com/warp/workforce-engine/factory"
	"github.com/warp/workforce-engine/workforce"
)

// app carries resolved configuration from PersistentPreRunE to the
// subcommands.
type app struct {
	v          *viper.Viper
	configFile string

	cfg config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "workforce",
		Short: "Deterministic workforce simulation engine",
		Long: `workforce simulates a crew of employees working a task queue in
fixed-size ticks: priority and skill based assignment, daily time budgets
with overtime, payroll, raises, terminations and a hiring market.

Given the same seed, catalog, tuning and intents, every run produces
byte-identical state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(a.v, cmd); err != nil {
				return err
			}
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = cfg.Logger(cmd.ErrOrStderr())
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (YAML, JSON or TOML)")
	pf.String("scenario", "greenhouse-basic", "preset scenario id or path to a scenario file")
	pf.String("seed", "", "override the scenario seed")
	pf.String("catalog", "", "catalog file (default: built-in greenhouse catalog)")
	pf.String("tuning", "", "tuning file (default: built-in tuning)")
	pf.String("telemetry-dir", "", "write zstd JSONL event logs to this directory")
	pf.String("log.level", "info", "log level: debug, info, warn, error")
	pf.String("log.format", "text", "log format: text or json")

	root.AddCommand(a.serveCmd(), a.simulateCmd(), a.digestCmd(), a.scenariosCmd())
	return root
}

// engine builds an engine from the configured catalog and tuning.
func (a *app) engine() (*workforce.Engine, error) {
	cat := factory.GreenhouseCatalog()
	if a.cfg.CatalogPath != "" {
		loaded, err := factory.LoadCatalog(a.cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}

	tuning := workforce.DefaultTuning()
	if a.cfg.TuningPath != "" {
		loaded, err := workforce.LoadTuning(a.cfg.TuningPath)
		if err != nil {
			return nil, err
		}
		tuning = loaded
	}

	return workforce.NewEngine(cat, tuning, workforce.WithLogger(a.log))
}

// scenario resolves --scenario as a preset id first, then as a file.
func (a *app) scenario() (factory.Scenario, error) {
	name := a.cfg.Scenario
	if sc, ok := factory.Lookup(name); ok {
		return sc, nil
	}
	if _, err := os.Stat(name); err == nil {
		return factory.LoadScenario(name)
	}
	return factory.Scenario{}, fmt.Errorf("unknown scenario %q", name)
}
