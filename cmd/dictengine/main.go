package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"dictengine/pkg/checkpoint"
	"dictengine/pkg/config"
	"dictengine/pkg/database"
	"dictengine/pkg/logging"
	"dictengine/pkg/primitives"
	"dictengine/pkg/scenario"
	"dictengine/pkg/ui"
)

var rootCmd = &cobra.Command{
	Use:   "dictengine",
	Short: "Schema dependency and cursor engine",
	Long:  `Runs DDL, DML and cursor scenarios against an in-memory data dictionary and inspects the catalog checkpoints it writes.`,
}

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>...",
	Short: "Run scenario files against one database",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScenarios,
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the tables, dependencies and definitions of a checkpoint",
	RunE:  runDescribe,
}

var (
	configPath     string
	checkpointPath string
	verbose        bool
	keepGoing      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint file (overrides the configuration)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	runCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue with the next scenario after a failure")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(describeCmd)

	cobra.OnInitialize(func() {
		rootCmd.SilenceUsage = true
		rootCmd.SilenceErrors = true
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	if checkpointPath != "" {
		cfg.Checkpoint.Path = checkpointPath
	}
	if verbose {
		cfg.Logging.Level = string(logging.LevelDebug)
	}
	if err := logging.Init(cfg.LoggingConfig()); err != nil {
		return nil, fmt.Errorf("cannot init logging: %w", err)
	}
	return cfg, nil
}

func runScenarios(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	renderer := ui.NewRenderer(os.Stdout)
	runner := scenario.NewRunner(db, renderer)
	defer func() {
		err = multierr.Combine(err, runner.Close(), db.Close())
	}()

	var failed error
	for _, path := range args {
		sc, err := scenario.Load(path)
		if err != nil {
			return err
		}
		name := sc.Name
		if name == "" {
			name = path
		}
		renderer.Title(name)
		if err := runner.Run(ctx, sc); err != nil {
			failed = multierr.Append(failed, fmt.Errorf("%s: %w", path, err))
			if !keepGoing {
				break
			}
		}
	}

	if err := db.Checkpoint(ctx); err != nil {
		failed = multierr.Append(failed, err)
	}
	renderer.Info(db.Info())
	return failed
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	if cfg.Checkpoint.Path == "" {
		return fmt.Errorf("no checkpoint file: set checkpoint.path or pass --checkpoint")
	}
	if !primitives.Filepath(cfg.Checkpoint.Path).Exists() {
		return fmt.Errorf("checkpoint %s does not exist", cfg.Checkpoint.Path)
	}
	reader, err := checkpoint.Open(cfg.Checkpoint.Path)
	if err != nil {
		return err
	}
	defer reader.Close()

	return describe(cmd.Context(), reader, ui.NewRenderer(os.Stdout))
}

func describe(ctx context.Context, reader *checkpoint.Writer, r *ui.Renderer) error {
	gen, ok, err := reader.LastGeneration(ctx)
	if err != nil {
		return err
	}
	if !ok {
		r.Title(reader.Path() + " (empty)")
		return nil
	}
	r.Title(fmt.Sprintf("%s at generation %d", reader.Path(), gen))

	tables, err := reader.Tables(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, len(tables))
	for i, t := range tables {
		rows[i] = []string{t.Schema, t.Name, t.Type, fmt.Sprint(t.Columns), fmt.Sprint(t.Generation)}
	}
	r.Section("Tables", []string{"SCHEMA", "NAME", "TYPE", "COLUMNS", "GENERATION"}, rows)

	deps, err := reader.Depends(ctx)
	if err != nil {
		return err
	}
	rows = make([][]string, len(deps))
	for i, d := range deps {
		rows[i] = []string{d.DependentType, d.DependentID, d.ProviderType, d.ProviderID, fmt.Sprint(d.Usage)}
	}
	r.Section("Dependencies", []string{"DEPENDENT", "ID", "PROVIDER", "ID", "USAGE"}, rows)

	defs, err := reader.Definitions(ctx)
	if err != nil {
		return err
	}
	rows = make([][]string, len(defs))
	for i, d := range defs {
		rows[i] = []string{d.Kind, d.Schema, d.Name}
	}
	r.Section("Definitions", []string{"KIND", "SCHEMA", "NAME"}, rows)
	for _, d := range defs {
		r.Definition(fmt.Sprintf("%s %s.%s", d.Kind, d.Schema, d.Name), d.Text)
	}
	return nil
}
