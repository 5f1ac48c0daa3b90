package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"svgdeck/internal/config"
	"svgdeck/internal/deck/builder"
	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/raster"
	"svgdeck/internal/logging"
	"svgdeck/internal/observability"
)

// CLI holds state shared by every subcommand.
type CLI struct {
	stdout io.Writer
	stderr io.Writer
	styles styles

	fs         afero.Fs
	configFile string
	logLevel   string
	quiet      bool

	cfg     config.Config
	logger  logging.Logger
	metrics *observability.MetricsCollector
	tracer  *observability.TracerProvider
	presets *canvas.PresetLibrary
}

// NewCLI creates a CLI writing to stdout and stderr.
func NewCLI(stdout, stderr io.Writer) *CLI {
	return &CLI{
		stdout: stdout,
		stderr: stderr,
		styles: newStyles(stdout),
		fs:     afero.NewOsFs(),
		logger: logging.Nop(),
	}
}

// Execute runs the command line.
func (cli *CLI) Execute(args []string) error {
	root := cli.newRootCommand()
	root.SetArgs(args)
	root.SetOut(cli.stdout)
	root.SetErr(cli.stderr)
	return root.Execute()
}

func (cli *CLI) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "svgdeck",
		Short:         "Build PowerPoint decks from SVG slides",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.initialize()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.shutdown(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&cli.configFile, "config", "", "Config file (default: ./svgdeck.yaml or $HOME/.svgdeck/svgdeck.yaml)")
	root.PersistentFlags().StringVar(&cli.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVarP(&cli.quiet, "quiet", "q", false, "Only print errors")

	root.AddCommand(newBuildCommand(cli))
	root.AddCommand(newBatchCommand(cli))
	root.AddCommand(newPresetsCommand(cli))
	root.AddCommand(newServeCommand(cli))
	return root
}

// initialize loads configuration and the observability stack.
func (cli *CLI) initialize() error {
	opts := []config.Option{config.WithFs(cli.fs)}
	if cli.configFile != "" {
		opts = append(opts, config.WithFile(cli.configFile))
	}
	cfg, used, err := config.Load(opts...)
	if err != nil {
		return err
	}
	if cli.logLevel != "" {
		cfg.Observability.Logging.Level = cli.logLevel
	}
	if cli.quiet && cli.logLevel == "" {
		cfg.Observability.Logging.Level = "error"
	}
	cli.cfg = cfg

	base := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cli.stderr,
	})
	logging.SetDefault(base)
	cli.logger = logging.NewComponentLogger("cli")
	if used != "" {
		cli.logger.Debug("loaded config from %s", used)
	}

	cli.metrics, err = observability.NewMetricsCollector(cfg.Observability.Metrics)
	if err != nil {
		return err
	}
	cli.tracer, err = observability.NewTracerProvider(cfg.Observability.Tracing)
	if err != nil {
		return err
	}

	cli.presets = canvas.BuiltinPresets()
	if cfg.Canvas.PresetsFile != "" {
		extra, err := canvas.LoadPresetFile(cli.fs, cfg.Canvas.PresetsFile)
		if err != nil {
			return err
		}
		cli.presets = cli.presets.Merge(extra)
	}
	return nil
}

func (cli *CLI) shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cli.tracer.Shutdown(ctx); err != nil {
		cli.logger.Warn("tracer shutdown: %v", err)
	}
	return cli.metrics.Shutdown(ctx)
}

// rasterizer probes the configured backend; backend overrides the config
// when non-empty.
func (cli *CLI) rasterizer(backend string) (raster.Rasterizer, raster.Backend, error) {
	cfg := cli.cfg.Rasterizer
	if backend != "" {
		cfg.Backend = backend
	}
	return raster.Probe(cfg, cli.metrics, logging.NewComponentLogger("raster"))
}

func (cli *CLI) newBuilder(r raster.Rasterizer) *builder.Builder {
	return builder.New(builder.Config{
		Fs:         cli.fs,
		Rasterizer: r,
		Presets:    cli.presets,
		WorkDir:    cli.cfg.Build.WorkDir,
		Logger:     logging.NewComponentLogger("builder"),
		Metrics:    cli.metrics,
		Tracer:     cli.tracer,
	})
}

func (cli *CLI) printf(format string, args ...any) {
	if cli.quiet {
		return
	}
	fmt.Fprintf(cli.stdout, format, args...)
}
