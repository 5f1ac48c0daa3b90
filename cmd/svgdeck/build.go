package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"svgdeck/internal/deck/builder"
	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/raster"
	"svgdeck/internal/deck/slidexml"
	"svgdeck/internal/deck/source"
)

// buildFlags are the flags shared by build and batch.
type buildFlags struct {
	source             string
	format             string
	width              int
	height             int
	noCompat           bool
	transition         string
	transitionDuration float64
	autoAdvance        float64
	noNotes            bool
	notesDir           string
	rasterizer         string
	relIDs             string
	metricsFile        string
}

func (f *buildFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.source, "source", "s", "", "Slide directory: output (svg_output), final (svg_final) or any subdirectory")
	flags.StringVarP(&f.format, "format", "f", "", "Canvas preset (see 'svgdeck presets')")
	flags.IntVar(&f.width, "width", 0, "Canvas width in pixels (with --height)")
	flags.IntVar(&f.height, "height", 0, "Canvas height in pixels (with --width)")
	flags.BoolVar(&f.noCompat, "no-compat", false, "Embed SVG only, without PNG fallbacks")
	flags.StringVarP(&f.transition, "transition", "t", "", "Slide transition: "+joinEffects())
	flags.Float64Var(&f.transitionDuration, "transition-duration", slidexml.DefaultTransitionDuration, "Transition duration in seconds")
	flags.Float64Var(&f.autoAdvance, "auto-advance", 0, "Advance to the next slide after this many seconds")
	flags.BoolVar(&f.noNotes, "no-notes", false, "Do not embed speaker notes")
	flags.StringVar(&f.notesDir, "notes-dir", "", "Notes directory (default: <project>/notes)")
	flags.StringVar(&f.rasterizer, "rasterizer", "", "PNG backend: auto, native, command or none")
	flags.StringVar(&f.relIDs, "rel-ids", "", "Notes relationship ids: sequential or legacy")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "Write build metrics in prometheus text format to this file")
}

func joinEffects() string {
	return strings.Join(slidexml.Effects(), ", ")
}

// options merges config defaults with the flags the user actually set.
func (f *buildFlags) options(cli *CLI, cmd *cobra.Command, project source.Project, output string) builder.Options {
	d := cli.cfg.Build
	changed := cmd.Flags().Changed

	opts := builder.Options{
		Slides:             project.Slides,
		OutputPath:         output,
		Canvas:             canvas.Request{Preset: f.format, Width: f.width, Height: f.height},
		Compat:             d.Compat && !f.noCompat,
		Notes:              d.Notes && !f.noNotes,
		NotesDir:           project.NotesDir,
		NotesLanguage:      d.NotesLanguage,
		RelIDs:             d.RelIDs,
		Transition:         d.Transition,
		TransitionDuration: d.TransitionDuration,
		Title:              project.Name(),
	}
	// A configured default other than ppt169 wins over detection.
	if opts.Canvas.Preset == "" && opts.Canvas.Width == 0 && opts.Canvas.Height == 0 && cli.cfg.Canvas.Format != canvas.DefaultPreset {
		opts.Canvas.Preset = cli.cfg.Canvas.Format
	}
	if f.notesDir != "" {
		opts.NotesDir = f.notesDir
	}
	if changed("transition") {
		opts.Transition = f.transition
	}
	if changed("transition-duration") {
		opts.TransitionDuration = f.transitionDuration
	}
	if changed("auto-advance") {
		adv := f.autoAdvance
		opts.AutoAdvance = &adv
	}
	if f.relIDs != "" {
		opts.RelIDs = f.relIDs
	}
	return opts
}

func (f *buildFlags) sourceSelector(cli *CLI) string {
	if f.source != "" {
		return f.source
	}
	return cli.cfg.Build.Source
}

func newBuildCommand(cli *CLI) *cobra.Command {
	flags := &buildFlags{}
	var output string

	cmd := &cobra.Command{
		Use:   "build <project-dir | slide.svg...>",
		Short: "Build one deck",
		Long: `Build a .pptx from a project directory or an explicit list of SVG files.

A project directory is searched for slides in svg_output (or the directory
named by --source), then in the directory itself. Notes are read from
<project>/notes/*.md.

Examples:
  svgdeck build ./quarterly
  svgdeck build ./quarterly -s final -t fade -o deck.pptx
  svgdeck build a.svg b.svg --format ppt43 --no-compat`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := source.NewFinder(cli.fs).Expand(args, flags.sourceSelector(cli))
			if err != nil {
				return err
			}
			if output == "" {
				output = source.DefaultOutput(project, time.Now().Format("20060102_150405"))
			}

			opts := flags.options(cli, cmd, project, output)
			var r raster.Rasterizer
			if opts.Compat {
				if r, _, err = cli.rasterizer(flags.rasterizer); err != nil {
					return err
				}
			}

			cli.printf("%s %d slide(s) from %s\n", cli.styles.bold("Building"), len(project.Slides), project.SlideDir)
			summary, err := cli.newBuilder(r).Build(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if !cli.quiet {
				writeSummary(cli.stdout, cli.styles, summary)
			}
			if err := cli.writeMetrics(flags.metricsFile); err != nil {
				return err
			}
			if !summary.OK() {
				return &ExitCodeError{Code: 1}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <project>/<name>_<timestamp>.pptx)")
	return cmd
}

func (cli *CLI) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := cli.metrics.WriteTextfile(path); err != nil {
		return err
	}
	if cli.metrics.Gatherer() == nil {
		cli.logger.Warn("metrics are disabled; %s was not written", path)
	}
	return nil
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
