package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"svgdeck/internal/deck/builder"
	"svgdeck/internal/deck/source"
	"svgdeck/internal/errors"
)

type batchResult struct {
	project string
	summary *builder.Summary
	err     error
}

func newBatchCommand(cli *CLI) *cobra.Command {
	flags := &buildFlags{}
	var parallel int

	cmd := &cobra.Command{
		Use:   "batch <project-dir...>",
		Short: "Build several projects concurrently",
		Long: `Build one deck per project directory. Each deck is written to
<project>/<name>_<timestamp>.pptx. Builds are independent; a failing project
does not stop the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("parallel") {
				parallel = cli.cfg.Build.Parallel
			}
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1")
			}

			r, _, err := cli.rasterizer(flags.rasterizer)
			if err != nil {
				return err
			}
			b := cli.newBuilder(r)
			finder := source.NewFinder(cli.fs)
			stamp := time.Now().Format("20060102_150405")

			results := make([]batchResult, len(args))
			var mu sync.Mutex
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for i, dir := range args {
				g.Go(func() error {
					res := batchResult{project: dir}
					defer func() { results[i] = res }()

					project, err := finder.Find(dir, flags.sourceSelector(cli))
					if err != nil {
						res.err = err
						return nil
					}
					opts := flags.options(cli, cmd, project, source.DefaultOutput(project, stamp))
					res.summary, res.err = b.Build(ctx, opts)

					mu.Lock()
					defer mu.Unlock()
					cli.printf("%s %s\n", cli.styles.gray("finished"), dir)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				switch {
				case res.err != nil:
					failed++
					fmt.Fprintf(cli.stderr, "%s %s: %s\n", cli.styles.red("✗"), res.project, errors.FormatForUser(res.err))
				case !res.summary.OK():
					failed++
					cli.printf("%s %s: %d/%d slides -> %s\n", cli.styles.yellow("!"), res.project, res.summary.Succeeded, res.summary.Total, res.summary.OutputPath)
				default:
					cli.printf("%s %s: %s -> %s\n", cli.styles.green("✓"), res.project, plural(res.summary.Total, "slide"), res.summary.OutputPath)
				}
			}
			if err := cli.writeMetrics(flags.metricsFile); err != nil {
				return err
			}
			if failed > 0 {
				return &ExitCodeError{Code: 1, Err: fmt.Errorf("%s of %d failed", plural(failed, "project"), len(args))}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "Number of concurrent builds")
	return cmd
}
