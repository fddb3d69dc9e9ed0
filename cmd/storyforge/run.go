package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kingrea/storyforge/internal/stage"
	"github.com/kingrea/storyforge/internal/tui"
)

func addRunFlags(cmd *cobra.Command, flags *runFlags) {
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "parallel artifacts per stage (default from config)")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "regenerate outputs that already exist")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "run against an in-memory copy and write nothing")
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "show a live progress display")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "write prometheus metrics to this file after the run")
}

func runCmd(global *globalFlags) *cobra.Command {
	var (
		stageName string
		flags     runFlags
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single stage",
		Example: `  storyforge run --stage paragraph
  storyforge run -c story.ini --stage scenes --set split=sentences --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(global, stageName, flags.sets, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			var report stage.Report
			runErr := a.execute(cmd, flags, "stage "+stageName, func(ctx context.Context) error {
				var err error
				report, err = a.engine.RunStage(ctx, stageName, flags.options())
				return err
			})
			if report.Stage != "" {
				fmt.Fprintln(cmd.OutOrStdout(), tui.RenderReport(report))
			}
			return errors.Join(runErr, a.writeMetrics(flags.metricsFile))
		},
	}
	cmd.Flags().StringVarP(&stageName, "stage", "s", "", "stage (config section) to run")
	cmd.Flags().VarP(&flags.sets, "set", "S", "override a stage key (key=value, repeatable)")
	_ = cmd.MarkFlagRequired("stage")
	addRunFlags(cmd, &flags)
	return cmd
}

func pipelineCmd(global *globalFlags) *cobra.Command {
	var (
		from, to string
		flags    runFlags
	)
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run stages in order, stopping at the first failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(global, "", nil, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			var reports []stage.Report
			runErr := a.execute(cmd, flags, "pipeline", func(ctx context.Context) error {
				var err error
				reports, err = a.engine.RunPipeline(ctx, from, to, flags.options())
				return err
			})
			if len(reports) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), tui.RenderReports(reports))
			}
			return errors.Join(runErr, a.writeMetrics(flags.metricsFile))
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first stage to run (default: first in config)")
	cmd.Flags().StringVar(&to, "to", "", "last stage to run (default: last in config)")
	addRunFlags(cmd, &flags)
	return cmd
}

// execute runs work directly, or under the progress display when asked for
// and stdout is a terminal.
func (a *app) execute(cmd *cobra.Command, flags runFlags, title string, work func(ctx context.Context) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if !flags.progress || !isTerminal(cmd.OutOrStdout()) {
		return work(ctx)
	}
	return tui.Run(ctx, title, cmd.InOrStdin(), cmd.ErrOrStderr(), func(ctx context.Context, observer stage.Observer) error {
		detach := a.relay.attach(observer)
		defer detach()
		return work(ctx)
	})
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
