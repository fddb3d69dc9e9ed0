package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/storyforge/internal/server"
	"github.com/kingrea/storyforge/internal/tui"
	"github.com/kingrea/storyforge/internal/watch"
	"github.com/kingrea/storyforge/internal/workflow/engine"
)

const journalTail = 10

func stagesCmd(global *globalFlags) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List the configured stages in pipeline order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(global, "", nil, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if asYAML {
				data, err := a.cfg.Marshal()
				if err != nil {
					return fmt.Errorf("render config: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderStages(a.pipeline))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the effective configuration (defaults applied) as YAML")
	return cmd
}

func statusCmd(global *globalFlags) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last run and the journal tail",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(global, "", nil, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			state, err := a.engine.View()
			if errors.Is(err, engine.ErrStateNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded yet")
				return nil
			}
			if err != nil {
				return err
			}
			lines, total := a.journal.Tail(journalTail)
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderState(state, lines, total))
			if !verify {
				return nil
			}
			drifts, err := a.engine.Verify()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderDrift(drifts))
			if len(drifts) > 0 {
				return fmt.Errorf("%d recorded output(s) changed since they were written", len(drifts))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "re-digest every recorded output")
	return cmd
}

func watchCmd(global *globalFlags) *cobra.Command {
	var (
		stageName string
		listen    string
		debounce  time.Duration
		flags     runFlags
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run a stage whenever its source directory changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(global, stageName, flags.sets, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			ref, ok := a.pipeline.Lookup(stageName)
			if !ok {
				return fmt.Errorf("unknown stage %q", stageName)
			}
			def := ref.Definition
			codec := def.Codec()
			prefix := codec.NormalizePrefix(def.InputPrefix) + codec.Separator
			w := watch.New(def.SourceDir,
				watch.WithDebounce(debounce),
				watch.WithLogger(a.logger.Logger),
				watch.WithFilter(func(name string) bool { return strings.HasPrefix(name, prefix) }),
			)
			if listen != "" {
				srv, err := a.statusServer(cmd.Context(), listen)
				if err != nil {
					return err
				}
				defer srv.Shutdown(context.Background())
				fmt.Fprintf(cmd.OutOrStdout(), "status on %s\n", srv.BaseURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watching %s for %s changes (ctrl+c to stop)\n", def.SourceDir, prefix+"*")
			return w.Run(cmd.Context(), func(ctx context.Context) error {
				report, err := a.engine.RunStage(ctx, def.Name, flags.options())
				fmt.Fprintln(cmd.OutOrStdout(), engine.Summary(report))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&stageName, "stage", "s", "", "stage (config section) to watch")
	cmd.Flags().VarP(&flags.sets, "set", "S", "override a stage key (key=value, repeatable)")
	cmd.Flags().StringVar(&listen, "listen", "", "serve /health, /metrics and /state on this address (e.g. :9464)")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before re-running")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "parallel artifacts (default from config)")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}

// statusServer starts the read-only status endpoint backed by the app's
// metrics registry and run state.
func (a *app) statusServer(ctx context.Context, listen string) (*server.Server, error) {
	srv := server.New(server.ParseAddress(listen),
		server.WithGatherer(a.metrics.Registry()),
		server.WithLogger(a.logger.Logger),
		server.WithState(func() (any, bool, error) {
			state, err := a.engine.View()
			if errors.Is(err, engine.ErrStateNotFound) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			return state, true, nil
		}),
	)
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}
