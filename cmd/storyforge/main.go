// Command storyforge runs hierarchical text pipelines: each configured stage
// expands, splits or merges the numbered artifacts of the previous one.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	appName = "storyforge"
	Version = "0.3.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Hierarchical artifact pipeline",
		Long: `storyforge turns a directory of numbered text artifacts into the next
level of a story, one configured stage at a time. A stage expands every
artifact through a generation backend, splits each one into children, or
merges sibling groups back into their parent. All structure lives in the
file names (rundown_02.txt -> scenes_02_01.txt ...), so any stage can be
re-run and resumes where it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfigPath, "pipeline config (INI, or YAML for .yaml/.yml)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "console log level (debug, info, warn, error)")

	cmd.AddCommand(
		runCmd(flags),
		pipelineCmd(flags),
		stagesCmd(flags),
		statusCmd(flags),
		watchCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}
