package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/pipewatch/internal/command"
	"github.com/zjrosen/pipewatch/internal/monitor"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a pipeline run",
	Long: `Ask the service to start a run. Options default to the start section of
the config file, which is updated with the options of every accepted start.

Example:
  pipewatch start                     # use saved options
  pipewatch start --count 50 --dry-run=false`,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the current run",
	RunE:  runStop,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear every lead, message, and log on the service",
	RunE:  runReset,
}

var resetYes bool

func init() {
	rootCmd.AddCommand(startCmd, stopCmd, resetCmd)

	startCmd.Flags().Int("count", 0, "number of leads to generate (1-500, default from config)")
	startCmd.Flags().Bool("dry-run", false, "simulate sending (default from config)")
	startCmd.Flags().Bool("ai-mode", false, "generate messages with the model (default from config)")

	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
}

func runStart(cmd *cobra.Command, _ []string) error {
	opts := startOptions(cfg.Start)
	if cmd.Flags().Changed("count") {
		n, _ := cmd.Flags().GetInt("count")
		opts.Count = command.ClampCount(n)
	}
	if cmd.Flags().Changed("dry-run") {
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}
	if cmd.Flags().Changed("ai-mode") {
		opts.AIMode, _ = cmd.Flags().GetBool("ai-mode")
	}

	return withCommands(cmd, func(ctx context.Context, d *command.Dispatcher) error {
		if err := d.Start(ctx, opts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pipeline started: count=%d dry_run=%t ai_mode=%t\n",
			opts.Count, opts.DryRun, opts.AIMode)
		return nil
	}, monitor.WithStartHook(rememberStartOptions(configPath)))
}

func runStop(cmd *cobra.Command, _ []string) error {
	return withCommands(cmd, func(ctx context.Context, d *command.Dispatcher) error {
		if err := d.Stop(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Pipeline stopped")
		return nil
	})
}

func runReset(cmd *cobra.Command, _ []string) error {
	confirm := command.AlwaysConfirm
	if !resetYes {
		confirm = promptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return withCommands(cmd, func(ctx context.Context, d *command.Dispatcher) error {
		err := d.Reset(ctx, confirm)
		if errors.Is(err, command.ErrNotConfirmed) {
			fmt.Fprintln(cmd.OutOrStdout(), "Reset cancelled")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Pipeline reset")
		return nil
	})
}

// withCommands runs fn against a dispatcher backed by a fresh, unstarted session.
func withCommands(cmd *cobra.Command, fn func(ctx context.Context, d *command.Dispatcher) error, opts ...monitor.Option) error {
	if cfgErr != nil {
		return cfgErr
	}
	cleanupLog, err := initLogging("pipewatch-" + cmd.Name())
	if err != nil {
		return err
	}
	defer cleanupLog()

	sess, err := newSession(cfg, opts...)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(cmd.Context(), sess.monitor.Commands())
}

// promptConfirmer asks on out and reads a y/N answer from in.
func promptConfirmer(in io.Reader, out io.Writer) command.Confirmer {
	return command.ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		fmt.Fprintf(out, "%s [y/N] ", prompt)
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	})
}
