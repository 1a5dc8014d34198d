package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/pipewatch/internal/log"
	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/pubsub"
	"github.com/zjrosen/pipewatch/internal/store"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the pipeline without the TUI",
	Long: `Connect like the dashboard does and print one line per state change,
notice, and connection change until interrupted. Warnings go to stderr.`,
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, _ []string) error {
	if cfgErr != nil {
		return cfgErr
	}
	if debugFlag {
		log.InitWithWriter(cmd.ErrOrStderr(), log.LevelDebug)
	} else {
		log.InitWithWriter(cmd.ErrOrStderr(), log.LevelWarn)
	}

	sess, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := sess.monitor.Store()
	states := s.Subscribe(ctx)
	notices := s.Notices(ctx)
	sess.monitor.Start(ctx)

	return follow(ctx, cmd.OutOrStdout(), states, notices)
}

// follow prints events until ctx ends or both channels close.
func follow(ctx context.Context, w io.Writer, states <-chan pubsub.Event[store.Snapshot], notices <-chan pubsub.Event[pipeline.Notice]) error {
	for states != nil || notices != nil {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			fmt.Fprintln(w, formatState(ev))
		case ev, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			fmt.Fprintf(w, "notice %s: %s\n", ev.Payload.Kind, ev.Payload.Text)
		}
	}
	return nil
}

func formatState(ev pubsub.Event[store.Snapshot]) string {
	snap := ev.Payload
	if ev.Type == pubsub.ConnectionEvent {
		if snap.Connected {
			return "connection live"
		}
		return "connection lost"
	}

	st := snap.Pipeline
	stage := "-"
	if id, ok := st.ActiveStage(); ok {
		stage = string(id)
	}
	progress := make([]string, 0, len(pipeline.Stages))
	for _, id := range pipeline.Stages {
		p := st.Stage(id)
		progress = append(progress, fmt.Sprintf("%s=%s/%d", id, p.Status, p.Count))
	}
	return fmt.Sprintf("state seq=%d running=%t stage=%s %s total=%d sent=%d failed=%d",
		snap.Seq, st.Running, stage, strings.Join(progress, " "),
		snap.Metrics.Total, snap.Metrics.Count(pipeline.LeadSent), snap.Metrics.Count(pipeline.LeadFailed))
}
