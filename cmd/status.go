package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zjrosen/pipewatch/internal/pipeline"
	"github.com/zjrosen/pipewatch/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print pipeline state, metrics, and recent leads once",
	Long: `Read the pipeline status, metrics, leads, and logs once and print them.
The CSV export links for leads and messages are listed at the end.`,
	RunE: runStatus,
}

var statusLeads int

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVar(&statusLeads, "leads", 10, "number of leads to print (0 for none)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if cfgErr != nil {
		return cfgErr
	}
	sess, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), shutdownTimeout)
	defer cancel()
	if err := sess.monitor.Fetcher().Bootstrap(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printStatus(out, sess.monitor.Store().Snapshot(), statusLeads)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Export leads:    %s\n", sess.client.URL("/export/leads", nil))
	fmt.Fprintf(out, "Export messages: %s\n", sess.client.URL("/export/messages", nil))
	return nil
}

// printStatus writes a plain-text rendering of snap.
func printStatus(w io.Writer, snap store.Snapshot, maxLeads int) {
	st := snap.Pipeline
	state := "idle"
	if st.Running {
		state = "running"
		if id, ok := st.ActiveStage(); ok {
			state += " (" + string(id) + ")"
		}
	}
	fmt.Fprintf(w, "Pipeline: %s\n", state)

	for _, id := range pipeline.Stages {
		p := st.Stage(id)
		line := fmt.Sprintf("  %-9s %-8s %d", id, p.Status, p.Count)
		if p.Sent != nil || p.Failed != nil {
			line += fmt.Sprintf("  sent=%d failed=%d", deref(p.Sent), deref(p.Failed))
		}
		fmt.Fprintln(w, line)
	}

	counts := make([]string, 0, len(pipeline.LeadStatuses))
	for _, s := range pipeline.LeadStatuses {
		counts = append(counts, fmt.Sprintf("%s=%d", s, snap.Metrics.Count(s)))
	}
	fmt.Fprintf(w, "Leads: %d total  %s\n", snap.Metrics.Total, strings.Join(counts, " "))

	leads := pipeline.DedupeLeads(snap.Leads)
	if maxLeads <= 0 || len(leads) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tSTATUS")
	for i, l := range leads {
		if i == maxLeads {
			break
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", l.ID, l.Name, l.Company, l.Status)
	}
	_ = tw.Flush()
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
