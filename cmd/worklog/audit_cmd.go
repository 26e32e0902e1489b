package main

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/fentz26/worklog/internal/models"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit [subject-id]",
	Short: "Show decision records for a task, edge or time-log entry (admin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	var entries []models.PDREntry
	if err := apiGet("/audit?subject="+url.QueryEscape(args[0]), &entries); err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No decision records found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tACTOR\tINPUTS\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action,
			e.Outcome, e.ActorID, truncateID(e.InputsHash), truncate(e.Details, 40))
	}
	w.Flush()
	return nil
}
