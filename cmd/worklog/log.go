package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/worklog/internal/models"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect and correct time-log entries",
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List time-log entries",
	RunE:  runLogList,
}

var logShowCmd = &cobra.Command{
	Use:   "show [time-log-id]",
	Short: "Show an entry with its edit history",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogShow,
}

var logAddCmd = &cobra.Command{
	Use:   "add [description]",
	Short: "Record a closed entry after the fact",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLogAdd,
}

var logEditCmd = &cobra.Command{
	Use:   "edit [time-log-id]",
	Short: "Correct an entry (the previous values are kept in its history)",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogEdit,
}

var logRmCmd = &cobra.Command{
	Use:   "rm [time-log-id]",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogRm,
}

var logApproveCmd = &cobra.Command{
	Use:   "approve [time-log-id]",
	Short: "Approve an entry for invoicing (admin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogApprove,
}

var logVerifyCmd = &cobra.Command{
	Use:   "verify [time-log-id]",
	Short: "Check an entry's edit history for tampering",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogVerify,
}

var (
	logFrom        string
	logTo          string
	logFor         string
	logStart       string
	logEnd         string
	logTask        string
	logProject     string
	logDesc        string
	logInvoiceable bool
)

func init() {
	logCmd.AddCommand(logListCmd, logShowCmd, logAddCmd, logEditCmd, logRmCmd, logApproveCmd, logVerifyCmd)

	logListCmd.Flags().StringVar(&logFrom, "from", "", "Only entries starting at or after this time")
	logListCmd.Flags().StringVar(&logTo, "to", "", "Only entries starting at or before this time")
	logListCmd.Flags().StringVar(&logFor, "for", "", "User whose entries to list (admin)")

	logAddCmd.Flags().StringVar(&logStart, "start", "", "Start time (required)")
	logAddCmd.Flags().StringVar(&logEnd, "end", "", "End time (required)")
	logAddCmd.Flags().StringVar(&logTask, "task", "", "Task ID")
	logAddCmd.Flags().StringVar(&logProject, "project", "", "Project ID")
	logAddCmd.Flags().BoolVar(&logInvoiceable, "invoiceable", false, "Include in the next invoice")
	logAddCmd.MarkFlagRequired("start")
	logAddCmd.MarkFlagRequired("end")

	logEditCmd.Flags().StringVar(&logStart, "start", "", "New start time")
	logEditCmd.Flags().StringVar(&logEnd, "end", "", "New end time")
	logEditCmd.Flags().StringVar(&logDesc, "desc", "", "New description")
	logEditCmd.Flags().StringVar(&logTask, "task", "", "New task ID")
	logEditCmd.Flags().StringVar(&logProject, "project", "", "New project ID")
	logEditCmd.Flags().BoolVar(&logInvoiceable, "invoiceable", false, "Include in the next invoice")
}

func runLogList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	for name, raw := range map[string]string{"from": logFrom, "to": logTo} {
		if raw == "" {
			continue
		}
		t, err := parseWhen(raw)
		if err != nil {
			return err
		}
		q.Set(name, t.UTC().Format("2006-01-02T15:04:05Z07:00"))
	}
	if logFor != "" {
		q.Set("user", logFor)
	}
	path := "/time-logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var entries []models.TimeLogEntry
	if err := apiGet(path, &entries); err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No entries found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTART\tDURATION\tDESCRIPTION\tFLAGS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", truncateID(e.ID), e.StartTime.Local().Format("2006-01-02 15:04"),
			formatSeconds(e.Duration), truncate(e.Description, 40), entryFlags(e))
	}
	w.Flush()
	return nil
}

func entryFlags(e models.TimeLogEntry) string {
	var flags []string
	if e.IsActive {
		flags = append(flags, "running")
	}
	if e.IsManualEntry {
		flags = append(flags, "manual")
	}
	if e.ApprovalStatus == models.ApprovalApproved {
		flags = append(flags, "approved")
	}
	if e.Invoiceable {
		flags = append(flags, "invoiceable")
	}
	return strings.Join(flags, ",")
}

func runLogShow(cmd *cobra.Command, args []string) error {
	var e models.TimeLogEntry
	if err := apiGet("/time-logs/"+args[0], &e); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", e.ID)
	fmt.Printf("User:        %s\n", e.UserID)
	fmt.Printf("Description: %s\n", e.Description)
	if e.TaskID != "" {
		fmt.Printf("Task:        %s\n", e.TaskID)
	}
	if e.ProjectID != "" {
		fmt.Printf("Project:     %s\n", e.ProjectID)
	}
	fmt.Printf("Start:       %s\n", e.StartTime.Local().Format("2006-01-02 15:04:05"))
	if e.EndTime != nil {
		fmt.Printf("End:         %s\n", e.EndTime.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Duration:    %s\n", formatSeconds(e.Duration))
	fmt.Printf("Approval:    %s\n", e.ApprovalStatus)
	if flags := entryFlags(e); flags != "" {
		fmt.Printf("Flags:       %s\n", flags)
	}

	if len(e.EditHistory) > 0 {
		fmt.Println("\n--- HISTORY ---")
		for _, h := range e.EditHistory {
			end := "running"
			if h.EndTime != nil {
				end = h.EndTime.Local().Format("15:04:05")
			}
			fmt.Printf("#%d %s by %s: was %s-%s (%s) %q\n", h.Seq, h.EditedAt.Local().Format("2006-01-02 15:04"), h.EditorID,
				h.StartTime.Local().Format("15:04:05"), end, formatSeconds(h.Duration), h.Description)
		}
	}
	return nil
}

func runLogAdd(cmd *cobra.Command, args []string) error {
	start, err := parseWhen(logStart)
	if err != nil {
		return err
	}
	end, err := parseWhen(logEnd)
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"description": strings.Join(args, " "),
		"start_time":  start,
		"end_time":    end,
		"task_id":     logTask,
		"project_id":  logProject,
		"invoiceable": logInvoiceable,
	}

	var entry models.TimeLogEntry
	if err := apiCall(http.MethodPost, "/time-logs", body, &entry); err != nil {
		return err
	}
	fmt.Printf("Recorded entry %s (%s)\n", entry.ID, formatSeconds(entry.Duration))
	return nil
}

func runLogEdit(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{}
	flags := cmd.Flags()
	for name, raw := range map[string]string{"start": logStart, "end": logEnd} {
		if !flags.Changed(name) {
			continue
		}
		t, err := parseWhen(raw)
		if err != nil {
			return err
		}
		body[name+"_time"] = t
	}
	if flags.Changed("desc") {
		body["description"] = logDesc
	}
	if flags.Changed("task") {
		body["task_id"] = logTask
	}
	if flags.Changed("project") {
		body["project_id"] = logProject
	}
	if flags.Changed("invoiceable") {
		body["invoiceable"] = logInvoiceable
	}
	if len(body) == 0 {
		return fmt.Errorf("nothing to edit")
	}

	var entry models.TimeLogEntry
	if err := apiCall(http.MethodPatch, "/time-logs/"+args[0], body, &entry); err != nil {
		return err
	}
	fmt.Printf("Edited entry %s (%d history records)\n", entry.ID, len(entry.EditHistory))
	return nil
}

func runLogRm(cmd *cobra.Command, args []string) error {
	if err := apiCall(http.MethodDelete, "/time-logs/"+args[0], nil, nil); err != nil {
		return err
	}
	fmt.Printf("Deleted entry %s\n", args[0])
	return nil
}

func runLogApprove(cmd *cobra.Command, args []string) error {
	if err := apiCall(http.MethodPost, "/time-logs/"+args[0]+"/approve", nil, nil); err != nil {
		return err
	}
	fmt.Printf("Approved entry %s\n", args[0])
	return nil
}

func runLogVerify(cmd *cobra.Command, args []string) error {
	var resp struct {
		OK     bool   `json:"ok"`
		Seq    int    `json:"seq"`
		Reason string `json:"reason"`
	}
	if err := apiGet("/time-logs/"+args[0]+"/verify", &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("edit history broken at record %d: %s", resp.Seq, resp.Reason)
	}
	fmt.Println("Edit history intact")
	return nil
}
