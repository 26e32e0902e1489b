package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fentz26/worklog/internal/models"
	"github.com/spf13/cobra"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Start, stop and inspect the running timer",
}

var timerStartCmd = &cobra.Command{
	Use:   "start [description]",
	Short: "Start a timer, stopping any running one",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTimerStart,
}

var timerStopCmd = &cobra.Command{
	Use:   "stop [time-log-id]",
	Short: "Stop a timer (defaults to the running one)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTimerStop,
}

var timerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running timer",
	RunE:  runTimerStatus,
}

var (
	timerTask    string
	timerProject string
)

func init() {
	timerCmd.AddCommand(timerStartCmd, timerStopCmd, timerStatusCmd)

	timerStartCmd.Flags().StringVar(&timerTask, "task", "", "Task ID")
	timerStartCmd.Flags().StringVar(&timerProject, "project", "", "Project ID")
}

func runTimerStart(cmd *cobra.Command, args []string) error {
	body := map[string]string{
		"description": strings.Join(args, " "),
		"task_id":     timerTask,
		"project_id":  timerProject,
	}

	var entry models.TimeLogEntry
	if err := apiCall(http.MethodPost, "/timers", body, &entry); err != nil {
		return err
	}
	fmt.Printf("Started timer %s at %s\n", entry.ID, entry.StartTime.Local().Format("15:04:05"))
	return nil
}

func activeTimer() (*models.TimeLogEntry, error) {
	var resp struct {
		Timer *models.TimeLogEntry `json:"timer"`
	}
	if err := apiGet("/timers/active", &resp); err != nil {
		return nil, err
	}
	return resp.Timer, nil
}

func runTimerStop(cmd *cobra.Command, args []string) error {
	id := ""
	if len(args) == 1 {
		id = args[0]
	} else {
		running, err := activeTimer()
		if err != nil {
			return err
		}
		if running == nil {
			fmt.Println("No timer running")
			return nil
		}
		id = running.ID
	}

	var entry models.TimeLogEntry
	if err := apiCall(http.MethodPost, "/timers/"+id+"/stop", nil, &entry); err != nil {
		return err
	}
	fmt.Printf("Stopped timer %s after %s\n", entry.ID, formatSeconds(entry.Duration))
	return nil
}

func runTimerStatus(cmd *cobra.Command, args []string) error {
	running, err := activeTimer()
	if err != nil {
		return err
	}
	if running == nil {
		fmt.Println("No timer running")
		return nil
	}

	elapsed := int64(time.Since(running.StartTime).Seconds())
	fmt.Printf("Running:     %s\n", running.ID)
	fmt.Printf("Description: %s\n", running.Description)
	if running.TaskID != "" {
		fmt.Printf("Task:        %s\n", running.TaskID)
	}
	fmt.Printf("Started:     %s\n", running.StartTime.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Elapsed:     %s\n", formatSeconds(elapsed))
	return nil
}

func formatSeconds(s int64) string {
	if s < 0 {
		s = 0
	}
	return (time.Duration(s) * time.Second).String()
}

// parseWhen accepts RFC3339, "YYYY-MM-DD HH:MM" or "YYYY-MM-DD" in local time.
func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (use RFC3339, YYYY-MM-DD HH:MM or YYYY-MM-DD)", s)
}
