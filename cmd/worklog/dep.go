package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/fentz26/worklog/internal/models"
	"github.com/spf13/cobra"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage task dependencies",
}

var depAddCmd = &cobra.Command{
	Use:   "add [task-id] [depends-on-task-id]",
	Short: "Record that a task cannot start until another is done",
	Args:  cobra.ExactArgs(2),
	RunE:  runDepAdd,
}

var depRmCmd = &cobra.Command{
	Use:   "rm [edge-id]",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepRm,
}

var depListCmd = &cobra.Command{
	Use:   "list [task-id]",
	Short: "List edges touching a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepList,
}

func init() {
	depCmd.AddCommand(depAddCmd, depRmCmd, depListCmd)
}

func runDepAdd(cmd *cobra.Command, args []string) error {
	body := map[string]string{
		"task_id":            args[0],
		"depends_on_task_id": args[1],
	}

	var edge models.DependencyEdge
	if err := apiCall(http.MethodPost, "/dependencies", body, &edge); err != nil {
		return err
	}
	fmt.Printf("Created dependency %s: %s depends on %s\n", edge.ID, edge.TaskID, edge.DependsOnTaskID)
	return nil
}

func runDepRm(cmd *cobra.Command, args []string) error {
	if err := apiCall(http.MethodDelete, "/dependencies/"+args[0], nil, nil); err != nil {
		return err
	}
	fmt.Printf("Removed dependency %s\n", args[0])
	return nil
}

func runDepList(cmd *cobra.Command, args []string) error {
	var edges []models.DependencyEdge
	if err := apiGet("/tasks/"+args[0]+"/dependencies", &edges); err != nil {
		return err
	}

	if len(edges) == 0 {
		fmt.Println("No dependencies found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EDGE\tTASK\tDEPENDS ON\tCREATED")
	for _, e := range edges {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", truncateID(e.ID), truncateID(e.TaskID), truncateID(e.DependsOnTaskID),
			e.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}
