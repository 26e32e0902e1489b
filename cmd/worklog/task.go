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

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show tasks nested under their parents",
	RunE:  runTaskTree,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update [task-id]",
	Short: "Update task fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskParentCmd = &cobra.Command{
	Use:   "parent [task-id] [parent-id]",
	Short: "Move a task under a parent (omit parent-id to detach)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTaskParent,
}

var taskRmCmd = &cobra.Command{
	Use:   "rm [task-id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRm,
}

var (
	taskTitle     string
	taskDesc      string
	taskStatus    string
	taskPriority  string
	taskAssignee  string
	taskProject   string
	taskParent    string
	taskDue       string
	taskEstimate  float64
	taskActual    float64
	taskNote      string
	taskOwnerOnly bool
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskTreeCmd, taskShowCmd, taskUpdateCmd, taskDoneCmd, taskParentCmd, taskRmCmd)

	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", "", "Priority (low, medium, high)")
	taskAddCmd.Flags().StringVar(&taskAssignee, "assignee", "", "Assignee user ID")
	taskAddCmd.Flags().StringVar(&taskProject, "project", "", "Project ID")
	taskAddCmd.Flags().StringVar(&taskParent, "parent", "", "Parent task ID")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "Due date (RFC3339 or YYYY-MM-DD)")
	taskAddCmd.Flags().Float64Var(&taskEstimate, "estimate", 0, "Estimated hours")
	taskAddCmd.MarkFlagRequired("title")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (pending, active, high, critical, completed)")
	taskListCmd.Flags().StringVar(&taskProject, "project", "", "Filter by project")
	taskListCmd.Flags().BoolVar(&taskOwnerOnly, "mine", false, "Only tasks owned by or assigned to --user")
	taskTreeCmd.Flags().BoolVar(&taskOwnerOnly, "mine", false, "Only tasks owned by or assigned to --user")

	taskUpdateCmd.Flags().StringVar(&taskTitle, "title", "", "New title")
	taskUpdateCmd.Flags().StringVar(&taskDesc, "desc", "", "New description")
	taskUpdateCmd.Flags().StringVar(&taskStatus, "status", "", "New status")
	taskUpdateCmd.Flags().StringVar(&taskPriority, "priority", "", "New priority")
	taskUpdateCmd.Flags().StringVar(&taskAssignee, "assignee", "", "New assignee")
	taskUpdateCmd.Flags().StringVar(&taskDue, "due", "", "New due date (RFC3339 or YYYY-MM-DD, \"none\" clears)")
	taskUpdateCmd.Flags().Float64Var(&taskEstimate, "estimate", 0, "Estimated hours")
	taskUpdateCmd.Flags().Float64Var(&taskActual, "actual", 0, "Actual hours")
	taskUpdateCmd.Flags().StringVar(&taskNote, "note", "", "Append a timestamped note")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"title":          taskTitle,
		"description":    taskDesc,
		"priority":       taskPriority,
		"assignee_id":    taskAssignee,
		"project_id":     taskProject,
		"parent_task_id": taskParent,
	}
	if taskEstimate > 0 {
		body["estimated_hours"] = taskEstimate
	}
	if taskDue != "" {
		due, err := parseWhen(taskDue)
		if err != nil {
			return err
		}
		body["due_at"] = due
	}

	var task models.Task
	if err := apiCall(http.MethodPost, "/tasks", body, &task); err != nil {
		return err
	}

	fmt.Printf("Created task: %s\n", task.ID)
	return nil
}

func taskQuery(tree bool) string {
	q := url.Values{}
	if taskStatus != "" {
		q.Set("status", taskStatus)
	}
	if taskProject != "" {
		q.Set("project", taskProject)
	}
	if taskOwnerOnly {
		q.Set("owner", userID)
	}
	if tree {
		q.Set("tree", "true")
	}
	if len(q) == 0 {
		return "/tasks"
	}
	return "/tasks?" + q.Encode()
}

func runTaskList(cmd *cobra.Command, args []string) error {
	var tasks []models.Task
	if err := apiGet(taskQuery(false), &tasks); err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tOWNER\tDUE")
	for _, t := range tasks {
		due := ""
		if t.DueAt != nil {
			due = t.DueAt.Local().Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", truncateID(t.ID), truncate(t.Title, 40), t.Status, t.Priority, t.OwnerID, due)
	}
	w.Flush()
	return nil
}

func runTaskTree(cmd *cobra.Command, args []string) error {
	var roots []models.Task
	if err := apiGet(taskQuery(true), &roots); err != nil {
		return err
	}

	if len(roots) == 0 {
		fmt.Println("No tasks found")
		return nil
	}
	for _, t := range roots {
		printTree(t, 0)
	}
	return nil
}

func printTree(t models.Task, depth int) {
	mark := "[ ]"
	if t.Completed {
		mark = "[x]"
	}
	fmt.Printf("%s%s %s  %s\n", strings.Repeat("  ", depth), mark, t.Title, truncateID(t.ID))
	for _, child := range t.Subtasks {
		printTree(child, depth+1)
	}
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	var task models.Task
	if err := apiGet("/tasks/"+args[0], &task); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", task.ID)
	fmt.Printf("Title:       %s\n", task.Title)
	fmt.Printf("Description: %s\n", task.Description)
	fmt.Printf("Status:      %s\n", task.Status)
	fmt.Printf("Priority:    %s\n", task.Priority)
	fmt.Printf("Owner:       %s\n", task.OwnerID)
	if task.AssigneeID != "" {
		fmt.Printf("Assignee:    %s\n", task.AssigneeID)
	}
	if task.ProjectID != "" {
		fmt.Printf("Project:     %s\n", task.ProjectID)
	}
	if task.ParentTaskID != "" {
		fmt.Printf("Parent:      %s\n", task.ParentTaskID)
	}
	if task.DueAt != nil {
		fmt.Printf("Due:         %s\n", task.DueAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("Hours:       %.2f estimated, %.2f actual\n", task.EstimatedHours, task.ActualHours)
	if task.Notes != "" {
		fmt.Printf("Notes:\n%s\n", task.Notes)
	}
	fmt.Printf("Created:     %s\n", task.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("Updated:     %s\n", task.UpdatedAt.Local().Format("2006-01-02 15:04"))

	var edges []models.DependencyEdge
	if err := apiGet("/tasks/"+args[0]+"/dependencies", &edges); err != nil {
		return err
	}
	for _, e := range edges {
		if e.TaskID == task.ID {
			fmt.Printf("Depends on:  %s (edge %s)\n", e.DependsOnTaskID, truncateID(e.ID))
		} else {
			fmt.Printf("Blocks:      %s (edge %s)\n", e.TaskID, truncateID(e.ID))
		}
	}
	return nil
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{}
	flags := cmd.Flags()
	if flags.Changed("title") {
		body["title"] = taskTitle
	}
	if flags.Changed("desc") {
		body["description"] = taskDesc
	}
	if flags.Changed("status") {
		body["status"] = taskStatus
	}
	if flags.Changed("priority") {
		body["priority"] = taskPriority
	}
	if flags.Changed("assignee") {
		body["assignee_id"] = taskAssignee
	}
	if flags.Changed("estimate") {
		body["estimated_hours"] = taskEstimate
	}
	if flags.Changed("actual") {
		body["actual_hours"] = taskActual
	}
	if flags.Changed("note") {
		body["append_note"] = taskNote
	}
	if flags.Changed("due") {
		if taskDue == "none" {
			body["clear_due_at"] = true
		} else {
			due, err := parseWhen(taskDue)
			if err != nil {
				return err
			}
			body["due_at"] = due
		}
	}
	if len(body) == 0 {
		return fmt.Errorf("nothing to update")
	}

	var task models.Task
	if err := apiCall(http.MethodPatch, "/tasks/"+args[0], body, &task); err != nil {
		return err
	}
	fmt.Printf("Updated task %s\n", task.ID)
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	if err := apiCall(http.MethodPost, "/tasks/"+args[0]+"/complete", nil, nil); err != nil {
		return err
	}
	fmt.Printf("Completed task %s\n", args[0])
	return nil
}

func runTaskParent(cmd *cobra.Command, args []string) error {
	parent := ""
	if len(args) == 2 {
		parent = args[1]
	}
	if err := apiCall(http.MethodPut, "/tasks/"+args[0]+"/parent", map[string]string{"parent_id": parent}, nil); err != nil {
		return err
	}
	if parent == "" {
		fmt.Printf("Detached task %s\n", args[0])
	} else {
		fmt.Printf("Moved task %s under %s\n", args[0], parent)
	}
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	if err := apiCall(http.MethodDelete, "/tasks/"+args[0], nil, nil); err != nil {
		return err
	}
	fmt.Printf("Deleted task %s\n", args[0])
	return nil
}

// --- Helpers ---

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
