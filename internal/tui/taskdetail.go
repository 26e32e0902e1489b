package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/worklog/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)
)

// renderTaskDetail produces the viewport content for one task. titleOf maps
// task ids to titles for the edge lists and may return "".
func renderTaskDetail(d *TaskDetail, titleOf func(string) string) string {
	var b strings.Builder
	t := d.Task

	b.WriteString(headerStyle.Render(t.Title) + "\n")
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
	}
	field("ID", t.ID)
	field("Status", formatStatus(t.Status))
	field("Priority", string(t.Priority))
	field("Owner", t.OwnerID)
	field("Assignee", t.AssigneeID)
	field("Project", t.ProjectID)
	field("Parent", t.ParentTaskID)
	if t.DueAt != nil {
		field("Due", t.DueAt.Local().Format("2006-01-02 15:04"))
	}
	if t.EstimatedHours > 0 || t.ActualHours > 0 {
		field("Hours", fmt.Sprintf("%.1f / %.1f est", t.ActualHours, t.EstimatedHours))
	}
	if t.Description != "" {
		b.WriteString("\n" + t.Description + "\n")
	}

	edgeList := func(title string, edges []models.DependencyEdge, other func(models.DependencyEdge) string) {
		if len(edges) == 0 {
			return
		}
		b.WriteString(sectionStyle.Render(title) + "\n")
		for _, e := range edges {
			id := other(e)
			name := titleOf(id)
			if name == "" {
				name = id
			}
			fmt.Fprintf(&b, "  • %s\n", name)
		}
	}
	edgeList("Blocked by", d.BlockedBy, func(e models.DependencyEdge) string { return e.DependsOnTaskID })
	edgeList("Blocking", d.Blocking, func(e models.DependencyEdge) string { return e.TaskID })

	if t.Notes != "" {
		b.WriteString(sectionStyle.Render("Notes") + "\n")
		b.WriteString(t.Notes + "\n")
	}
	return b.String()
}
