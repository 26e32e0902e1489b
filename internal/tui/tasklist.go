package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/worklog/internal/models"
)

var (
	statusPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	statusActive    = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // Cyan
	statusHigh      = lipgloss.NewStyle().Foreground(lipgloss.Color("5")) // Magenta
	statusCritical  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // Red
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
)

var filters = []string{"", "pending", "active", "high", "critical", "completed"}
var filterNames = []string{"ALL", "PENDING", "ACTIVE", "HIGH", "CRITICAL", "DONE"}

func formatStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPending:
		return statusPending.Render("○ PENDING")
	case models.TaskStatusActive:
		return statusActive.Render("◑ ACTIVE")
	case models.TaskStatusHigh:
		return statusHigh.Render("◆ HIGH")
	case models.TaskStatusCritical:
		return statusCritical.Render("▲ CRITICAL")
	case models.TaskStatusCompleted:
		return statusCompleted.Render("● DONE")
	default:
		return string(status)
	}
}

func statusGlyph(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPending:
		return "○"
	case models.TaskStatusActive:
		return "◑"
	case models.TaskStatusHigh:
		return "◆"
	case models.TaskStatusCritical:
		return "▲"
	case models.TaskStatusCompleted:
		return "●"
	default:
		return "?"
	}
}

// renderTaskList draws the tree rows, keeping the selection inside a window of height lines.
func renderTaskList(rows []TaskRow, selected, height int, timerTaskID string) string {
	if len(rows) == 0 {
		return "\n  No tasks found. Type: /add <title> to create one.\n"
	}

	lines := make([]string, 0, len(rows))
	for i, row := range rows {
		indent := strings.Repeat("  ", row.Depth)
		title := row.Task.Title
		if row.Task.ID == timerTaskID {
			title += " ⏱"
		}
		if i == selected {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s%s  %s", indent, statusGlyph(row.Task.Status), title)))
		} else {
			lines = append(lines, taskItemStyle.Render(fmt.Sprintf("  %s%s  %s", indent, formatStatus(row.Task.Status), title)))
		}
	}

	if height > 0 && len(lines) > height {
		start := selected - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}
	return strings.Join(lines, "\n")
}
