package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/worklog/internal/models"
)

// cmdContext is what a command may act on.
type cmdContext struct {
	selected *models.Task
	timer    *models.TimeLogEntry
}

// Execute parses one command line and runs it against the API.
func Execute(client *Client, input string, ctx cmdContext) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	needTask := func() (string, bool) {
		if ctx.selected == nil {
			return "", false
		}
		return ctx.selected.ID, true
	}

	switch cmd {
	case "q", "quit", "exit":
		return tea.Quit
	}

	return func() tea.Msg {
		switch cmd {
		case "add", "sub":
			if len(args) < 1 {
				return cmdResultMsg{"Usage: " + cmd + " <title>"}
			}
			parent := ""
			if cmd == "sub" {
				id, ok := needTask()
				if !ok {
					return cmdResultMsg{"No task selected"}
				}
				parent = id
			}
			t, err := client.CreateTask(strings.Join(args, " "), parent)
			if err != nil {
				return cmdResultMsg{"Error: " + err.Error()}
			}
			return cmdResultMsg{fmt.Sprintf("✓ Created task: %s", shortID(t.ID))}

		case "done":
			id, ok := needTask()
			if !ok {
				return cmdResultMsg{"No task selected"}
			}
			if err := client.CompleteTask(id); err != nil {
				return cmdResultMsg{"Error: " + err.Error()}
			}
			return cmdResultMsg{"✓ Task completed"}

		case "start":
			id, ok := needTask()
			if !ok {
				return cmdResultMsg{"No task selected"}
			}
			desc := strings.Join(args, " ")
			if desc == "" {
				desc = ctx.selected.Title
			}
			if _, err := client.StartTimer(id, desc); err != nil {
				return cmdResultMsg{"Error: " + err.Error()}
			}
			return cmdResultMsg{"✓ Timer started"}

		case "stop":
			if ctx.timer == nil {
				return cmdResultMsg{"No timer running"}
			}
			e, err := client.StopTimer(ctx.timer.ID)
			if err != nil {
				return cmdResultMsg{"Error: " + err.Error()}
			}
			return cmdResultMsg{fmt.Sprintf("✓ Timer stopped after %s", formatSeconds(e.Duration))}

		case "dep":
			id, ok := needTask()
			if !ok {
				return cmdResultMsg{"No task selected"}
			}
			if len(args) != 1 {
				return cmdResultMsg{"Usage: dep @<task-id>"}
			}
			if err := client.AddDependency(id, strings.TrimPrefix(args[0], "@")); err != nil {
				return cmdResultMsg{"Error: " + err.Error()}
			}
			return cmdResultMsg{"✓ Dependency added"}

		case "note":
			id, ok := needTask()
			if !ok {
				return cmdResultMsg{"No task selected"}
			}
			if len(args) < 1 {
				return cmdResultMsg{"Usage: note <text>"}
			}
			if err := client.AppendNote(id, strings.Join(args, " ")); err != nil {
				return cmdResultMsg{"Error: " + err.Error()}
			}
			return cmdResultMsg{"✓ Note added"}

		default:
			return cmdResultMsg{fmt.Sprintf("Unknown: %s (try: /add, /done, /start, /stop)", cmd)}
		}
	}
}

type cmdResultMsg struct {
	message string
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
