package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Suggestions provides autocomplete for commands and task references.
type Suggestions struct {
	items        []SuggestionItem
	filtered     []SuggestionItem
	selectedIdx  int
	visible      bool
	prefix       string // "/" or "@"
	currentInput string
	tasks        []SuggestionItem
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
}

var commandSuggestions = []SuggestionItem{
	{Text: "/add", Description: "Create a task"},
	{Text: "/sub", Description: "Create a subtask of the selected task"},
	{Text: "/done", Description: "Complete the selected task"},
	{Text: "/start", Description: "Start a timer on the selected task"},
	{Text: "/stop", Description: "Stop the running timer"},
	{Text: "/dep", Description: "Selected task depends on @task"},
	{Text: "/note", Description: "Append a note to the selected task"},
	{Text: "/quit", Description: "Exit"},
}

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{}
}

// SetTasks replaces the task references offered after "@".
func (s *Suggestions) SetTasks(rows []TaskRow) {
	s.tasks = make([]SuggestionItem, len(rows))
	for i, r := range rows {
		s.tasks[i] = SuggestionItem{Text: "@" + r.Task.ID, Description: r.Task.Title}
	}
}

// Update updates suggestions based on current input. Only the last word is
// completed, so "/dep @" offers tasks.
func (s *Suggestions) Update(input string) {
	s.currentInput = input
	word := input
	if i := strings.LastIndex(input, " "); i >= 0 {
		word = input[i+1:]
	}

	switch {
	case strings.HasPrefix(word, "/") && !strings.Contains(input, " "):
		s.prefix = "/"
		s.items = commandSuggestions
	case strings.HasPrefix(word, "@"):
		s.prefix = "@"
		s.items = s.tasks
	default:
		s.visible = false
		s.filtered = nil
		s.prefix = ""
		return
	}
	s.visible = true
	s.filter(strings.ToLower(word))
}

func (s *Suggestions) filter(query string) {
	s.filtered = s.filtered[:0]
	for _, item := range s.items {
		if strings.HasPrefix(strings.ToLower(item.Text), query) ||
			(s.prefix == "@" && strings.Contains(strings.ToLower(item.Description), strings.TrimPrefix(query, "@"))) {
			s.filtered = append(s.filtered, item)
		}
	}
	s.selectedIdx = 0
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.IsVisible() || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// Accept replaces the word being completed with the selection.
func (s *Suggestions) Accept() string {
	sel := s.Selected()
	if sel == nil {
		return s.currentInput
	}
	head := ""
	if i := strings.LastIndex(s.currentInput, " "); i >= 0 {
		head = s.currentInput[:i+1]
	}
	return head + sel.Text + " "
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(max(20, width-4))

	itemStyle := lipgloss.NewStyle().Foreground(fgColor)
	descStyle := lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	pickStyle := lipgloss.NewStyle().Background(primaryColor).Foreground(fgColor).Bold(true)

	header := "Commands"
	if s.prefix == "@" {
		header = "Tasks"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Render(header) + "\n")

	const maxVisible = 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", len(s.filtered)-maxVisible)))
			break
		}
		text := item.Text
		if s.prefix == "@" && len(text) > 9 {
			text = text[:9]
		}
		if i == s.selectedIdx {
			b.WriteString(pickStyle.Render("▶ "+text) + " " + pickStyle.Render(item.Description))
		} else {
			b.WriteString(itemStyle.Render("  "+text) + " " + descStyle.Render(item.Description))
		}
		b.WriteString("\n")
	}

	return boxStyle.Render(b.String())
}
