// Package tui provides the interactive terminal dashboard for Worklog.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/worklog/internal/models"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

const refreshEvery = 15 * time.Second

// App is the main TUI application model.
type App struct {
	client       *Client
	userID       string
	rows         []TaskRow
	selectedIdx  int
	input        textinput.Model
	viewport     viewport.Model
	spinner      spinner.Model
	width        int
	height       int
	mode         string // "list" or "detail"
	detail       *TaskDetail
	timer        *models.TimeLogEntry
	stats        *models.ProductivityStats
	message      string
	filterIdx    int
	loading      bool
	daemonOnline bool
	suggestions  *Suggestions
	now          time.Time
}

// New creates a new TUI application acting as userID.
func New(apiAddr, userID, role string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type / for commands, @ for tasks"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return &App{
		client:      NewClient(apiAddr, userID, role),
		userID:      userID,
		input:       ti,
		viewport:    viewport.New(80, 20),
		spinner:     sp,
		mode:        "list",
		suggestions: NewSuggestions(),
		now:         time.Now(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.spinner.Tick,
		a.fetchTasks(),
		a.fetchStatus(),
		clockTick(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.suggestions.IsVisible() {
				a.input.SetValue("")
				a.suggestions.Update("")
				return a, nil
			}
			if a.mode == "detail" {
				a.mode = "list"
				a.detail = nil
				return a, a.fetchTasks()
			}

		case "up":
			if a.suggestions.IsVisible() {
				a.suggestions.Prev()
			} else if a.mode == "detail" {
				a.viewport.LineUp(1)
			} else if a.selectedIdx > 0 {
				a.selectedIdx--
			}
			return a, nil

		case "down":
			if a.suggestions.IsVisible() {
				a.suggestions.Next()
			} else if a.mode == "detail" {
				a.viewport.LineDown(1)
			} else if a.selectedIdx < len(a.rows)-1 {
				a.selectedIdx++
			}
			return a, nil

		case "tab":
			if a.suggestions.IsVisible() {
				a.input.SetValue(a.suggestions.Accept())
				a.input.CursorEnd()
				a.suggestions.Update(a.input.Value())
				return a, nil
			}
			if a.mode == "list" {
				a.filterIdx = (a.filterIdx + 1) % len(filters)
				return a, a.fetchTasks()
			}

		case "enter":
			if a.suggestions.IsVisible() && !strings.Contains(strings.TrimSpace(a.input.Value()), " ") {
				a.input.SetValue(a.suggestions.Accept())
				a.input.CursorEnd()
				a.suggestions.Update(a.input.Value())
				return a, nil
			}
			line := strings.TrimSpace(a.input.Value())
			if line != "" {
				a.input.SetValue("")
				a.suggestions.Update("")
				return a, Execute(a.client, line, a.cmdContext())
			}
			if a.mode == "list" && len(a.rows) > 0 {
				a.mode = "detail"
				a.viewport.SetContent("")
				return a, a.fetchDetail(a.rows[a.selectedIdx].Task.ID)
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6
		a.viewport.Width = msg.Width
		a.viewport.Height = max(5, msg.Height-10)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case clockMsg:
		a.now = time.Time(msg)
		cmds = append(cmds, clockTick())
		if a.now.Second()%int(refreshEvery.Seconds()) == 0 {
			cmds = append(cmds, a.fetchStatus())
		}
		return a, tea.Batch(cmds...)

	case tasksLoadedMsg:
		a.loading = false
		a.daemonOnline = true
		a.rows = flattenTree(msg.roots)
		a.suggestions.SetTasks(a.rows)
		if a.selectedIdx >= len(a.rows) {
			a.selectedIdx = max(0, len(a.rows)-1)
		}

	case detailLoadedMsg:
		a.detail = msg.detail
		a.viewport.SetContent(renderTaskDetail(msg.detail, a.titleOf))
		a.viewport.GotoTop()

	case statusLoadedMsg:
		a.daemonOnline = msg.online
		if msg.online {
			a.timer = msg.timer
			a.stats = msg.stats
		}

	case cmdResultMsg:
		a.message = msg.message
		cmds = append(cmds, a.fetchTasks(), a.fetchStatus())
		if a.mode == "detail" && a.detail != nil {
			cmds = append(cmds, a.fetchDetail(a.detail.Task.ID))
		}
		return a, tea.Batch(cmds...)

	case errMsg:
		a.loading = false
		a.message = "Error: " + msg.err.Error()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	a.suggestions.Update(a.input.Value())

	return a, tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemon := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemon = offlineStyle.Render("○ DAEMON")
	}
	header := titleStyle.Render("WORKLOG") + "  " + daemon
	header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(a.userID)
	header += "  " + a.renderTimer()
	b.WriteString(header + "\n")
	if a.stats != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(fmt.Sprintf(
			" %dd: %.1fh total · %.1fh/day · %d day streak · %.0f%% utilization",
			a.stats.WindowDays, a.stats.TotalHours, a.stats.AverageDailyHours, a.stats.StreakDays, a.stats.UtilizationPercent)))
	}
	b.WriteString("\n" + strings.Repeat("─", a.width) + "\n")

	contentHeight := max(5, a.height-9)
	switch a.mode {
	case "list":
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(fmt.Sprintf(" Filter: [%s]", filterNames[a.filterIdx])) + "\n")
		if a.loading && len(a.rows) == 0 {
			b.WriteString("\n  " + a.spinner.View() + " Loading tasks...\n")
		} else {
			timerTask := ""
			if a.timer != nil {
				timerTask = a.timer.TaskID
			}
			b.WriteString(renderTaskList(a.rows, a.selectedIdx, contentHeight-1, timerTask))
		}
	case "detail":
		if a.detail == nil {
			b.WriteString("\n  " + a.spinner.View() + " Loading...\n")
		} else {
			b.WriteString(a.viewport.View())
		}
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n" + inputBoxStyle.Render(a.input.View()))
	if a.suggestions.IsVisible() {
		b.WriteString("\n" + a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	status := fmt.Sprintf(" Tasks: %d | ↑↓:nav | Enter:open | Tab:filter | Ctrl+C:quit", len(a.rows))
	if a.mode == "detail" {
		status = " ↑↓:scroll | Esc:back | /done /start /note act on this task"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) renderTimer() string {
	if a.timer == nil {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("○ no timer")
	}
	elapsed := int64(a.now.Sub(a.timer.StartTime).Seconds())
	return lipgloss.NewStyle().Foreground(warningColor).Bold(true).Render(
		fmt.Sprintf("⏱ %s %s", formatSeconds(elapsed), truncate(a.timer.Description, 30)))
}

func (a *App) cmdContext() cmdContext {
	ctx := cmdContext{timer: a.timer}
	switch {
	case a.mode == "detail" && a.detail != nil:
		t := a.detail.Task
		ctx.selected = &t
	case len(a.rows) > 0:
		t := a.rows[a.selectedIdx].Task
		ctx.selected = &t
	}
	return ctx
}

func (a *App) titleOf(id string) string {
	for _, r := range a.rows {
		if r.Task.ID == id {
			return r.Task.Title
		}
	}
	return ""
}

func (a *App) fetchTasks() tea.Cmd {
	a.loading = true
	status := filters[a.filterIdx]
	return func() tea.Msg {
		roots, err := a.client.TaskTree(status)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{roots}
	}
}

func (a *App) fetchDetail(taskID string) tea.Cmd {
	return func() tea.Msg {
		d, err := a.client.TaskDetail(taskID)
		if err != nil {
			return errMsg{err}
		}
		return detailLoadedMsg{d}
	}
}

func (a *App) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		if ok, err := a.client.CheckHealth(); err != nil || !ok {
			return statusLoadedMsg{online: false}
		}
		timer, err := a.client.ActiveTimer()
		if err != nil {
			return errMsg{err}
		}
		stats, err := a.client.Stats()
		if err != nil {
			return errMsg{err}
		}
		return statusLoadedMsg{online: true, timer: timer, stats: stats}
	}
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

func formatSeconds(s int64) string {
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

type errMsg struct {
	err error
}

type tasksLoadedMsg struct {
	roots []models.Task
}

type detailLoadedMsg struct {
	detail *TaskDetail
}

type statusLoadedMsg struct {
	online bool
	timer  *models.TimeLogEntry
	stats  *models.ProductivityStats
}

type clockMsg time.Time
