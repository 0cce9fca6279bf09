// Package tui is the terminal goal detail screen. It hosts a gesture
// tracker on the progress bar and a progress controller for the goal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"goaltracker/internal/gesture"
	"goaltracker/internal/goals"
	"goaltracker/internal/progress"
)

// Screen rows used for mouse hit testing. View renders in this order.
const (
	rowStatus = 3
	rowTrack  = 5
	rowDelete = 9

	// the track starts after the opening bracket
	trackCol = 1
	step     = 5
)

type eventMsg progress.Event

type eventsClosedMsg struct{}

type deleteDoneMsg struct{ err error }

type Result struct {
	Deleted bool
	Final   goals.Pair
}

type Model struct {
	ctx     context.Context
	ctrl    *progress.Controller
	tracker *gesture.Tracker
	width   int

	pressX     int
	confirmDel bool
	deleting   bool
	deleted    bool
	alert      string
	quitting   bool
}

// NewModel builds the screen for ctrl with a progress track of width cells.
func NewModel(ctx context.Context, ctrl *progress.Controller, width int) *Model {
	if width < 2 {
		width = 2
	}
	m := &Model{ctx: ctx, ctrl: ctrl, width: width}
	// positions run from the first cell to the last, so the first cell is 0%
	// and the last is 100%
	m.tracker = gesture.NewTracker(float64(width-1), ctrl.SubmitProgress)
	return m
}

// Run shows the screen until the user quits or the goal is deleted.
func Run(ctx context.Context, ctrl *progress.Controller, width int, opts ...tea.ProgramOption) (Result, error) {
	m := NewModel(ctx, ctrl, width)
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	ctrl.Unmount()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return Result{}, err
	}
	return Result{Deleted: m.deleted, Final: ctrl.CurrentValue()}, nil
}

func (m *Model) Init() tea.Cmd {
	return waitForEvent(m.ctrl.Events())
}

func waitForEvent(ch <-chan progress.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		return m.handleKey(msg.String())
	case tea.MouseMsg:
		return m.handleMouse(msg)
	case eventMsg:
		return m.handleEvent(progress.Event(msg))
	case eventsClosedMsg:
		m.quitting = true
		return m, tea.Quit
	case deleteDoneMsg:
		m.deleting = false
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		m.ctrl.Unmount()
		return m, tea.Quit
	case "1", "2", "3":
		m.selectStatus(int(key[0] - '1'))
	case "left", "h":
		m.ctrl.SubmitProgress(m.ctrl.CurrentValue().Progress - step)
	case "right", "l":
		m.ctrl.SubmitProgress(m.ctrl.CurrentValue().Progress + step)
	case "d":
		if !m.deleting {
			m.confirmDel = true
		}
	}
	return m, nil
}

func (m *Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "y", "Y":
		m.confirmDel = false
		return m, m.startDelete()
	case "n", "N", "esc":
		m.confirmDel = false
	}
	return m, nil
}

func (m *Model) startDelete() tea.Cmd {
	if m.deleting {
		return nil
	}
	m.deleting = true
	m.alert = ""
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return deleteDoneMsg{err: ctrl.ConfirmDelete(ctx)}
	}
}

func (m *Model) selectStatus(i int) {
	if i < 0 || i >= len(goals.Statuses) {
		return
	}
	if err := m.ctrl.SubmitStatus(goals.Statuses[i]); err != nil {
		m.alert = err.Error()
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		switch msg.Y {
		case rowTrack:
			if msg.X >= trackCol-1 && msg.X <= trackCol+m.width {
				m.pressX = msg.X - trackCol
				m.tracker.PressAt(float64(m.pressX))
			}
		case rowStatus:
			if i, ok := statusAt(msg.X); ok {
				m.selectStatus(i)
			}
		case rowDelete:
			if msg.X < len(deleteLabel) && !m.deleting {
				m.confirmDel = true
			}
		}
	case tea.MouseActionMotion:
		if m.tracker.Active() {
			m.tracker.DragUpdate(float64(m.pressX), float64(msg.X-trackCol-m.pressX))
		}
	case tea.MouseActionRelease:
		m.tracker.DragEnd()
	}
	return m, nil
}

func (m *Model) handleEvent(ev progress.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case progress.EventConfirmed:
		m.alert = ""
	case progress.EventUpdateFailed:
		m.alert = fmt.Sprintf("Could not save: %v. Back to %s.", ev.Err, ev.Pair)
	case progress.EventDeleteFailed:
		m.alert = fmt.Sprintf("Could not delete: %v", ev.Err)
	case progress.EventNavigateBack:
		m.deleted = true
		m.quitting = true
		return m, tea.Quit
	}
	return m, waitForEvent(m.ctrl.Events())
}

const deleteLabel = "[ Delete ]"

func statusButton(s goals.Status) string {
	return "[ " + s.Label() + " ]"
}

// statusAt maps a column on the status row to a button index.
func statusAt(x int) (int, bool) {
	start := 0
	for i, s := range goals.Statuses {
		end := start + len(statusButton(s))
		if x >= start && x < end {
			return i, true
		}
		start = end + 1
	}
	return 0, false
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	g := m.ctrl.Goal()
	cur := m.ctrl.CurrentValue()

	lines := make([]string, 0, 12)
	lines = append(lines,
		titleStyle.Render(g.Title),
		mutedStyle.Render(firstLine(g.Description)),
		"",
		m.renderStatuses(cur.Status),
		"",
		m.renderTrack(cur.Progress),
		"",
		mutedStyle.Render(fmt.Sprintf("created %s · updated %s",
			g.CreatedAt.Local().Format("2006-01-02"), g.UpdatedAt.Local().Format("2006-01-02 15:04"))),
		"",
		dangerStyle.Render(deleteLabel),
	)

	switch {
	case m.confirmDel:
		lines = append(lines, dangerStyle.Render("Delete this goal? y/n"))
	case m.deleting:
		lines = append(lines, mutedStyle.Render("Deleting..."))
	case m.alert != "":
		lines = append(lines, alertStyle.Render(m.alert))
	default:
		lines = append(lines, "")
	}

	help := "1/2/3 status · ←/→ progress · click or drag the bar · d delete · q back"
	if m.ctrl.State() == progress.Pending {
		help = "saving… · " + help
	}
	lines = append(lines, mutedStyle.Render(help))
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatuses(current goals.Status) string {
	parts := make([]string, len(goals.Statuses))
	for i, s := range goals.Statuses {
		style := buttonStyle
		if s == current {
			style = selectedStyle
		}
		parts[i] = style.Render(statusButton(s))
	}
	return strings.Join(parts, " ")
}

func (m *Model) renderTrack(p int) string {
	filled := int(float64(goals.ClampProgress(p)) / 100 * float64(m.width))
	bar := filledStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", m.width-filled))
	return "[" + bar + "] " + fmt.Sprintf("%3d%%", p)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
