// Package tui renders the live endpoint status view in the terminal.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gametunnel/internal/stats"
)

type snapshotMsg struct {
	snap *stats.Snapshot
}

type feedClosedMsg struct{}

// Model is the root BubbleTea model: one status table fed by the stats
// broadcaster.
type Model struct {
	broadcaster *stats.Broadcaster
	sub         <-chan *stats.Snapshot

	width  int
	height int

	showHelp bool
	snapshot *stats.Snapshot
	table    table.Model
	spinner  spinner.Model
}

// NewModel creates the root Model, subscribed to the broadcaster.
func NewModel(broadcaster *stats.Broadcaster) *Model {
	cols := []table.Column{
		{Title: "Server", Width: 22},
		{Title: "Region", Width: 10},
		{Title: "Status", Width: 9},
		{Title: "Latency", Width: 10},
		{Title: "Samples", Width: 8},
		{Title: "Active", Width: 7},
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(colorPurple)
	s.Selected = s.Selected.
		Foreground(colorFg).
		Background(lipgloss.AdaptiveColor{Light: "#E8E0F0", Dark: "#2A1A3E"}).
		Bold(true)
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return &Model{
		broadcaster: broadcaster,
		sub:         broadcaster.Subscribe(),
		table:       t,
		spinner:     sp,
	}
}

// waitForSnapshot blocks on the broadcaster feed and converts the next
// snapshot into a message.
func waitForSnapshot(sub <-chan *stats.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return feedClosedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.sub), m.spinner.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		th := m.height - 14
		if th < 3 {
			th = 3
		}
		m.table.SetHeight(th)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, keys.Refresh):
			m.broadcaster.Publish()
			return m, nil
		}

	case snapshotMsg:
		m.snapshot = msg.snap
		m.setRows(msg.snap)
		return m, waitForSnapshot(m.sub)

	case feedClosedMsg:
		return m, tea.Quit
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	if m.snapshot == nil {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.table, cmd = m.table.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) setRows(snap *stats.Snapshot) {
	ids := make([]string, 0, len(snap.ServerDetails))
	for id := range snap.ServerDetails {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		d := snap.ServerDetails[id]

		latency := "-"
		if d.Latency != nil {
			latency = latencyStyle(*d.Latency).Render(fmt.Sprintf("%.0fms", *d.Latency))
		}
		status := d.Status
		if status == "online" {
			status = lipgloss.NewStyle().Foreground(colorGreen).Render(status)
		} else {
			status = lipgloss.NewStyle().Foreground(colorRed).Render(status)
		}
		active := ""
		if id == snap.ActiveServer {
			active = "  *"
		}

		rows = append(rows, table.Row{
			truncate(d.Name, 22),
			d.Region,
			status,
			latency,
			fmt.Sprintf("%d", len(d.LatencyHistory)),
			active,
		})
	}
	m.table.SetRows(rows)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.snapshot == nil {
		return m.spinner.View() + " waiting for the first probe round..."
	}

	header := m.renderHeader()
	summary := m.renderSummary()
	footer := m.renderHelpBar()

	output := lipgloss.JoinVertical(lipgloss.Left,
		header,
		summary,
		m.table.View(),
		footer,
	)
	return forceHeight(output, m.width, m.height)
}

func (m *Model) renderHeader() string {
	logo := logoStyle.Render("gametunnel")

	var pill string
	if m.snapshot.ActiveServer != "" {
		name := m.snapshot.ActiveServer
		if d, ok := m.snapshot.ServerDetails[name]; ok {
			name = d.Name
		}
		pill = selectedPillStyle.Render("-> " + name)
	} else {
		pill = noSelectionPillStyle.Render("no server")
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, logo, pill)
}

func (m *Model) renderSummary() string {
	snap := m.snapshot
	rows := []string{
		row("Servers", fmt.Sprintf("%d/%d online", snap.Servers.Online, snap.Servers.Total)),
		row("Avg Latency", fmt.Sprintf("%.1fms", snap.Servers.AvgLatency)),
		row("Connections", fmt.Sprintf("%d active, %d total", snap.Connections.Active, snap.Connections.Total)),
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{cardTitleStyle.Render("Relay Status")}, rows...)...,
	)

	w := m.width - 6
	if w < 30 {
		w = 30
	}
	return cardStyle.Width(w).Render(content)
}

func (m *Model) renderHelpBar() string {
	if !m.showHelp {
		return dimStyle.Render(" ? for help")
	}

	var parts []string
	for _, b := range keys.ShortHelp() {
		parts = append(parts,
			helpKeyStyle.Render(b.Help().Key)+" "+helpDescStyle.Render(b.Help().Desc))
	}
	return " " + strings.Join(parts, helpSepStyle.Render(" | "))
}

func row(label, value string) string {
	return cardLabelStyle.Render(label+":") + " " + cardValueStyle.Render(value)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// forceHeight ensures the string has exactly `height` lines, each padded to
// `width`, so BubbleTea never leaves ghost lines behind.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

// NewProgram creates a bubbletea program with alt screen.
func NewProgram(broadcaster *stats.Broadcaster) *tea.Program {
	return tea.NewProgram(NewModel(broadcaster), tea.WithAltScreen())
}
