// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/otsbridge/pkg/controller"
	"github.com/Thermoquad/otsbridge/pkg/indicator"
	"github.com/Thermoquad/otsbridge/pkg/nuketrack"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

const refreshInterval = 200 * time.Millisecond

// Log entry
type logEntry struct {
	timestamp time.Time
	message   string
}

type snapshotSource interface {
	Snapshot() controller.Snapshot
}

// TUI model
type monitorModel struct {
	connInfo      string
	source        snapshotSource
	stats         func() otscan.Statistics // nil without an SLCAN stream
	act           func(name string) error
	logs          <-chan string
	snap          controller.Snapshot
	entries       []logEntry
	maxLogEntries int
	viewport      viewport.Model
	width         int
	height        int
	quitting      bool
	now           func() time.Time
}

// Messages
type tickMsg time.Time
type logLineMsg string

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// formatUptime formats uptime in seconds as "1d 2h 3m 4s", dropping
// leading zero units
func formatUptime(sec uint64) string {
	days := sec / 86400
	hours := sec / 3600 % 24
	minutes := sec / 60 % 60
	seconds := sec % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func newMonitorModel(connInfo string, source snapshotSource, stats func() otscan.Statistics,
	logs <-chan string, act func(name string) error) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		source:        source,
		stats:         stats,
		act:           act,
		logs:          logs,
		snap:          source.Snapshot(),
		maxLogEntries: 100,
		viewport:      viewport.New(76, 8),
		width:         80,
		height:        24,
		now:           time.Now,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForLog(m.logs))
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForLog(logs <-chan string) tea.Cmd {
	if logs == nil {
		return nil
	}
	return func() tea.Msg {
		return logLineMsg(<-logs)
	}
}

var actionKeys = map[string]string{
	"a": "atom",
	"h": "hydro",
	"m": "mirv",
	"r": "reset",
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		if name, ok := actionKeys[key]; ok && m.act != nil {
			if err := m.act(name); err != nil {
				m.addLogEntry(fmt.Sprintf("%s failed: %v", name, err))
			} else {
				m.addLogEntry("key: " + name)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLog()

	case tickMsg:
		m.snap = m.source.Snapshot()
		return m, tickCmd()

	case logLineMsg:
		m.addLogEntry(string(msg))
		return m, waitForLog(m.logs)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// resizeLog fits the log pane under the fixed boxes
func (m *monitorModel) resizeLog() {
	logHeight := m.height - 22
	if logHeight < 5 {
		logHeight = 5
	}
	m.viewport.Width = m.width - 6
	m.viewport.Height = logHeight
	m.refreshLog()
}

func (m *monitorModel) addLogEntry(message string) {
	m.entries = append(m.entries, logEntry{timestamp: m.now(), message: message})
	if len(m.entries) > m.maxLogEntries {
		m.entries = m.entries[len(m.entries)-m.maxLogEntries:]
	}
	m.refreshLog()
}

func (m *monitorModel) refreshLog() {
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(headerStyle.Render(e.timestamp.Format("15:04:05.000")))
		b.WriteString(" ")
		b.WriteString(e.message)
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("OTSBRIDGE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | a/h/m: send nuke  r: reset  q: quit", m.connInfo)))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.gameView()))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.panelView()))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.audioView()))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	if len(m.entries) == 0 {
		s.WriteString(boxStyle.Render(headerStyle.Render("  (no events yet)")))
	} else {
		s.WriteString(boxStyle.Render(m.viewport.View()))
	}
	return s.String()
}

func (m monitorModel) gameView() string {
	snap := m.snap
	var b strings.Builder

	since := ""
	if !snap.PhaseSince.IsZero() {
		since = headerStyle.Render(fmt.Sprintf(" (%s)", m.now().Sub(snap.PhaseSince).Truncate(time.Second)))
	}
	fmt.Fprintf(&b, "%s %s%s   %s %s\n",
		labelStyle.Render("Phase:"), valueStyle.Render(snap.Phase.String()), since,
		labelStyle.Render("Last event:"), valueStyle.Render(snap.LastEvent.String()))

	fmt.Fprintf(&b, "%s", labelStyle.Render("Incoming:"))
	for typ := nuketrack.Atom; typ < nuketrack.TypeCount; typ++ {
		fmt.Fprintf(&b, " %s=%s", typ, countStyle(snap.Incoming[typ], errorStyle).Render(fmt.Sprint(snap.Incoming[typ])))
	}
	fmt.Fprintf(&b, "   %s", labelStyle.Render("Outgoing:"))
	for typ := nuketrack.Atom; typ < nuketrack.TypeCount; typ++ {
		fmt.Fprintf(&b, " %s=%s", typ, countStyle(snap.Outgoing[typ], warningStyle).Render(fmt.Sprint(snap.Outgoing[typ])))
	}
	b.WriteString("\n")

	failed := valueStyle.Render(fmt.Sprint(snap.EventsFailed))
	if snap.EventsFailed > 0 {
		failed = errorStyle.Render(fmt.Sprint(snap.EventsFailed))
	}
	fmt.Fprintf(&b, "%s %s/%d   %s %s   %s %s",
		labelStyle.Render("Tracked:"), valueStyle.Render(fmt.Sprint(snap.Tracked)), nuketrack.Capacity,
		labelStyle.Render("Events:"), valueStyle.Render(fmt.Sprint(snap.EventsProcessed)),
		labelStyle.Render("Failed:"), failed)
	return b.String()
}

func countStyle(n int, active lipgloss.Style) lipgloss.Style {
	if n > 0 {
		return active
	}
	return valueStyle
}

func (m monitorModel) panelView() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", labelStyle.Render("Nuke LEDs: "))
	for _, e := range m.snap.Panel.Nuke {
		b.WriteString(ledView(e))
	}
	fmt.Fprintf(&b, "   %s", labelStyle.Render("Alert LEDs: "))
	for _, e := range m.snap.Panel.Alert {
		b.WriteString(ledView(e))
	}
	return b.String()
}

func ledView(e indicator.Effect) string {
	switch e {
	case indicator.On:
		return errorStyle.Render("●") + " "
	case indicator.Blink:
		return warningStyle.Render("◐") + " "
	default:
		return headerStyle.Render("○") + " "
	}
}

func (m monitorModel) audioView() string {
	audio := m.snap.Audio
	var b strings.Builder

	if len(audio.Modules) == 0 {
		b.WriteString(warningStyle.Render("No audio module announced"))
	} else {
		for i, mod := range audio.Modules {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s %s", labelStyle.Render("Module:"), valueStyle.Render(mod.String()))
		}
	}
	b.WriteString("\n")

	if audio.HasStatus {
		st := audio.Status
		state := "idle"
		if st.Playing() {
			state = fmt.Sprintf("playing %d", st.CurrentSound)
		}
		errText := valueStyle.Render(st.Error.String())
		if st.Error != otscan.AudioErrOK {
			errText = errorStyle.Render(st.Error.String())
		}
		fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
			labelStyle.Render("State:"), valueStyle.Render(state),
			labelStyle.Render("Error:"), errText,
			labelStyle.Render("Uptime:"), valueStyle.Render(formatUptime(uint64(st.UptimeSec))))
	} else {
		b.WriteString(headerStyle.Render("Waiting for SOUND_STATUS...") + "\n")
	}

	fmt.Fprintf(&b, "%s %s   %s %s",
		labelStyle.Render("Acks:"), valueStyle.Render(fmt.Sprint(audio.Acks)),
		labelStyle.Render("Rejected:"), countStyle(int(audio.AckFailures), errorStyle).Render(fmt.Sprint(audio.AckFailures)))

	if m.stats != nil {
		st := m.stats()
		st.CalculateRates()
		fmt.Fprintf(&b, "\n%s %s   %s %s   %s %s",
			labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprint(st.TotalFrames)),
			labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f f/s", st.FrameRate)),
			labelStyle.Render("Errors:"), countStyle(int(st.DecodeErrors+st.MalformedFrame), errorStyle).
				Render(fmt.Sprint(st.DecodeErrors+st.MalformedFrame)))
	}
	return b.String()
}
