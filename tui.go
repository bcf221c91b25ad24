package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"livetext/audio"
	"livetext/beep"
	"livetext/session"
)

// TUI message types
type StatusMsg struct {
	Status session.Status
	Err    error
}
type TranscriptMsg struct{ Text string }
type NotesMsg struct{ Text string }
type AudioLevelMsg struct{ Level float64 }
type tickMsg time.Time

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	idleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	connectingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	recordingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	errorStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("160"))
	sectionStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	meterStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	meterHotStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type tuiModel struct {
	lifecycle *session.Lifecycle

	status       session.Status
	errText      string
	transcript   string
	notes        string
	level        float64
	peakLevel    float64
	recordingFor float64
	notesEnabled bool
	modelLine    string
	deviceLine   string

	width, height int
}

// tuiObserver forwards lifecycle updates into the bubbletea event loop.
// Program.Send is safe from any goroutine.
type tuiObserver struct{ p *tea.Program }

func (o tuiObserver) StatusChanged(s session.Status, err error) { o.p.Send(StatusMsg{s, err}) }
func (o tuiObserver) TranscriptChanged(text string)             { o.p.Send(TranscriptMsg{text}) }
func (o tuiObserver) NotesChanged(text string)                  { o.p.Send(NotesMsg{text}) }
func (o tuiObserver) AudioLevel(level float64)                  { o.p.Send(AudioLevelMsg{level}) }

func runTUI(cfg session.Config, model string, device *audio.DeviceInfo, notesEnabled bool) int {
	deviceName := "system default"
	if device != nil {
		deviceName = device.Name
	}

	m := tuiModel{
		status:       session.StatusIdle,
		notesEnabled: notesEnabled,
		modelLine:    model,
		deviceLine:   deviceName,
	}
	p := tea.NewProgram(&m, tea.WithAltScreen())

	cfg.Observer = tuiObserver{p}
	lifecycle := session.New(cfg)
	m.lifecycle = lifecycle
	defer finishSession(lifecycle)

	if _, err := p.Run(); err != nil {
		fmt.Println("TUI error:", err)
		return 1
	}
	return 0
}

func tuiTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			go m.lifecycle.Stop()
			return m, tea.Quit
		case " ", "r":
			m.toggle()
		}

	case StatusMsg:
		prev := m.status
		m.status = msg.Status
		m.errText = ""
		if msg.Err != nil {
			m.errText = msg.Err.Error()
		}
		switch {
		case m.status == session.StatusRecording && prev != session.StatusRecording:
			m.recordingFor = 0
			m.peakLevel = 0
			beep.PlayStart()
		case m.status == session.StatusIdle && prev == session.StatusStopping:
			beep.PlayEnd()
		case m.status == session.StatusError:
			beep.PlayError()
		}

	case TranscriptMsg:
		m.transcript = msg.Text

	case NotesMsg:
		m.notes = msg.Text

	case AudioLevelMsg:
		m.level = msg.Level
		if msg.Level > m.peakLevel {
			m.peakLevel = msg.Level
		}

	case tickMsg:
		if m.status == session.StatusRecording {
			m.recordingFor += 0.25
		}
		return m, tuiTick()
	}

	return m, nil
}

// toggle starts or stops depending on where the lifecycle is. Both calls can
// block briefly on teardown or device acquisition, so they run off the
// update loop.
func (m *tuiModel) toggle() {
	switch m.status {
	case session.StatusIdle, session.StatusError:
		go m.lifecycle.Start()
	case session.StatusRecording:
		go m.lifecycle.Stop()
	}
}

func (m *tuiModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("livetext"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  [%s | mic: %s]", m.modelLine, m.deviceLine)))
	b.WriteString("\n\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")

	if m.status == session.StatusRecording {
		b.WriteString(renderLevelMeter(m.level, m.peakLevel))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	width := m.width
	if width <= 0 {
		width = 80
	}

	b.WriteString(sectionStyle.Render("transcript"))
	b.WriteString("\n")
	if m.transcript == "" {
		b.WriteString(dimStyle.Render("(nothing yet)"))
		b.WriteString("\n")
	} else {
		for _, line := range wrapText(m.transcript, width-2) {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if m.notesEnabled {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("notes"))
		b.WriteString("\n")
		if m.notes == "" {
			b.WriteString(dimStyle.Render("(no turns summarized yet)"))
			b.WriteString("\n")
		} else {
			for _, line := range wrapText(m.notes, width-2) {
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("space/r: record/stop   q: quit"))
	b.WriteString("\n")

	return b.String()
}

func (m *tuiModel) statusLine() string {
	switch m.status {
	case session.StatusIdle:
		return idleStyle.Render("● idle")
	case session.StatusConnecting:
		return connectingStyle.Render("● connecting...")
	case session.StatusRecording:
		return recordingStyle.Render(fmt.Sprintf("● recording %.0fs", m.recordingFor))
	case session.StatusStopping:
		return connectingStyle.Render("● stopping...")
	case session.StatusError:
		return errorStyle.Render("● error: " + m.errText)
	}
	return ""
}

// renderLevelMeter draws a simple bar from the RMS level of the last block.
// Speech on a normalized mic sits roughly in 0.02-0.3 RMS, so the bar is
// scaled to make that range visible.
func renderLevelMeter(level, peak float64) string {
	const width = 30
	filled := min(int(level*3*width), width)
	peakPos := min(int(peak*3*width), width-1)

	var b strings.Builder
	for i := range width {
		switch {
		case i < filled && i >= width*2/3:
			b.WriteString(meterHotStyle.Render("█"))
		case i < filled:
			b.WriteString(meterStyle.Render("█"))
		case i == peakPos:
			b.WriteString(dimStyle.Render("┆"))
		default:
			b.WriteString(dimStyle.Render("·"))
		}
	}
	return b.String()
}

func wrapText(text string, width int) []string {
	if width < 10 {
		width = 10
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		if para == "" {
			lines = append(lines, "")
			continue
		}
		words := strings.Fields(para)
		cur := ""
		for _, w := range words {
			if cur == "" {
				cur = w
			} else if len(cur)+1+len(w) <= width {
				cur += " " + w
			} else {
				lines = append(lines, cur)
				cur = w
			}
		}
		if cur != "" {
			lines = append(lines, cur)
		}
	}
	return lines
}
