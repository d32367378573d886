package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/vrange"
	"github.com/wippyai/vrange/controller"
	"github.com/wippyai/vrange/frame"
	"github.com/wippyai/vrange/gateway"
	"github.com/wippyai/vrange/viewport"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.PageDown, k.Bottom, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Top, k.Bottom},
		{k.Help, k.Quit},
	}
}

var defaultKeys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "b"), key.WithHelp("pgup/b", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", " ", "f"), key.WithHelp("pgdn/f", "page down")),
	Top:      key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first item")),
	Bottom:   key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last item")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

type engineMsg struct {
	err error
}

func tick() tea.Cmd {
	return tea.Tick(frame.DefaultInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// interactiveModel renders the published range. Its Update goroutine owns
// the controller: frames are stepped from tick messages, so range
// callbacks run there too.
type interactiveModel struct {
	ctx     context.Context
	err     error
	gw      *gateway.Gateway
	ctrl    *controller.Controller
	vp      *viewport.Viewport
	frames  *frame.Queue
	rng     *vrange.VirtualRange
	detach  func()
	notice  string
	help    help.Model
	keys    keyMap
	cfg     Config
	sum     summary
	width   int
	height  int
	axis    vrange.Axis
	stopped bool
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.initEngine, tick())
}

// initEngine runs off the Update goroutine; the gateway is safe for
// concurrent use.
func (m *interactiveModel) initEngine() tea.Msg {
	return engineMsg{err: m.gw.Initialize(m.ctx)}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.frames.Step()
		return m, tick()

	case engineMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.start()

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		m.notice = ""
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.stop()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.resize(m.width, m.height)
		case key.Matches(msg, m.keys.Up):
			m.vp.ScrollBy(m.axis, -1)
		case key.Matches(msg, m.keys.Down):
			m.vp.ScrollBy(m.axis, 1)
		case key.Matches(msg, m.keys.PageUp):
			m.vp.ScrollBy(m.axis, -m.vp.ViewportExtent(m.axis))
		case key.Matches(msg, m.keys.PageDown):
			m.vp.ScrollBy(m.axis, m.vp.ViewportExtent(m.axis))
		case key.Matches(msg, m.keys.Top):
			m.scrollToIndex(0)
		case key.Matches(msg, m.keys.Bottom):
			m.scrollToIndex(m.cfg.Items - 1)
		}
	}
	return m, nil
}

func (m *interactiveModel) start() {
	if err := m.ctrl.Setup(m.ctx); err != nil {
		m.err = err
		return
	}
	m.ctrl.OnRange(func(r *vrange.VirtualRange) {
		m.rng = r
		m.sum.ranges++
		m.vp.SetContentSize(m.axis, r.TotalHeight)
	})
	detach, err := m.ctrl.Attach(m.vp)
	if err != nil {
		m.err = err
		return
	}
	m.detach = detach
}

func (m *interactiveModel) stop() {
	if m.stopped {
		return
	}
	m.stopped = true
	m.sum.multiplier = m.ctrl.ScrollMultiplier()
	m.sum.uniform = m.ctrl.IsUniform()
	if m.detach != nil {
		m.detach()
	}
	if err := m.ctrl.Close(m.ctx); err != nil && m.err == nil {
		m.err = err
	}
}

func (m *interactiveModel) scrollToIndex(index int) {
	if err := m.ctrl.ScrollToIndex(index, vrange.BehaviorSmooth); err != nil {
		m.notice = err.Error()
	}
}

// chrome is the header, the status line and the help block.
func (m *interactiveModel) chrome() int {
	return 2 + lipgloss.Height(m.help.View(m.keys))
}

func (m *interactiveModel) resize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width
	m.vp.SetExtent(m.axis, float64(max(1, height-m.chrome())))
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("vlist"))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" %s · %d items · %s", m.cfg.Mode, m.cfg.Items, m.gw.Status().Status)))
	b.WriteString("\n")

	body := max(1, m.height-m.chrome())
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString(strings.Repeat("\n", body))
	case m.rng == nil:
		b.WriteString("Loading engine...")
		b.WriteString(strings.Repeat("\n", body))
	default:
		for _, r := range layoutRows(m.rng, m.vp.ScrollPosition(m.axis), body) {
			b.WriteString(m.renderRow(r))
			b.WriteString("\n")
		}
	}

	b.WriteString(statusStyle.Render(m.status()))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *interactiveModel) status() string {
	if m.notice != "" {
		return m.notice
	}
	if m.rng == nil {
		return ""
	}
	stats := m.gw.Status().Stats
	return fmt.Sprintf("range [%d,%d)  pos %.0f/%.0f  padding %.0f  x%.4g  %.0f ops/s",
		m.rng.StartIndex, m.rng.EndIndex,
		m.vp.ScrollPosition(m.axis), m.rng.TotalHeight,
		m.rng.PaddingTop, m.ctrl.ScrollMultiplier(), stats.OpsPerSecond)
}

func (m *interactiveModel) renderRow(r row) string {
	if r.index < 0 {
		return ""
	}
	label := "  │"
	if r.first {
		label = fmt.Sprintf("▍ item %d (%g rows)", r.index, m.cfg.SizeAt(r.index))
	}
	return lipgloss.NewStyle().Foreground(rowColor(r.index)).Render(label)
}

// rowColor walks the hue wheel so neighbouring items never share a colour.
func rowColor(index int) lipgloss.Color {
	c := colorful.Hsv(float64(index*37%360), 0.55, 0.9)
	return lipgloss.Color(c.Hex())
}

type row struct {
	index int
	first bool
}

// layoutRows maps n terminal rows starting at scroll position pos to the
// items of r. Items are placed at PaddingTop plus their offset. Rows
// outside every item have index -1.
func layoutRows(r *vrange.VirtualRange, pos float64, n int) []row {
	rows := make([]row, n)
	base := math.Floor(pos)
	k := 0
	for i := range rows {
		rows[i].index = -1
		if r == nil {
			continue
		}
		y := base + float64(i)
		for k < r.Len() && r.PaddingTop+r.Offsets[k]+r.Sizes[k] <= y {
			k++
		}
		if k < r.Len() && r.PaddingTop+r.Offsets[k] <= y {
			rows[i] = row{index: r.Items[k], first: y < r.PaddingTop+r.Offsets[k]+1}
		}
	}
	return rows
}

func runInteractive(ctx context.Context, gw *gateway.Gateway, cfg Config, logger *zap.Logger, out *os.File) (summary, error) {
	q := frame.NewQueue()
	axis := axisOf(cfg)
	ctrl, err := newController(gw, q, cfg, logger)
	if err != nil {
		return summary{}, err
	}

	m := &interactiveModel{
		ctx:    ctx,
		gw:     gw,
		ctrl:   ctrl,
		vp:     viewport.New(q, 0),
		frames: q,
		help:   help.New(),
		keys:   defaultKeys,
		cfg:    cfg,
		axis:   axis,
	}
	if w, h, err := term.GetSize(int(out.Fd())); err == nil {
		m.resize(w, h)
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(out))
	_, err = p.Run()
	m.stop()
	if err == nil {
		err = m.err
	}
	return m.sum, err
}
