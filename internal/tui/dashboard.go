// Package tui renders a live terminal dashboard for batch downloads.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/LuneZ99/bili-downloader/internal/download"
	"github.com/LuneZ99/bili-downloader/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

const maxEventLines = 8

type eventMsg download.Event

type jobDoneMsg model.JobResult

type batchDoneMsg struct{}

type jobRow struct {
	bvid    string
	title   string
	page    int
	pages   int
	phase   string
	written int64
	total   int64
	bar     progress.Model
}

type dashModel struct {
	total   int
	ok      int
	partial int
	failed  int

	rows   map[string]*jobRow
	events []string
	width  int
	done   bool
}

func newDashModel(total int) dashModel {
	return dashModel{
		total: total,
		rows:  make(map[string]*jobRow),
	}
}

func (m dashModel) Init() tea.Cmd {
	return nil
}

func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		for _, row := range m.rows {
			row.bar.Width = barWidth(msg.Width)
		}

	case eventMsg:
		ev := download.Event(msg)
		row, ok := m.rows[ev.BVID]
		if !ok {
			bar := progress.New(progress.WithDefaultGradient())
			bar.Width = barWidth(m.width)
			row = &jobRow{bvid: ev.BVID, bar: bar}
			m.rows[ev.BVID] = row
		}
		if ev.Title != "" {
			row.title = ev.Title
		}
		row.page = ev.Page
		row.pages = ev.Pages
		row.phase = ev.Phase
		row.written = ev.Written
		row.total = ev.Total

	case jobDoneMsg:
		res := model.JobResult(msg)
		delete(m.rows, res.BVID)
		switch res.Status {
		case model.AllOk:
			m.ok++
			m.pushEvent(okStyle.Render("done    ") + " " + res.BVID + "  " + res.Title)
		case model.PartialOk:
			m.partial++
			m.pushEvent(warnStyle.Render("partial ") + " " + res.BVID + "  " + res.Title)
		default:
			m.failed++
			detail := res.Title
			if res.Err != nil {
				detail = res.Err.Error()
			}
			m.pushEvent(errorStyle.Render("failed  ") + " " + res.BVID + "  " + detail)
		}

	case batchDoneMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *dashModel) pushEvent(line string) {
	m.events = append([]string{line}, m.events...)
	if len(m.events) > maxEventLines {
		m.events = m.events[:maxEventLines]
	}
}

func (m dashModel) View() string {
	var b strings.Builder

	finished := m.ok + m.partial + m.failed
	header := fmt.Sprintf("bili-downloader  %d/%d videos", finished, m.total)
	counts := fmt.Sprintf("ok %d  partial %d  failed %d", m.ok, m.partial, m.failed)
	b.WriteString(titleStyle.Render(header) + "  " + mutedStyle.Render(counts) + "\n\n")

	bvids := make([]string, 0, len(m.rows))
	for bvid := range m.rows {
		bvids = append(bvids, bvid)
	}
	sort.Strings(bvids)

	if len(bvids) == 0 && !m.done {
		b.WriteString(mutedStyle.Render("(waiting for jobs)") + "\n")
	}
	for _, bvid := range bvids {
		row := m.rows[bvid]
		b.WriteString(row.render() + "\n")
	}

	if len(m.events) > 0 {
		b.WriteString("\n")
		for _, e := range m.events {
			b.WriteString(e + "\n")
		}
	}
	b.WriteString("\n" + mutedStyle.Render("q to quit") + "\n")
	return b.String()
}

func (r *jobRow) render() string {
	title := r.title
	if title == "" {
		title = r.bvid
	}
	if runes := []rune(title); len(runes) > 52 {
		title = string(runes[:52]) + "..."
	}

	label := fmt.Sprintf("%s  %s", r.bvid, title)
	if r.pages > 1 {
		label += fmt.Sprintf("  P%d/%d", r.page, r.pages)
	}
	label += "  " + r.phase

	if r.total > 0 {
		pct := float64(r.written) / float64(r.total)
		if pct > 1 {
			pct = 1
		}
		size := fmt.Sprintf("%s/%s", humanize.IBytes(uint64(r.written)), humanize.IBytes(uint64(r.total)))
		return label + "\n  " + r.bar.ViewAs(pct) + "  " + mutedStyle.Render(size)
	}
	if r.written > 0 {
		return label + "  " + mutedStyle.Render(humanize.IBytes(uint64(r.written)))
	}
	return label
}

func barWidth(termWidth int) int {
	if termWidth <= 0 {
		return 40
	}
	w := termWidth - 30
	if w < 10 {
		w = 10
	}
	if w > 60 {
		w = 60
	}
	return w
}

// Dashboard drives the batch view. Events may arrive from any
// goroutine; the bubbletea program serializes them.
type Dashboard struct {
	prog *tea.Program
	done chan error
}

func New(totalVideos int) *Dashboard {
	return &Dashboard{
		prog: tea.NewProgram(newDashModel(totalVideos)),
		done: make(chan error, 1),
	}
}

// Start runs the program in the background. Wait reports its outcome.
func (d *Dashboard) Start() {
	go func() {
		_, err := d.prog.Run()
		d.done <- err
	}()
}

// HandleEvent is a download.Options.Events callback.
func (d *Dashboard) HandleEvent(ev download.Event) {
	d.prog.Send(eventMsg(ev))
}

// JobFinished moves a video from the active rows into the event log.
func (d *Dashboard) JobFinished(res model.JobResult) {
	d.prog.Send(jobDoneMsg(res))
}

// Finish asks the program to quit and waits for the terminal to be
// restored.
func (d *Dashboard) Finish() error {
	d.prog.Send(batchDoneMsg{})
	return <-d.done
}
