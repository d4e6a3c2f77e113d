package main

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stockview/internal/dashboard"
	"stockview/internal/dataset"
	"stockview/internal/domain"
	"stockview/internal/indicator"
	"stockview/internal/render"
)

// Styles.
var (
	symbolStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	colHeaderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	smaStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	rsiStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	volumeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	overboughtStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	oversoldStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	fieldStyles = map[domain.Field]lipgloss.Style{
		domain.FieldOpen:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),  // yellow
		domain.FieldClose: lipgloss.NewStyle().Foreground(lipgloss.Color("208")), // orange
		domain.FieldHigh:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),  // green
		domain.FieldLow:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),   // red
	}
)

// fieldKeys maps toggle keys to price fields.
var fieldKeys = map[string]domain.Field{
	"o": domain.FieldOpen,
	"c": domain.FieldClose,
	"h": domain.FieldHigh,
	"l": domain.FieldLow,
}

// Model.
type model struct {
	ds       *dataset.Dataset
	controls dashboard.Controls
	opts     dashboard.Options
	state    dashboard.ViewState
	derived  dashboard.DerivedSeries
	err      error
	logger   *slog.Logger

	viewport      viewport.Model
	ready         bool
	width, height int
}

func initialModel(ds *dataset.Dataset, controls dashboard.Controls, opts dashboard.Options, logger *slog.Logger) model {
	m := model{
		ds:       ds,
		controls: controls,
		opts:     opts,
		state:    controls.DefaultState(),
		logger:   logger,
	}
	m.recompute()
	return m
}

func (m model) Init() tea.Cmd { return nil }

// apply validates next and, when accepted, makes it the current state and
// recomputes. A rejected state leaves the previous one in place.
func (m *model) apply(next dashboard.ViewState) {
	if err := m.controls.Validate(next); err != nil {
		m.err = err
		m.logger.Warn("rejected selection", "state", next.String(), "error", err)
		return
	}
	m.state = next
	m.recompute()
}

func (m *model) recompute() {
	d, err := dashboard.Recompute(m.ds, m.state, m.opts)
	if err != nil {
		m.err = err
		m.logger.Error("recompute failed", "state", m.state.String(), "error", err)
		return
	}
	m.err = nil
	m.derived = d
	m.logger.Debug("recomputed", "state", m.state.String(), "rows", d.Len())
}

// stepSymbol moves to the neighbouring symbol, keeping the year when the new
// symbol has data for it and otherwise jumping to its latest year.
func (m *model) stepSymbol(delta int) {
	syms := m.controls.Symbols
	if len(syms) == 0 {
		return
	}
	i := sort.SearchStrings(syms, m.state.Symbol)
	i = (i + delta + len(syms)) % len(syms)
	next := m.state
	next.Symbol = syms[i]
	years := m.ds.YearsFor(next.Symbol)
	if len(years) > 0 && !containsInt(years, next.Year) {
		next.Year = years[len(years)-1]
	}
	m.apply(next)
}

// stepYear moves to the neighbouring year that has data for the symbol.
func (m *model) stepYear(delta int) {
	years := m.ds.YearsFor(m.state.Symbol)
	i := sort.SearchInts(years, m.state.Year)
	j := i + delta
	if i < len(years) && years[i] != m.state.Year && delta > 0 {
		j = i
	}
	if j < 0 || j >= len(years) {
		return
	}
	next := m.state
	next.Year = years[j]
	m.apply(next)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up":
			m.stepSymbol(-1)
		case "down":
			m.stepSymbol(1)
		case "left":
			m.stepYear(-1)
		case "right":
			m.stepYear(1)
		case "[", "]":
			next := m.state
			next.SMAWindow = m.controls.SMA.Nudge(next.SMAWindow, direction(key == "]"))
			m.apply(next)
		case "-", "=", "+":
			next := m.state
			next.RSIWindow = m.controls.RSI.Nudge(next.RSIWindow, direction(key != "-"))
			m.apply(next)
		case "home":
			m.apply(m.controls.DefaultState())
		default:
			f, ok := fieldKeys[key]
			if !ok {
				m.viewport, cmd = m.viewport.Update(msg)
				return m, cmd
			}
			m.apply(m.state.Toggle(f))
		}
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerH := 1
		footerH := 1
		vpHeight := max(m.height-headerH-footerH, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	s := m.state
	fieldNames := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		fieldNames[i] = f.Label()
	}
	headerText := fmt.Sprintf(
		" %s  %d    SMA %d    RSI %d    fields: %s    rows: %d ",
		s.Symbol, s.Year, s.SMAWindow, s.RSIWindow, strings.Join(fieldNames, ","), m.derived.Len(),
	)
	headerBar := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("4")).
		Render(padOrTrunc(headerText, m.width))

	pct := m.viewport.ScrollPercent() * 100
	footerLeft := " q quit  up/dn symbol  left/right year  [ ] sma  - = rsi  o c h l fields  home reset"
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := max(m.width-len(footerLeft)-len(footerRight), 0)
	footerText := footerLeft + strings.Repeat(" ", gap) + footerRight
	footerBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("8")).
		Render(padOrTrunc(footerText, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m model) renderContent() string {
	var b strings.Builder
	if m.err != nil {
		b.WriteString(errStyle.Render("  " + m.err.Error()))
		b.WriteString("\n\n")
	}
	d := m.derived
	if d.Len() == 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  No data for %s in %d", m.state.Symbol, m.state.Year)))
		b.WriteString("\n")
		return b.String()
	}

	width := max(m.width-10, 10)
	renderCharts(&b, d, width)
	b.WriteString("\n")
	renderTable(&b, d, m.state.SMAWindow, m.state.RSIWindow)
	return b.String()
}

// renderCharts draws one sparkline per visible price field and the SMA on a
// shared scale, then the RSI on a fixed 0-100 scale and the volume.
func renderCharts(b *strings.Builder, d dashboard.DerivedSeries, width int) {
	var cols [][]float64
	for _, f := range d.Fields {
		cols = append(cols, d.Prices[f])
	}
	cols = append(cols, d.SMA)
	lo, hi, ok := dashboard.Range(cols...)

	b.WriteString(symbolStyle.Render(fmt.Sprintf("  %s %d", d.Symbol, d.Year)))
	if ok {
		b.WriteString(dimStyle.Render(fmt.Sprintf("   %s .. %s", dashboard.FormatPrice(lo), dashboard.FormatPrice(hi))))
	}
	b.WriteString("\n")
	for _, f := range d.Fields {
		writeSpark(b, f.Label(), fieldStyles[f], d.Prices[f], lo, hi, width)
	}
	if ok {
		writeSpark(b, "SMA", smaStyle, d.SMA, lo, hi, width)
	}

	b.WriteString("\n")
	writeSpark(b, "RSI", rsiStyle, d.RSI, 0, 100, width)
	last, found := indicator.Last(d.RSI)
	if !found {
		last = math.NaN()
	}
	label := dashboard.FormatOscillator(last)
	switch {
	case last >= render.RSIUpper:
		label = overboughtStyle.Render(label + " overbought")
	case last <= render.RSILower:
		label = oversoldStyle.Render(label + " oversold")
	}
	b.WriteString(dimStyle.Render("        last ") + label + "\n")

	vols := make([]float64, len(d.Volume))
	var vmax int64
	for i, v := range d.Volume {
		vols[i] = float64(v)
		vmax = max(vmax, v)
	}
	writeSpark(b, "Volume", volumeStyle, vols, 0, float64(vmax), width)
}

func writeSpark(b *strings.Builder, label string, style lipgloss.Style, values []float64, lo, hi float64, width int) {
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-7s", label)))
	b.WriteString(style.Render(dashboard.Sparkline(resample(values, width), lo, hi)))
	b.WriteString("\n")
}

func renderTable(b *strings.Builder, d dashboard.DerivedSeries, smaWindow, rsiWindow int) {
	header := fmt.Sprintf("  %-10s", "Date")
	for _, f := range d.Fields {
		header += fmt.Sprintf(" %9s", f.Label())
	}
	header += fmt.Sprintf(" %9s %7s %9s", fmt.Sprintf("SMA%d", smaWindow), fmt.Sprintf("RSI%d", rsiWindow), "Volume")
	b.WriteString(colHeaderStyle.Render(header))
	b.WriteString("\n")

	for i := d.Len() - 1; i >= 0; i-- {
		fmt.Fprintf(b, "  %-10s", d.Dates[i].Format("2006-01-02"))
		for _, f := range d.Fields {
			b.WriteString(" ")
			b.WriteString(fieldStyles[f].Render(fmt.Sprintf("%9s", dashboard.FormatPrice(d.Prices[f][i]))))
		}
		fmt.Fprintf(b, " %9s", dashboard.FormatPrice(d.SMA[i]))
		b.WriteString(" ")
		b.WriteString(rsiStyle.Render(fmt.Sprintf("%7s", dashboard.FormatOscillator(d.RSI[i]))))
		fmt.Fprintf(b, " %9s\n", dashboard.FormatVolume(d.Volume[i]))
	}
}

// resample picks n evenly spaced values from values, or returns values
// unchanged when it already fits.
func resample(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = values[i*len(values)/n]
	}
	return out
}

func direction(up bool) int {
	if up {
		return 1
	}
	return -1
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func padOrTrunc(s string, width int) string {
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}
