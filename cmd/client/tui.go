package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yitech/candlefeed/model/candle"
	"github.com/yitech/candlefeed/rpc"
)

// ── styles ────────────────────────────────────────────────────────────────────

var (
	bullStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#26a641"))
	bearStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e05c5c"))
	wickStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	axisStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#aaaaaa"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
)

// ── messages ──────────────────────────────────────────────────────────────────

type candleMsg struct{ c candle.Candle }

// ── model ─────────────────────────────────────────────────────────────────────

type model struct {
	key    rpc.FeedKey
	nKline int
	ch     <-chan candle.Candle

	candles []candle.Candle // ascending by OpenTime, at most nKline
	updates int
	width   int
	height  int
}

func newModel(key rpc.FeedKey, nKline int, ch <-chan candle.Candle) model {
	return model{
		key:    key,
		nKline: nKline,
		ch:     ch,
	}
}

// ── Init / Update / View ──────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return waitForCandle(m.ch)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case candleMsg:
		m.upsert(msg.c)
		m.updates++
		return m, waitForCandle(m.ch)
	}

	return m, nil
}

func (m model) View() string {
	if m.width == 0 {
		return "connecting…"
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(m.renderChart())
	b.WriteByte('\n')
	b.WriteString(footerStyle.Render("[q] quit"))
	return b.String()
}

// ── helpers ───────────────────────────────────────────────────────────────────

// waitForCandle blocks on the channel and returns a Cmd that fires candleMsg.
func waitForCandle(ch <-chan candle.Candle) tea.Cmd {
	return func() tea.Msg {
		return candleMsg{<-ch}
	}
}

// upsert replaces the candle with the same OpenTime or inserts in order,
// keeping the newest nKline candles. Snapshot replay and gap repairs can
// deliver candles older than the last one shown.
func (m *model) upsert(c candle.Candle) {
	i := sort.Search(len(m.candles), func(i int) bool { return m.candles[i].OpenTime >= c.OpenTime })
	if i < len(m.candles) && m.candles[i].OpenTime == c.OpenTime {
		m.candles[i] = c
		return
	}
	m.candles = append(m.candles, candle.Candle{})
	copy(m.candles[i+1:], m.candles[i:])
	m.candles[i] = c
	if len(m.candles) > m.nKline {
		m.candles = m.candles[len(m.candles)-m.nKline:]
	}
}

// ── header ────────────────────────────────────────────────────────────────────

func (m model) renderHeader() string {
	title := fmt.Sprintf("%s %s  %s", m.key.Exchange, m.key.Pair, m.key.Interval)
	if len(m.candles) == 0 {
		return headerStyle.Render(title + "  waiting for data…")
	}
	c := m.candles[len(m.candles)-1]
	return headerStyle.Render(fmt.Sprintf(
		"%s  %s  O:%s  H:%s  L:%s  C:%s  V:%s  %d/%d  updates:%d",
		title, time.Unix(c.OpenTime, 0).UTC().Format("01-02 15:04"),
		c.Open, c.High, c.Low, c.Close, c.Volume,
		len(m.candles), m.nKline, m.updates,
	))
}

// ── chart ─────────────────────────────────────────────────────────────────────

const (
	yAxisWidth = 11 // "  12345.67 │"
	labelEvery = 10
)

func (m model) renderChart() string {
	// Reserve: 1 header + chart rows + 1 x-axis line + 1 time-label line + 1 footer
	chartH := m.height - 4
	if chartH < 3 {
		chartH = 3
	}

	candles := m.candles
	chartW := m.width - yAxisWidth
	maxCols := chartW / 2 // each candle occupies 2 chars
	if maxCols < 1 {
		maxCols = 1
	}
	if len(candles) > maxCols {
		candles = candles[len(candles)-maxCols:]
	}

	hi, lo := priceRange(candles)
	if hi == lo {
		hi = lo + 1
	}

	cols := len(candles) * 2
	grid := make([][]string, chartH)
	for r := range grid {
		grid[r] = make([]string, cols)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}

	for i, c := range candles {
		renderCandle(grid, c, i*2, chartH, hi, lo)
	}

	var b strings.Builder
	for row := 0; row < chartH; row++ {
		price := rowToPrice(row, chartH, hi, lo)
		b.WriteString(axisStyle.Render(fmt.Sprintf("%9.2f │", price)))
		b.WriteString(strings.Join(grid[row], ""))
		b.WriteByte('\n')
	}

	b.WriteString(axisStyle.Render(strings.Repeat("─", yAxisWidth)))
	b.WriteString(axisStyle.Render(strings.Repeat("─", cols)))
	b.WriteByte('\n')

	b.WriteString(strings.Repeat(" ", yAxisWidth))
	b.WriteString(axisStyle.Render(timeLabels(candles)))
	b.WriteByte('\n')

	return b.String()
}

// timeLabels returns a 2*len(candles) wide line with an HH:MM label under
// every labelEvery-th candle.
func timeLabels(candles []candle.Candle) string {
	line := []byte(strings.Repeat(" ", len(candles)*2))
	for i := 0; i < len(candles); i += labelEvery {
		label := time.Unix(candles[i].OpenTime, 0).UTC().Format("15:04")
		if i*2+len(label) > len(line) {
			break
		}
		copy(line[i*2:], label)
	}
	return string(line)
}

// renderCandle paints one candle into the grid at column x (0-indexed, 2 wide).
func renderCandle(grid [][]string, c candle.Candle, x, chartH int, hi, lo float64) {
	open := c.Open.InexactFloat64()
	cls := c.Close.InexactFloat64()

	style := bullStyle
	if c.Close.LessThan(c.Open) {
		style = bearStyle
	}

	fH := float64(chartH)
	bodyTop := priceToRow(math.Max(open, cls), fH, hi, lo)
	bodyBot := priceToRow(math.Min(open, cls), fH, hi, lo)
	wickTop := priceToRow(c.High.InexactFloat64(), fH, hi, lo)
	wickBot := priceToRow(c.Low.InexactFloat64(), fH, hi, lo)

	for row := 0; row < chartH; row++ {
		inBody := row >= bodyTop && row <= bodyBot
		inWick := row >= wickTop && row <= wickBot

		left, right := " ", " "
		switch {
		case inBody:
			left = style.Render("█")
			right = style.Render("█")
		case inWick:
			left = wickStyle.Render("│")
		}

		if x < len(grid[row]) {
			grid[row][x] = left
		}
		if x+1 < len(grid[row]) {
			grid[row][x+1] = right
		}
	}
}

// priceToRow converts a price to a grid row (0 = top = high).
func priceToRow(price, chartH float64, hi, lo float64) int {
	if hi == lo {
		return int(chartH) / 2
	}
	row := (hi - price) / (hi - lo) * (chartH - 1)
	r := int(math.Round(row))
	if r < 0 {
		r = 0
	}
	if r >= int(chartH) {
		r = int(chartH) - 1
	}
	return r
}

// rowToPrice is the inverse of priceToRow.
func rowToPrice(row, chartH int, hi, lo float64) float64 {
	if chartH <= 1 {
		return hi
	}
	return hi - float64(row)/float64(chartH-1)*(hi-lo)
}

// priceRange returns the overall high and low across the visible candles.
func priceRange(candles []candle.Candle) (hi, lo float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	h, l := candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High.GreaterThan(h) {
			h = c.High
		}
		if c.Low.LessThan(l) {
			l = c.Low
		}
	}
	return h.InexactFloat64(), l.InexactFloat64()
}
