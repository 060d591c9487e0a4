// Package main – watch subcommand: live log table rendered with bubbletea + lipgloss.
package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	admingrpc "github.com/i-melnichenko/dtm0-lab/internal/transport/grpc/admin"
)

const watchRefreshInterval = 500 * time.Millisecond

// segmentNearFull is the used/capacity ratio at which a node is degraded.
const segmentNearFull = 0.9

// ---- Data types -------------------------------------------------------------

type watchConn struct {
	addr   string
	client *admingrpc.Client
}

type watchRow struct {
	addr       string
	nodeID     string
	backend    string
	status     string
	records    int64
	stable     int64
	stableLast string
	used       uint64
	capacity   uint64
	objects    int64
	uptime     time.Duration
	err        string
}

// ---- Bubbletea messages -----------------------------------------------------

type tickMsg time.Time

type rowsMsg struct {
	rows []watchRow
	ts   time.Time
}

// ---- Lipgloss styles --------------------------------------------------------

type uiStyles struct {
	dotHealthy   lipgloss.Style
	dotDegraded  lipgloss.Style
	dotUnavail   lipgloss.Style
	dotSelected  lipgloss.Style
	addr         lipgloss.Style
	backendDur   lipgloss.Style
	backendVol   lipgloss.Style
	metric       lipgloss.Style
	stableVal    lipgloss.Style
	usedNorm     lipgloss.Style
	usedHigh     lipgloss.Style
	timeVal      lipgloss.Style
	tableHeader  lipgloss.Style
	appHeader    lipgloss.Style
	tsStyle      lipgloss.Style
	footer       lipgloss.Style
	divider      lipgloss.Style
	alertsHdr    lipgloss.Style
	errorDot     lipgloss.Style
	errorKindSty lipgloss.Style
	paneLabel    lipgloss.Style
	paneValue    lipgloss.Style
	sumDim       lipgloss.Style
	sumHealthy   lipgloss.Style
	sumErrors    lipgloss.Style
	sumRecords   lipgloss.Style
	sumStable    lipgloss.Style
	nearFull     lipgloss.Style
}

var styles = buildStyles()

func buildStyles() uiStyles {
	// "1"=red  "2"=green  "3"=yellow  "4"=blue  "5"=magenta  "6"=cyan
	// "7"=white  "8"=bright-black
	return uiStyles{
		dotHealthy:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		dotDegraded:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		dotUnavail:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		dotSelected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		addr:         lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("6")),
		backendDur:   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		backendVol:   lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		metric:       lipgloss.NewStyle().Faint(true),
		stableVal:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		usedNorm:     lipgloss.NewStyle().Faint(true),
		usedHigh:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		timeVal:      lipgloss.NewStyle().Faint(true),
		tableHeader:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7")).Background(lipgloss.Color("8")),
		appHeader:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		tsStyle:      lipgloss.NewStyle().Faint(true),
		footer:       lipgloss.NewStyle().Faint(true),
		divider:      lipgloss.NewStyle().Faint(true),
		alertsHdr:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
		errorDot:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		errorKindSty: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		paneLabel:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		paneValue:    lipgloss.NewStyle().Faint(true),
		sumDim:       lipgloss.NewStyle().Faint(true),
		sumHealthy:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		sumErrors:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		sumRecords:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		sumStable:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		nearFull:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	}
}

// ---- Column widths ----------------------------------------------------------

type watchColWidths struct {
	addr    int
	node    int
	backend int
}

// watchColumnsForWidth computes variable column widths to fill contentWidth.
// Returns (cols, showUptime) where showUptime indicates the UP column is visible.
func watchColumnsForWidth(rows []watchRow, contentWidth int) (watchColWidths, bool) {
	maxAddr := len("ADDR")
	maxNode := len("NODE")
	for _, r := range rows {
		maxAddr = maxInt(maxAddr, len(r.addr))
		maxNode = maxInt(maxNode, len(r.nodeID))
	}
	col := watchColWidths{
		addr:    clampInt(maxAddr, 8, 14),
		node:    clampInt(maxNode, 4, 8),
		backend: len("persistent"),
	}

	showUptime := contentWidth >= 90
	// ST(2)+RECS(6)+STBL(6)+USED(8)+CAP(8)+OBJS(6)+8 spaces = 44, UP adds 9.
	fixed := 44
	if showUptime {
		fixed = 53
	}
	extra := contentWidth - fixed - (col.addr + col.node + col.backend)
	if extra < 0 {
		deficit := -extra
		for _, s := range []struct {
			cur *int
			min int
		}{
			{&col.addr, 4},
			{&col.backend, 4},
			{&col.node, 4},
		} {
			if deficit == 0 {
				break
			}
			capacity := *s.cur - s.min
			if capacity <= 0 {
				continue
			}
			delta := minInt(deficit, capacity)
			*s.cur -= delta
			deficit -= delta
		}
		return col, showUptime
	}
	col.addr += minInt(extra, 8)
	return col, showUptime
}

// ---- Cell renderers ---------------------------------------------------------

func renderStatusDot(status, errStr string, selected bool) string {
	if selected {
		return styles.dotSelected.Render("▶") + " "
	}
	if errStr != "" {
		return styles.dotUnavail.Render("●") + " "
	}
	if status == "degraded" {
		return styles.dotDegraded.Render("●") + " "
	}
	return styles.dotHealthy.Render("●") + " "
}

func renderBackendCell(s string, width int) string {
	padded := fmt.Sprintf("%-*s", width, shorten(s, width))
	if s == "volatile" {
		return styles.backendVol.Render(padded)
	}
	return styles.backendDur.Render(padded)
}

func renderUsedCell(used, capacity uint64, width int) string {
	padded := fmt.Sprintf("%*s", width, formatBytes(used))
	if nearFull(used, capacity) {
		return styles.usedHigh.Render(padded)
	}
	return styles.usedNorm.Render(padded)
}

func renderCapCell(capacity uint64, width int) string {
	s := "-"
	if capacity > 0 {
		s = formatBytes(capacity)
	}
	return styles.metric.Render(fmt.Sprintf("%*s", width, s))
}

// makeTableRow builds the single-line string for one watched node.
// selected=true replaces the status dot with the cursor arrow ▶.
func makeTableRow(r watchRow, cols watchColWidths, showUptime, selected bool) string {
	dot := renderStatusDot(r.status, r.err, selected)
	addr := styles.addr.Render(fmt.Sprintf("%-*s", cols.addr, shorten(r.addr, cols.addr)))

	if r.err != "" {
		dash := "-"
		line := dot + " " + addr +
			" " + fmt.Sprintf("%-*s", cols.node, dash) +
			" " + fmt.Sprintf("%-*s", cols.backend, dash) +
			" " + fmt.Sprintf("%6s", dash) +
			" " + fmt.Sprintf("%6s", dash) +
			" " + fmt.Sprintf("%8s", dash) +
			" " + fmt.Sprintf("%8s", dash) +
			" " + fmt.Sprintf("%6s", dash)
		if showUptime {
			line += " " + fmt.Sprintf("%8s", dash)
		}
		return line
	}

	line := dot + " " + addr +
		" " + fmt.Sprintf("%-*s", cols.node, shorten(r.nodeID, cols.node)) +
		" " + renderBackendCell(r.backend, cols.backend) +
		" " + styles.metric.Render(fmt.Sprintf("%6d", r.records)) +
		" " + styles.stableVal.Render(fmt.Sprintf("%6d", r.stable)) +
		" " + renderUsedCell(r.used, r.capacity, 8) +
		" " + renderCapCell(r.capacity, 8) +
		" " + styles.metric.Render(fmt.Sprintf("%6d", r.objects))
	if showUptime {
		line += " " + styles.timeVal.Render(fmt.Sprintf("%8s", formatUptime(r.uptime)))
	}
	return line
}

// renderHeader returns the styled table header line padded to contentWidth.
func renderHeader(cols watchColWidths, showUptime bool, contentWidth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-2s", "ST")
	fmt.Fprintf(&b, " %-*s", cols.addr, headerLabel("ADDR", cols.addr))
	fmt.Fprintf(&b, " %-*s", cols.node, headerLabel("NODE", cols.node))
	fmt.Fprintf(&b, " %-*s", cols.backend, headerLabel("BACKEND", cols.backend))
	fmt.Fprintf(&b, " %6s", "RECS")
	fmt.Fprintf(&b, " %6s", "STBL")
	fmt.Fprintf(&b, " %8s", "USED")
	fmt.Fprintf(&b, " %8s", "CAP")
	fmt.Fprintf(&b, " %6s", "OBJS")
	if showUptime {
		fmt.Fprintf(&b, " %8s", "UP")
	}
	return styles.tableHeader.Width(contentWidth).MaxWidth(contentWidth).Render(b.String())
}

// renderSummary returns the "[N total] [N healthy] ..." line.
func renderSummary(rows []watchRow) string {
	var healthy, errorsN int
	var records, stable int64
	for _, r := range rows {
		if r.err != "" {
			errorsN++
			continue
		}
		if r.status == "healthy" {
			healthy++
		}
		records += r.records
		stable += r.stable
	}
	bracket := func(st lipgloss.Style, label string, n int64) string {
		d := styles.sumDim
		return d.Render("[") + st.Render(fmt.Sprintf("%d", n)) + d.Render(" "+label+"]")
	}
	return strings.Join([]string{
		bracket(lipgloss.NewStyle(), "total", int64(len(rows))),
		bracket(styles.sumHealthy, "healthy", int64(healthy)),
		bracket(styles.sumErrors, "errors", int64(errorsN)),
		bracket(styles.sumRecords, "records", records),
		bracket(styles.sumStable, "stable", stable),
	}, " ")
}

// buildAlertLines returns alert lines (without the divider/header).
func buildAlertLines(rows []watchRow, contentWidth int) []string {
	var lines []string
	for _, r := range rows {
		if r.err != "" {
			summary := shorten(errorSummary(r.err), maxInt(20, contentWidth-28))
			lines = append(lines, fmt.Sprintf("%s %s %s %s",
				styles.errorDot.Render("●"),
				r.addr,
				styles.errorKindSty.Render(errorKind(r.err)),
				summary,
			))
			continue
		}
		if nearFull(r.used, r.capacity) {
			lines = append(lines, fmt.Sprintf("%s %s used=%s cap=%s (%s)",
				styles.nearFull.Render("SEGMENT_NEAR_FULL"),
				r.nodeID,
				formatBytes(r.used),
				formatBytes(r.capacity),
				"prune stable records or raise capacity",
			))
		}
	}
	return lines
}

// ---- Bubbletea model --------------------------------------------------------

type watchModel struct {
	rows       []watchRow
	ts         time.Time
	conns      []watchConn
	timeout    time.Duration
	width      int
	height     int
	cursor     int
	scrollOff  int
	selectedID string
	showUptime bool
	cols       watchColWidths
}

func newWatchModel(conns []watchConn, timeout time.Duration) watchModel {
	return watchModel{
		conns:   conns,
		timeout: timeout,
		width:   120,
		height:  40,
	}
}

func (m watchModel) Init() tea.Cmd {
	// rowsMsg schedules the next tick, so exactly one poll is in flight.
	return m.pollCmd()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcCols()
		return m, nil

	case tickMsg:
		return m, m.pollCmd()

	case rowsMsg:
		m.rows = msg.rows
		m.ts = msg.ts
		m.recalcCols()
		m.restoreSelection()
		tickFn := func(t time.Time) tea.Msg { return tickMsg(t) }
		return m, tea.Tick(watchRefreshInterval, tickFn)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			m.moveCursor(-1)
		case "down", "j":
			m.moveCursor(1)
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	contentWidth := m.width - 2
	if contentWidth <= 0 {
		contentWidth = 80
	}

	var b strings.Builder

	b.WriteString("  ")
	b.WriteString(styles.appHeader.Render("DTM0 log"))
	b.WriteString("  ")
	b.WriteString(styles.tsStyle.Render(m.ts.Format(time.RFC3339)))
	b.WriteString("\n")

	b.WriteString(renderSummary(m.rows))
	b.WriteString("\n\n")

	b.WriteString(renderHeader(m.cols, m.showUptime, contentWidth))
	b.WriteString("\n")

	visRows := m.visibleRowCount()
	start := m.scrollOff
	end := minInt(start+visRows, len(m.rows))
	for i := start; i < end; i++ {
		b.WriteString(makeTableRow(m.rows[i], m.cols, m.showUptime, i == m.cursor))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	through := "-"
	if m.cursor >= 0 && m.cursor < len(m.rows) && m.rows[m.cursor].stableLast != "" {
		through = m.rows[m.cursor].stableLast
	}
	b.WriteString("  ")
	b.WriteString(styles.paneLabel.Render("stable through:"))
	b.WriteString(" ")
	b.WriteString(styles.paneValue.Render(shorten(through, maxInt(10, contentWidth-20))))
	b.WriteString("\n")

	alertLines := buildAlertLines(m.rows, contentWidth)
	if len(alertLines) > 0 {
		b.WriteString(styles.divider.Render(strings.Repeat("-", contentWidth)))
		b.WriteString("\n")
		b.WriteString(styles.alertsHdr.Render("Alerts"))
		b.WriteString("\n")
		for _, line := range alertLines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString("  ")
	b.WriteString(styles.footer.Render("Ctrl+C to exit"))

	// Fill to the terminal height so a shorter frame overwrites stale lines.
	out := b.String()
	if m.height > 0 {
		lines := strings.Split(out, "\n")
		for len(lines) < m.height {
			lines = append(lines, "")
		}
		return strings.Join(lines, "\n")
	}
	return out
}

// ---- Model helpers ----------------------------------------------------------

func (m *watchModel) recalcCols() {
	contentWidth := m.width - 2
	if contentWidth <= 0 {
		contentWidth = 80
	}
	m.cols, m.showUptime = watchColumnsForWidth(m.rows, contentWidth)
}

func (m *watchModel) restoreSelection() {
	if m.selectedID == "" {
		if len(m.rows) > 0 {
			m.cursor = 0
			m.selectedID = m.rows[0].addr
		}
		return
	}
	for i, r := range m.rows {
		if r.addr == m.selectedID {
			m.cursor = i
			m.clampScroll()
			return
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = maxInt(0, len(m.rows)-1)
	}
	if len(m.rows) > 0 {
		m.selectedID = m.rows[m.cursor].addr
	}
}

func (m *watchModel) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = clampInt(m.cursor+delta, 0, len(m.rows)-1)
	m.clampScroll()
	m.selectedID = m.rows[m.cursor].addr
}

func (m *watchModel) clampScroll() {
	visRows := m.visibleRowCount()
	if m.cursor < m.scrollOff {
		m.scrollOff = m.cursor
	} else if m.cursor >= m.scrollOff+visRows {
		m.scrollOff = m.cursor - visRows + 1
	}
	if m.scrollOff < 0 {
		m.scrollOff = 0
	}
}

func (m watchModel) visibleRowCount() int {
	// title, summary, blank, header, blank, pane, blank, footer, plus one alert line
	return maxInt(2, m.height-9)
}

func (m watchModel) pollCmd() tea.Cmd {
	conns := m.conns
	timeout := m.timeout
	return func() tea.Msg {
		rows, ts := pollWatchRows(context.Background(), conns, timeout)
		return rowsMsg{rows: rows, ts: ts}
	}
}

// ---- Polling ----------------------------------------------------------------

func cmdWatch(addrs []string, timeout time.Duration) error {
	if len(addrs) == 0 {
		return fmt.Errorf("no addresses provided")
	}
	conns, err := openWatchConns(addrs)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range conns {
			_ = c.client.Close()
		}
	}()

	p := tea.NewProgram(newWatchModel(conns, timeout), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func openWatchConns(addrs []string) ([]watchConn, error) {
	conns := make([]watchConn, 0, len(addrs))
	for _, addr := range addrs {
		c, err := admingrpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			for _, c := range conns {
				_ = c.client.Close()
			}
			return nil, err
		}
		conns = append(conns, watchConn{addr: addr, client: c})
	}
	return conns, nil
}

func pollWatchRows(ctx context.Context, conns []watchConn, timeout time.Duration) ([]watchRow, time.Time) {
	rows := make([]watchRow, len(conns))
	var wg sync.WaitGroup
	wg.Add(len(conns))

	for i, c := range conns {
		go func(i int, c watchConn) {
			defer wg.Done()

			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			info, err := c.client.Info(reqCtx)
			cancel()
			if err != nil {
				rows[i] = watchRow{addr: c.addr, err: err.Error()}
				return
			}
			rows[i] = rowFromInfo(c.addr, info)
		}(i, c)
	}

	wg.Wait()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].nodeID == rows[j].nodeID {
			return rows[i].addr < rows[j].addr
		}
		if rows[i].nodeID == "" {
			return false
		}
		if rows[j].nodeID == "" {
			return true
		}
		return rows[i].nodeID < rows[j].nodeID
	})

	return rows, time.Now()
}

func rowFromInfo(addr string, info admingrpc.LogInfo) watchRow {
	row := watchRow{
		addr:       addr,
		nodeID:     info.NodeID,
		backend:    info.Backend,
		status:     "healthy",
		records:    info.Records,
		stable:     info.StableRecords,
		stableLast: info.StableLast,
		used:       info.SegmentUsed,
		capacity:   info.SegmentCapacity,
		objects:    info.SegmentObjects,
		uptime:     info.Uptime(),
	}
	if nearFull(row.used, row.capacity) {
		row.status = "degraded"
	}
	return row
}

func nearFull(used, capacity uint64) bool {
	return capacity > 0 && float64(used) >= segmentNearFull*float64(capacity)
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Truncate(time.Second).String()
}

func errorKind(err string) string {
	switch {
	case strings.Contains(err, "code = Unavailable"):
		return "Unavailable"
	case strings.Contains(err, "code = Unimplemented"):
		return "Unimplemented"
	case strings.Contains(err, "code = DeadlineExceeded"):
		return "Timeout"
	default:
		return "Error"
	}
}

func errorSummary(err string) string {
	return strings.Join(strings.Fields(err), " ")
}

func shorten(s string, n int) string {
	if n <= 0 {
		return s
	}
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func headerLabel(label string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(label) <= width {
		return label
	}
	switch label {
	case "BACKEND":
		if width >= 4 {
			return "BKND"
		}
	case "ADDR":
		if width >= 2 {
			return "AD"
		}
	case "NODE":
		if width >= 2 {
			return "ND"
		}
	}
	return label[:width]
}
