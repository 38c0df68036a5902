// Package station is the interactive terminal a packer scans into. It renders
// a dispatch.Session and forwards scanner input and print requests to it.
package station

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Mrhamza01/prlabel/internal/dispatch"
	"github.com/Mrhamza01/prlabel/internal/domain"
	"github.com/Mrhamza01/prlabel/internal/gateway"
)

const (
	maxNotices     = 3
	defaultHeight  = 12
	infoTimeout    = 5 * time.Second
	syncTimeLayout = "Jan 2, 2006 3:04 PM"
)

// PrinterSource reports the print gateway's default printer
type PrinterSource interface {
	DefaultPrinter(ctx context.Context) (*gateway.Printer, error)
}

// SyncSource reports the last carrier sync
type SyncSource interface {
	LastSync(ctx context.Context) (*gateway.SyncInfo, error)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 1)
	levelStyles = map[dispatch.Level]lipgloss.Style{
		dispatch.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		dispatch.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		dispatch.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		dispatch.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// keyMap holds the station bindings. Letters and digits belong to the
// scanner, so the table only moves with arrow and paging keys.
type keyMap struct {
	Submit   key.Binding
	Print    key.Binding
	Generate key.Binding
	Clear    key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "scan")),
	Print:    key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "print shipment")),
	Generate: key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "generate + print")),
	Clear:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
	Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

func tableKeyMap() table.KeyMap {
	return table.KeyMap{
		LineUp:       key.NewBinding(key.WithKeys("up")),
		LineDown:     key.NewBinding(key.WithKeys("down")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		GotoTop:      key.NewBinding(key.WithKeys("home")),
		GotoBottom:   key.NewBinding(key.WithKeys("end")),
	}
}

// Column order of the line table
const (
	colChecked = iota
	colPrinted
	colLine
	colShipment
	colNumber
	colUPC
	colSKU
	colQty
	colShipped
)

type scanResultMsg struct {
	result dispatch.Result
}

type groupPrintMsg struct {
	shipmentID string
	generate   bool
	ok         bool
}

type noticeMsg dispatch.Notice

type infoMsg struct {
	printer  string
	lastSync string
}

// Option configures a Model
type Option func(*Model)

// WithPrinterSource shows the default printer in the status bar
func WithPrinterSource(src PrinterSource) Option {
	return func(m *Model) { m.printers = src }
}

// WithSyncSource shows the last carrier sync in the status bar
func WithSyncSource(src SyncSource) Option {
	return func(m *Model) { m.syncs = src }
}

// WithPickList sets the header details
func WithPickList(p domain.PickList) Option {
	return func(m *Model) { m.pickList = &p }
}

// Model is the bubbletea model of a station
type Model struct {
	ctx      context.Context
	session  *dispatch.Session
	printers PrinterSource
	syncs    SyncSource
	pickList *domain.PickList

	input   textinput.Model
	table   table.Model
	notices []dispatch.Notice
	pending int

	defaultPrinter string
	lastSync       string
	width          int
}

// New builds a station over a loaded session
func New(ctx context.Context, session *dispatch.Session, opts ...Option) *Model {
	input := textinput.New()
	input.Placeholder = "Scan or type a UPC"
	input.Prompt = "UPC › "
	input.CharLimit = 64
	input.Focus()

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(defaultHeight),
		table.WithKeyMap(tableKeyMap()),
	)

	m := &Model{
		ctx:     ctx,
		session: session,
		input:   input,
		table:   t,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.refresh()
	return m
}

func columns(width int) []table.Column {
	cols := []table.Column{
		{Title: "✓", Width: 1},
		{Title: "P", Width: 1},
		{Title: "Line", Width: 8},
		{Title: "Shipment", Width: 12},
		{Title: "Number", Width: 12},
		{Title: "UPC", Width: 14},
		{Title: "SKU", Width: 12},
		{Title: "Qty", Width: 4},
		{Title: "Shipped", Width: 7},
	}
	used := 0
	for _, c := range cols {
		used += c.Width + 2
	}
	if extra := width - used; extra > 0 {
		cols[colSKU].Width += extra
	}
	return cols
}

// Run starts the station and blocks until the operator quits
func Run(ctx context.Context, m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForNotice(), m.loadInfo())
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		if h := msg.Height - 9; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case scanResultMsg:
		m.pending--
		m.refresh()
		return m, m.input.Focus()

	case groupPrintMsg:
		m.pending--
		m.refresh()
		return m, m.input.Focus()

	case noticeMsg:
		m.addNotice(dispatch.Notice(msg))
		return m, m.waitForNotice()

	case infoMsg:
		m.defaultPrinter = msg.printer
		m.lastSync = msg.lastSync
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.session.Reset()
		return m, tea.Quit

	case key.Matches(msg, keys.Clear):
		m.input.SetValue("")
		m.session.ClearSearch()
		m.refresh()
		return m, nil

	case key.Matches(msg, keys.Submit):
		if m.busy() {
			return m, nil
		}
		raw := m.input.Value()
		m.input.SetValue("")
		m.session.SetSearch("")
		m.input.Blur()
		m.pending++
		m.refresh()
		return m, m.scan(raw)

	case key.Matches(msg, keys.Print), key.Matches(msg, keys.Generate):
		shipmentID := m.selectedShipment()
		if shipmentID == "" {
			return m, nil
		}
		m.pending++
		return m, m.groupPrint(shipmentID, key.Matches(msg, keys.Generate))

	case msg.Type == tea.KeyUp, msg.Type == tea.KeyDown, msg.Type == tea.KeyPgUp,
		msg.Type == tea.KeyPgDown, msg.Type == tea.KeyHome, msg.Type == tea.KeyEnd,
		msg.Type == tea.KeyCtrlU, msg.Type == tea.KeyCtrlD:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	if m.busy() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.session.SetSearch(m.input.Value())
	m.refresh()
	return m, cmd
}

func (m *Model) busy() bool {
	return m.pending > 0 || m.session.Snapshot().Checking
}

func (m *Model) scan(raw string) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return scanResultMsg{result: session.ResolveScan(ctx, raw)}
	}
}

func (m *Model) groupPrint(shipmentID string, generate bool) tea.Cmd {
	session, ctx := m.session, m.ctx
	lineIDs := session.ShipmentLineIDs(shipmentID)
	return func() tea.Msg {
		ok := session.GroupPrint(ctx, shipmentID, lineIDs, !generate)
		return groupPrintMsg{shipmentID: shipmentID, generate: generate, ok: ok}
	}
}

func (m *Model) waitForNotice() tea.Cmd {
	events, done := m.session.Events(), m.ctx.Done()
	return func() tea.Msg {
		select {
		case n, ok := <-events:
			if !ok {
				return nil
			}
			return noticeMsg(n)
		case <-done:
			return nil
		}
	}
}

func (m *Model) loadInfo() tea.Cmd {
	if m.printers == nil && m.syncs == nil {
		return nil
	}
	printers, syncs, parent := m.printers, m.syncs, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, infoTimeout)
		defer cancel()

		info := infoMsg{printer: "unavailable", lastSync: "unavailable"}
		if printers != nil {
			if p, err := printers.DefaultPrinter(ctx); err == nil && p != nil {
				info.printer = p.Name
			}
		}
		if syncs != nil {
			if s, err := syncs.LastSync(ctx); err == nil {
				info.lastSync = "never"
				if s != nil {
					info.lastSync = s.DateCheck.Local().Format(syncTimeLayout)
				}
			}
		}
		return info
	}
}

func (m *Model) addNotice(n dispatch.Notice) {
	m.notices = append(m.notices, n)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m *Model) selectedShipment() string {
	row := m.table.SelectedRow()
	if len(row) <= colShipment {
		return ""
	}
	return row[colShipment]
}

// refresh rebuilds the table rows and input state from the session
func (m *Model) refresh() {
	snap := m.session.Snapshot()
	lines := m.session.FilteredLines()

	rows := make([]table.Row, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, lineRow(l, snap))
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}

	if snap.Checking || m.pending > 0 {
		m.input.Blur()
	} else if !m.input.Focused() {
		m.input.Focus()
	}
}

func lineRow(l domain.Line, snap dispatch.Snapshot) table.Row {
	checked, printed := " ", " "
	if snap.IsChecked(l.ID) {
		checked = "✓"
	}
	if snap.IsPrinted(l.ShipmentID) {
		printed = "P"
	} else if snap.IsLoading(l.ShipmentID) {
		printed = "…"
	}
	shipped := "-"
	if l.ShippedQty != nil {
		shipped = strconv.Itoa(*l.ShippedQty)
	}
	return table.Row{
		checked,
		printed,
		strconv.FormatInt(l.ID, 10),
		l.ShipmentID,
		l.ShipmentNumber,
		l.UPC,
		l.SKU,
		strconv.Itoa(l.Quantity),
		shipped,
	}
}

// View implements tea.Model
func (m *Model) View() string {
	snap := m.session.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title(snap.PickListID)))
	b.WriteString("\n")
	if m.session.AllItemsCompleted() {
		b.WriteString(doneStyle.Render("All items completed"))
	} else {
		checked := 0
		for _, l := range snap.Lines {
			if snap.IsChecked(l.ID) {
				checked++
			}
		}
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d of %d lines checked · %d labels printed", checked, len(snap.Lines), len(snap.Printed))))
	}
	b.WriteString("\n\n")

	b.WriteString(m.input.View())
	if snap.Checking {
		b.WriteString(mutedStyle.Render("  checking…"))
	} else if snap.MatchedUPC != "" {
		b.WriteString(mutedStyle.Render("  last match " + snap.MatchedUPC))
	}
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	for _, n := range m.notices {
		style, ok := levelStyles[n.Level]
		if !ok {
			style = mutedStyle
		}
		b.WriteString(style.Render(n.At.Format("15:04:05") + " " + n.Message))
		b.WriteString("\n")
	}

	b.WriteString(statusStyle.Render(m.statusLine()))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("enter scan · ctrl+p print · ctrl+g generate + print · esc clear · ctrl+c quit"))
	return b.String()
}

func (m *Model) title(pickListID int64) string {
	if m.pickList == nil {
		return fmt.Sprintf("Pick list %d", pickListID)
	}
	title := fmt.Sprintf("Pick list %d · order %s", m.pickList.ID, m.pickList.OrderNumber)
	if m.pickList.PackingPersonName != nil {
		title += " · packer " + *m.pickList.PackingPersonName
	} else if m.pickList.PackingPerson != nil {
		title += " · packer " + *m.pickList.PackingPerson
	}
	return title
}

// SetPacker updates the header after the pick list was assigned elsewhere
func (m *Model) SetPacker(entity domain.Entity) {
	if m.pickList == nil {
		return
	}
	id, name := entity.ID, entity.Name
	m.pickList.PackingPerson = &id
	m.pickList.PackingPersonName = nil
	if name != "" {
		m.pickList.PackingPersonName = &name
	}
}

func (m *Model) statusLine() string {
	printer, sync := m.defaultPrinter, m.lastSync
	if printer == "" {
		printer = "loading…"
	}
	if sync == "" {
		sync = "loading…"
	}
	return fmt.Sprintf("Printer: %s │ Last sync: %s", printer, sync)
}
