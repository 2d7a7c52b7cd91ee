/*
hmi.go Terminal view of a network. The bus table lists every bus of the
selected view, the switch table lists every switch. Enter on a switch toggles
it in the working variant and redraws the buses.
*/

package hmi

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell"
	"github.com/ohowland/cgc_topology/internal/pkg/network"
	logging "github.com/op/go-logging"
	"github.com/rivo/tview"
)

var logger = logging.MustGetLogger("hmi")

const logo = `
 ________________________________________
 _/\/\/\/\/\/\__/\/\/\/\____/\/\/\/\/\___
 _____/\/\____/\/\____/\/\__/\/\____/\/\_
 _____/\/\____/\/\____/\/\__/\/\/\/\/\___
 _____/\/\____/\/\____/\/\__/\/\_________
 _____/\/\______/\/\/\/\____/\/\_________
 ________________________________________
`

var busHeader = []string{"Voltage level", "Bus", "Members", "Terminals"}
var switchHeader = []string{"Switch", "Voltage level", "Kind", "State"}

// HMI renders n. mux guards every network access.
type HMI struct {
	mux      *sync.Mutex
	network  *network.Network
	view     network.View
	app      *tview.Application
	pages    *tview.Pages
	buses    *tview.Table
	switches *tview.Table
	order    []string
}

func New(n *network.Network, lock *sync.Mutex) *HMI {
	h := &HMI{
		mux:      lock,
		network:  n,
		view:     network.ViewBus,
		app:      tview.NewApplication(),
		pages:    tview.NewPages(),
		buses:    tview.NewTable().SetFixed(1, 0),
		switches: tview.NewTable().SetFixed(1, 0),
	}
	h.pages.AddPage("Splash", h.splash(), true, true)
	h.pages.AddPage("Overview", h.overview(), true, false)
	return h
}

func busRows(snapshots []network.Snapshot) [][]string {
	rows := [][]string{busHeader}
	for _, s := range snapshots {
		for _, b := range s.Buses {
			rows = append(rows, []string{s.VoltageLevel, b.ID,
				strings.Join(b.Members, " "), strings.Join(b.Terminals, " ")})
		}
	}
	return rows
}

func switchRows(ctx context.Context, switches []*network.Switch) [][]string {
	rows := [][]string{switchHeader}
	for _, sw := range switches {
		state := "closed"
		if sw.IsOpen(ctx) {
			state = "open"
		}
		if sw.IsRetained(ctx) {
			state += " (retained)"
		}
		rows = append(rows, []string{sw.ID(), sw.VoltageLevelID(), sw.Kind().String(), state})
	}
	return rows
}

func fill(table *tview.Table, rows [][]string) {
	table.Clear()
	for row, line := range rows {
		for column, cell := range line {
			color := tcell.ColorWhite
			if row == 0 {
				color = tcell.ColorYellow
			} else if column == 0 {
				color = tcell.ColorDarkCyan
			}
			table.SetCell(row, column, tview.NewTableCell(cell).
				SetTextColor(color).
				SetAlign(tview.AlignLeft).
				SetSelectable(row != 0))
		}
	}
}

func (h *HMI) refresh(ctx context.Context) {
	h.mux.Lock()
	defer h.mux.Unlock()

	switches := h.network.Switches()
	h.order = make([]string, 0, len(switches))
	for _, sw := range switches {
		h.order = append(h.order, sw.ID())
	}
	fill(h.buses, busRows(h.network.Snapshots(ctx, h.view)))
	fill(h.switches, switchRows(ctx, switches))
	h.buses.SetTitle(fmt.Sprintf(" Buses (%s) ", h.view))
}

// toggle flips the switch shown on row.
func (h *HMI) toggle(ctx context.Context, row int) {
	if row < 1 || row > len(h.order) {
		return
	}
	h.mux.Lock()
	sw, err := h.network.Switch(h.order[row-1])
	if err == nil {
		sw.SetOpen(ctx, !sw.IsOpen(ctx))
		logger.Infof("[HMI] Switch '%s' open=%v", sw.ID(), sw.IsOpen(ctx))
	}
	h.mux.Unlock()
	h.refresh(ctx)
}

func (h *HMI) splash() tview.Primitive {
	lines := strings.Split(logo, "\n")
	logoWidth := 0
	for _, line := range lines {
		if len(line) > logoWidth {
			logoWidth = len(line)
		}
	}
	logoBox := tview.NewTextView().
		SetTextColor(tcell.ColorBlue).
		SetDoneFunc(func(key tcell.Key) {
			h.pages.SwitchToPage("Overview")
			h.app.SetFocus(h.switches)
		})
	fmt.Fprint(logoBox, logo)

	frame := tview.NewFrame(tview.NewBox()).
		SetBorders(0, 0, 0, 0, 0, 0).
		AddText("Network "+h.network.ID(), true, tview.AlignCenter, tcell.ColorWhite).
		AddText("", true, tview.AlignCenter, tcell.ColorWhite).
		AddText("press enter", true, tview.AlignCenter, tcell.ColorDarkMagenta)

	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 5, false).
		AddItem(tview.NewFlex().
			AddItem(tview.NewBox(), 0, 1, false).
			AddItem(logoBox, logoWidth, 1, true).
			AddItem(tview.NewBox(), 0, 1, false), len(lines), 1, true).
		AddItem(frame, 0, 10, false)
}

func (h *HMI) overview() tview.Primitive {
	ctx := context.Background()

	h.buses.SetBorder(true)
	h.buses.SetBorders(false).SetSeparator(' ')

	h.switches.SetBorder(true).SetTitle(" Switches (enter toggles, v changes view) ")
	h.switches.SetBorders(false).
		SetSelectable(true, false).
		SetSeparator(' ').
		SetSelectedFunc(func(row, column int) { h.toggle(ctx, row) })
	h.switches.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'v' {
			h.view = 1 - h.view
			h.refresh(ctx)
			return nil
		}
		return event
	})
	h.refresh(ctx)

	return tview.NewFlex().
		AddItem(h.buses, 0, 2, false).
		AddItem(h.switches, 0, 1, true)
}

// Run blocks until the terminal application exits.
func (h *HMI) Run() error {
	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(h.pages, 0, 1, true)
	return h.app.SetRoot(layout, true).Run()
}

// Stop ends Run.
func (h *HMI) Stop() {
	h.app.Stop()
}
