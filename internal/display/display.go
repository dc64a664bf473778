// Package display renders pipeline status as a colored table plus a
// state histogram, the Go port of the source project's rich
// Table/Panel display, sourced here from go-pretty since neither the
// teacher nor any of its own dependencies render terminal tables.
package display

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/noppelmax/depio-go/internal/domain/pipeline"
	"github.com/noppelmax/depio-go/internal/domain/task"
)

// TableRenderer implements pipeline.Renderer, printing a status table
// and a one-line state histogram to Out on every Render call.
type TableRenderer struct {
	Out                           io.Writer
	ClearScreen                   bool
	HideSuccessfulTerminatedTasks bool
}

// New returns a TableRenderer writing to os.Stdout.
func New() *TableRenderer {
	return &TableRenderer{Out: os.Stdout}
}

// stateColor maps states to colors: WAITING/PENDING blue, RUNNING
// yellow, FINISHED/SKIPPED green, FAILED/DEPFAILED red,
// HOLD/CANCELED/UNKNOWN white.
var stateColor = map[task.State]text.Color{
	task.Waiting:   text.FgBlue,
	task.Pending:   text.FgBlue,
	task.Running:   text.FgYellow,
	task.Finished:  text.FgGreen,
	task.Skipped:   text.FgGreen,
	task.Failed:    text.FgRed,
	task.DepFailed: text.FgRed,
	task.Hold:      text.FgWhite,
	task.Canceled:  text.FgWhite,
	task.Unknown:   text.FgWhite,
}

// Render writes the current state of every task in p to the renderer's
// output.
func (r *TableRenderer) Render(p *pipeline.Pipeline) {
	if r.ClearScreen {
		fmt.Fprint(r.Out, "\033[H\033[2J")
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Out)
	t.AppendHeader(table.Row{"Queue", "Task", "External Job", "External State", "State", "Depends On", "Error"})

	histogram := make(map[task.State]int)
	for _, tk := range p.Tasks {
		state := tk.State()
		histogram[state]++

		if r.HideSuccessfulTerminatedTasks && state.IsSuccessfulTerminal() {
			continue
		}

		errText := ""
		if err := tk.Err(); err != nil {
			errText = err.Error()
		}

		externalJobID := ""
		if tk.Handle != nil {
			externalJobID = fmt.Sprint(tk.Handle)
		}

		color := stateColor[state]
		t.AppendRow(table.Row{
			tk.QueueID,
			tk.Name,
			externalJobID,
			tk.ExternalState(),
			color.Sprint(state.String()),
			dependencyQueueIDs(tk),
			errText,
		})
	}
	t.Render()

	fmt.Fprintln(r.Out, histogramLine(histogram))
}

// dependencyQueueIDs lists the queue ids of every task and hard
// dependency tk has, comma-separated.
func dependencyQueueIDs(tk *task.Task) string {
	ids := make([]string, 0, len(tk.TaskDependencies)+len(tk.HardDependencies))
	for _, dep := range tk.TaskDependencies {
		ids = append(ids, strconv.Itoa(dep.QueueID))
	}
	for _, dep := range tk.HardDependencies {
		ids = append(ids, strconv.Itoa(dep.QueueID))
	}
	return strings.Join(ids, ",")
}

func histogramLine(h map[task.State]int) string {
	states := []task.State{
		task.Waiting, task.Pending, task.Running, task.Hold, task.Unknown,
		task.Finished, task.Skipped, task.Failed, task.DepFailed, task.Canceled,
	}
	line := ""
	for _, s := range states {
		if h[s] == 0 {
			continue
		}
		if line != "" {
			line += "  "
		}
		line += fmt.Sprintf("%s=%d", s, h[s])
	}
	return line
}
