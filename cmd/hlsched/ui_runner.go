package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"hlsched/internal/driver"
	"hlsched/internal/ui"
)

type runOutcome struct {
	results []*driver.Result
	err     error
}

// runWithUI runs the driver while the progress view renders its stage
// events. The view quits once the run has finished.
func runWithUI(ctx context.Context, title string, prog *driver.Program, opts driver.Options) ([]*driver.Result, error) {
	events := make(chan driver.StageEvent, 256)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		o := opts
		o.Observer = func(ev driver.StageEvent) { events <- ev }
		res, err := driver.Run(ctx, prog, o)
		outcomeCh <- runOutcome{results: res, err: err}
		close(events)
	}()

	names := make([]string, len(prog.Funcs))
	for i, fn := range prog.Funcs {
		names[i] = fn.Name
	}
	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	if uiErr != nil {
		// keep the producer from blocking on a dead view
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
