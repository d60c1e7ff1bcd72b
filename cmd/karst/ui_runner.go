package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"karst/internal/driver"
	"karst/internal/ui"
)

// progressMode is the --ui flag: auto falls back to a plain line-per-file
// log when stdout is not a terminal (CI, pipes into a pager).
type progressMode uint8

const (
	progressAuto progressMode = iota
	progressOn
	progressOff
)

func parseProgressMode(value string) (progressMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return progressAuto, nil
	case "on":
		return progressOn, nil
	case "off":
		return progressOff, nil
	default:
		return progressAuto, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

func (m progressMode) wantTUI() bool {
	switch m {
	case progressOn:
		return true
	case progressOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

type lowerOutcome struct {
	result *driver.BatchResult
	err    error
}

// runLowerWithUI drives the batch behind a progress TUI. The batch runs in
// its own goroutine and feeds the model through a channel sink; the outcome
// is handed back once both the batch and the program finish.
func runLowerWithUI(ctx context.Context, title string, files []string, opts driver.BatchOptions) (*driver.BatchResult, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan lowerOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.LowerBatch(ctx, files, optsCopy)
		outcomeCh <- lowerOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
