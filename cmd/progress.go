package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// consoleProgress prints evaluation progress for humans.
type consoleProgress struct {
	mu     sync.Mutex
	w      io.Writer
	errors int
}

func newConsoleProgress(w io.Writer) *consoleProgress {
	return &consoleProgress{w: w}
}

var (
	stageColor = color.New(color.FgCyan, color.Bold)
	doneColor  = color.New(color.FgGreen)
	errorColor = color.New(color.FgRed)
)

func (p *consoleProgress) OnStageStart(stage string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stageColor.Fprintf(p.w, "==> %s: %d scenarios\n", stage, total)
}

func (p *consoleProgress) OnStageComplete(stage string, durationMs int64, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := fmt.Sprintf("==> %s complete: %d scenarios in %.1fs", stage, count, float64(durationMs)/1000)
	if p.errors > 0 {
		msg += fmt.Sprintf(" (%d errors)", p.errors)
	}
	doneColor.Fprintln(p.w, msg)
}

func (p *consoleProgress) OnError(scenarioID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors++
	errorColor.Fprintf(p.w, "  ERROR %s: %v\n", scenarioID, err)
}
