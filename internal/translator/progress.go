package translator

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const barWidth = 40

// ProgressCallback is called after every processed unit
type ProgressCallback func(processed, total int, percent float64)

// ProgressBar 终端进度条
// On a terminal each update redraws the same line; otherwise every update is
// its own line so logs stay readable.
type ProgressBar struct {
	w           io.Writer
	interactive bool
	drawn       bool
}

// NewProgressBar writes to w, redrawing in place when w is a terminal
func NewProgressBar(w io.Writer) *ProgressBar {
	interactive := false
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		interactive = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return &ProgressBar{w: w, interactive: interactive}
}

// Printf writes a status line, ending any in-place bar first
func (p *ProgressBar) Printf(format string, args ...any) {
	p.Finish()
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Update draws the bar for processed of total
func (p *ProgressBar) Update(processed, total int) {
	line := "Progress: " + RenderBar(processed, total)
	if p.interactive {
		fmt.Fprint(p.w, "\r"+line)
		p.drawn = true
		return
	}
	fmt.Fprintln(p.w, line)
}

// Finish terminates an in-place bar with a newline
func (p *ProgressBar) Finish() {
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

// Percent returns processed/total as a percentage; 100 for an empty document
func Percent(processed, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(processed) / float64(total) * 100
}

// RenderBar formats e.g. "|████----| 42.5% (17/40)" with a 40-cell bar
func RenderBar(processed, total int) string {
	filled := barWidth
	if total > 0 {
		filled = barWidth * processed / total
	}
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("-", barWidth-filled)
	return fmt.Sprintf("|%s| %.1f%% (%d/%d)", bar, Percent(processed, total), processed, total)
}
