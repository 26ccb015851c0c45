package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Progress renders a percentage bar for staged operations such as an
// analysis run.
type Progress struct {
	bar    *progressbar.ProgressBar
	writer io.Writer
	stage  string
	mu     sync.Mutex
}

// NewProgress creates a 0-100 progress bar that writes to w.
func NewProgress(w io.Writer) *Progress {
	p := &Progress{writer: w}
	p.bar = progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[cyan]=[reset]",
			SaucerHead:    "[cyan]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Update moves the bar to percent and shows stage as its description. It
// matches analysis.ProgressFunc and is safe to call from worker goroutines.
func (p *Progress) Update(stage string, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if stage != p.stage {
		p.stage = stage
		p.bar.Describe(fmt.Sprintf("[bold]%-22s[reset]", stage))
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if err := p.bar.Set(percent); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the bar if the operation stopped short of 100%.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar.IsFinished() {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
