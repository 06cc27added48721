// Package progress renders the progress of input and output generation.
package progress

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Func is called after each unit of work
type Func func(completed, total int, elapsed time.Duration)

// Nop ignores progress updates
func Nop(completed, total int, elapsed time.Duration) {}

// Bar draws a terminal progress bar
type Bar struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewBar creates a bar for total units written to w
func NewBar(w io.Writer, total int, description string) *Bar {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)

	return &Bar{bar: bar}
}

// Update moves the bar to completed, growing its maximum if total changed
func (b *Bar) Update(completed, total int, elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if int64(total) != b.bar.GetMax64() {
		b.bar.ChangeMax(total)
	}
	_ = b.bar.Set(completed)
}

// Func returns the bar as a progress callback
func (b *Bar) Func() Func {
	return b.Update
}

// Close finishes the bar
func (b *Bar) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bar.Close()
}

// Line formats a one-line textual progress report:
//
//	3/10 | ████████-------------------------------- |  30.00% |    1.5s elapsed,    3.5s remaining
func Line(completed, total int, elapsed time.Duration, width int) string {
	if total <= 0 {
		total = 1
	}
	percent := float64(completed) / float64(total)
	filled := int(math.Round(float64(width) * percent))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	var remaining float64
	if completed > 0 {
		estimated := elapsed.Seconds() / float64(completed) * float64(total)
		remaining = estimated - elapsed.Seconds()
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("-", width-filled)
	return fmt.Sprintf("%d/%d | %s | %6.2f%% | %6.1fs elapsed, %6.1fs remaining",
		completed, total, bar, percent*100, elapsed.Seconds(), remaining)
}
