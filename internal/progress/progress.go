// Package progress renders scan and hashing progress on stderr.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Bar wraps progressbar with enabled/disabled handling.
// All methods are no-ops when disabled, including on a nil *Bar.
type Bar struct {
	bar *progressbar.ProgressBar
}

// Enabled reports whether progress should be drawn: the caller asked for it
// and stderr is a terminal.
func Enabled(requested bool) bool {
	fd := os.Stderr.Fd()
	return requested && (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

// New creates a progress bar.
// If enabled=false, returns a Bar where all methods are no-ops.
// Use total=-1 for spinner mode, or total>0 for determinate progress.
func New(enabled bool, total int64) *Bar {
	if !enabled {
		return &Bar{}
	}

	opts := []progressbar.Option{
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
	}

	if total < 0 {
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetElapsedTime(false),
		)
		return &Bar{bar: progressbar.NewOptions(-1, opts...)}
	}

	opts = append(opts, progressbar.OptionSetWidth(40), progressbar.OptionShowCount())
	return &Bar{bar: progressbar.NewOptions64(total, opts...)}
}

// NewBytes creates a determinate bar measured in bytes, showing throughput.
// Use it where work is proportional to file sizes, such as hashing.
func NewBytes(enabled bool, totalBytes int64) *Bar {
	if !enabled {
		return &Bar{}
	}
	return &Bar{bar: progressbar.NewOptions64(totalBytes,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
	)}
}

// Add advances a determinate bar by n steps.
func (b *Bar) Add(n int) {
	if b != nil && b.bar != nil {
		_ = b.bar.Add(n)
	}
}

// AddBytes advances a bar by n bytes.
func (b *Bar) AddBytes(n int64) {
	if b != nil && b.bar != nil {
		_ = b.bar.Add64(n)
	}
}

// Describe updates the progress bar description.
func (b *Bar) Describe(s fmt.Stringer) {
	if b != nil && b.bar != nil {
		b.bar.Describe(s.String())
	}
}

// Finish completes the progress bar and prints a final message.
func (b *Bar) Finish(s fmt.Stringer) {
	if b != nil && b.bar != nil {
		_ = b.bar.Finish()
		fmt.Fprintln(os.Stderr, "✔ "+s.String())
	}
}
