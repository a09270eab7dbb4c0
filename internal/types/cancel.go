package types

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrCanceled is returned by long-running loops that observed a cancellation.
var ErrCanceled = errors.New("operation canceled")

// Canceler is a cooperative cancellation signal.
type Canceler interface {
	Cancel()
	IsCanceled() bool
}

// CancelFlag is a thread-safe, idempotent cancellation flag.
// Loops poll it between files, never in the middle of one.
// A nil *CancelFlag is valid and never reports cancellation.
type CancelFlag struct {
	canceled atomic.Bool
}

// NewCancelFlag returns an unset flag.
func NewCancelFlag() *CancelFlag { return &CancelFlag{} }

// Cancel sets the flag. Safe to call from any goroutine, any number of times.
func (c *CancelFlag) Cancel() {
	if c != nil {
		c.canceled.Store(true)
	}
}

// IsCanceled reports whether Cancel has been called.
func (c *CancelFlag) IsCanceled() bool {
	return c != nil && c.canceled.Load()
}

// Check returns ErrCanceled once c reports cancellation. A nil c never does.
func Check(c Canceler) error {
	if c != nil && c.IsCanceled() {
		return ErrCanceled
	}
	return nil
}

// Measure runs fn and reports its wall-clock duration alongside the unchanged
// error. Durations are informational and vary between runs.
func Measure(fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	return time.Since(start), err
}

// MeasureValue is Measure for functions that also return a value.
func MeasureValue[T any](fn func() (T, error)) (T, time.Duration, error) {
	start := time.Now()
	v, err := fn()
	return v, time.Since(start), err
}
