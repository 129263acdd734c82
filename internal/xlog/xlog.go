// Package xlog is the engine's thin logging layer over logrus, grounded
// on modules/trace's error.go: a caller-located Errorf that both logs
// and returns the error, plus a Tracker for timing the steps of a
// multi-step operation under -v/--verbose (no other package in this
// module uses Tracker).
package xlog

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

func location(skip int) (string, int) {
	pc, _, line, ok := runtime.Caller(skip)
	if !ok {
		return "?", line
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "?", line
	}
	return fn.Name(), line
}

// Errorf logs the formatted message at Error level tagged with the
// caller's location, and returns it as a plain error. oplog.Store.Head
// uses it for its empty-log error.
func Errorf(format string, a ...any) error {
	fn, line := location(2)
	msg := fmt.Sprintf(format, a...)
	logrus.Errorf("%s:%d %s", fn, line, msg)
	return errors.New(msg)
}

// Tracker reports the wall-clock time spent between successive steps of
// a multi-stage operation, active only under verbose logging.
type Tracker struct {
	verbose bool
	last    time.Time
}

func NewTracker(verbose bool) *Tracker {
	return &Tracker{verbose: verbose, last: time.Now()}
}

func (t *Tracker) StepNext(format string, a ...any) {
	if !t.verbose {
		return
	}
	now := time.Now()
	logrus.Debugf("%s use time: %v", fmt.Sprintf(format, a...), now.Sub(t.last))
	t.last = now
}

// SetVerbose raises or lowers logrus's global level, the same switch a
// CLI entry point flips from a --verbose flag.
func SetVerbose(verbose bool) {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.InfoLevel)
}
