package xlog_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigilvc/sigil/internal/xlog"
)

func TestErrorfReturnsTheFormattedMessage(t *testing.T) {
	err := xlog.Errorf("segment %s missing parent %s", "abc", "def")
	assert.Equal(t, "segment abc missing parent def", err.Error())
}

func TestTrackerStepNextIsANoOpWhenNotVerbose(t *testing.T) {
	tracker := xlog.NewTracker(false)
	tracker.StepNext("stage %s", "scan")
}

func TestTrackerStepNextFormatsWithoutPanicking(t *testing.T) {
	tracker := xlog.NewTracker(true)
	assert.NotPanics(t, func() { tracker.StepNext("stage %s", strings.ToUpper("merge")) })
}
