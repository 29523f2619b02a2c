package embedbatch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Reports(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Increment(10)
	tracker.Increment(5)
	tracker.Update(50)
	tracker.Finish()

	out := buf.String()
	assert.Contains(t, out, "100/100")
	assert.Contains(t, out, "100.0%")
}

func TestProgressTracker_NoReportsBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 1)

	tracker.Increment(50)
	tracker.Update(70)

	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 1)

	tracker.Start()
	tracker.Increment(25)
	tracker.Finish()

	assert.True(t, strings.Contains(buf.String(), "10/10"))
	assert.NotContains(t, buf.String(), "25/10")
}
