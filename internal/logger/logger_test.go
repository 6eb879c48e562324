package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogger_FormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 30, 45, 123_456_789, time.FixedZone("CET", 3600))
	require.Equal(t, "2024-03-01T11:30:45.123Z", formatRFC3339Millis(ts))
}

func TestLogger_Levels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, false)
	log.Debug("hidden")
	log.Info("shown", "empty", "")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
	require.NotContains(t, buf.String(), "empty=")

	buf.Reset()
	NewWithWriter(&buf, true).Debug("visible")
	require.Contains(t, buf.String(), "visible")
}
