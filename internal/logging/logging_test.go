package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesReadableOutputForInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Info("core finished", map[string]any{"core": 0, "cycles": 102})
	require.Contains(t, buf.String(), "core finished")
}

func TestNewSuppressesDebugUnlessVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Debug("per-cycle trace", nil)
	require.Empty(t, buf.String())
}

func TestNewEmitsDebugWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true)
	l.Debug("per-cycle trace", map[string]any{"cycle": 1})
	require.Contains(t, buf.String(), "per-cycle trace")
}

func TestErrorIncludesUnderlyingError(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Error("run failed", errBoom, nil)
	require.Contains(t, buf.String(), "boom")
}

var errBoom = boomErr{}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

func TestDiscardNeverPanics(t *testing.T) {
	l := Discard()
	l.Info("x", nil)
	l.Warn("x", nil)
	l.Debug("x", nil)
	l.Error("x", errBoom, nil)
}
