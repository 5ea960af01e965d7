package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerRoutesLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWriterLogger(&out, &errOut, false)
	logger.SetLevel(DebugLevel)

	logger.Debug("frames", Fields{"count": 12})
	logger.Warn("degenerate input")
	logger.Error(errors.New("boom"), "failed")

	assert.Contains(t, out.String(), "[DEBUG] frames {count=12}")
	assert.Contains(t, errOut.String(), "[WARN] degenerate input")
	assert.Contains(t, errOut.String(), "[ERROR] failed: boom")
}

func TestDefaultLoggerLevelFilterIsShared(t *testing.T) {
	var out, errOut bytes.Buffer
	root := NewWriterLogger(&out, &errOut, false)
	child := root.WithFields(Fields{"component": "stft"})

	child.Debug("hidden")
	assert.Empty(t, out.String())

	root.SetLevel(DebugLevel)
	child.Debug("shown")
	assert.Contains(t, out.String(), "[DEBUG] shown {component=stft}")
}

func TestFieldsAreSortedAndMerged(t *testing.T) {
	var out bytes.Buffer
	logger := NewWriterLogger(&out, &out, false).WithFields(Fields{"b": 2})
	logger.Info("msg", Fields{"a": 1})
	assert.Contains(t, out.String(), "{a=1 b=2}")
}

func TestWithContextPicksUpFields(t *testing.T) {
	rec := NewRecorder()
	ctx := ContextWithFields(context.Background(), Fields{"file": "a.wav"})
	ctx = ContextWithFields(ctx, Fields{"stage": "cqt"})

	rec.WithContext(ctx).Info("start")

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "a.wav", entries[0].Fields["file"])
	assert.Equal(t, "cqt", entries[0].Fields["stage"])
}

func TestRecorderSharesEntriesAcrossChildren(t *testing.T) {
	rec := NewRecorder()
	child := rec.WithFields(Fields{"component": "tuning"})
	child.Warn("no pitches")
	rec.Info("done")

	assert.Equal(t, 1, rec.Count(WarnLevel))
	assert.Equal(t, 1, rec.Count(InfoLevel))
	assert.Equal(t, "tuning", rec.Entries()[0].Fields["component"])
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("Warning")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestSetGlobalLoggerNil(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	SetGlobalLogger(nil)
	assert.IsType(t, &NoOpLogger{}, GetGlobalLogger())
}

func TestWithLevelDetachesFromParent(t *testing.T) {
	var out, errOut bytes.Buffer
	root := NewWriterLogger(&out, &errOut, false)
	root.SetLevel(ErrorLevel)

	child := root.WithFields(Fields{"component": "analyzer"}).WithLevel(InfoLevel)
	child.SetLevel(DebugLevel)
	child.Debug("child debug")
	root.Info("root info")

	assert.Contains(t, out.String(), "[DEBUG] child debug {component=analyzer}")
	assert.NotContains(t, out.String(), "root info")
}

func TestRecorderWithLevelSharesEntries(t *testing.T) {
	rec := NewRecorder()
	rec.SetLevel(ErrorLevel)

	quiet := rec.WithLevel(DebugLevel)
	quiet.Debug("kept")
	rec.Info("dropped")

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
}
