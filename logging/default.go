package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
)

// ANSI color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorBold   = "\033[1m"
)

// DefaultLogger writes "[LEVEL] msg: err {k=v ...}" lines through the
// standard log package. Debug and Info go to the out writer, everything
// else to the err writer.
type DefaultLogger struct {
	out       *log.Logger
	err       *log.Logger
	level     *levelState
	fields    Fields
	useColors bool
}

// levelState is shared between a logger and every logger derived from it
// with WithFields, so SetLevel on the root applies to components too.
type levelState struct {
	mu    sync.RWMutex
	level Level
}

func (s *levelState) get() Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

func (s *levelState) set(l Level) {
	s.mu.Lock()
	s.level = l
	s.mu.Unlock()
}

// NewDefaultLogger creates a logger on stdout/stderr, colored when stdout
// is a terminal.
func NewDefaultLogger() *DefaultLogger {
	return NewWriterLogger(os.Stdout, os.Stderr, isTerminal())
}

// NewWriterLogger creates a logger writing to arbitrary destinations.
func NewWriterLogger(out, errOut io.Writer, colors bool) *DefaultLogger {
	return &DefaultLogger{
		out:       log.New(out, "", log.LstdFlags),
		err:       log.New(errOut, "", log.LstdFlags),
		level:     &levelState{level: InfoLevel},
		fields:    make(Fields),
		useColors: colors,
	}
}

func isTerminal() bool {
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (d *DefaultLogger) formatMessage(level Level, err error, msg string, fields ...Fields) string {
	all := make(Fields, len(d.fields))
	maps.Copy(all, d.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}
	if len(all) > 0 {
		keys := slices.Sorted(maps.Keys(all))
		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s=%v", k, all[k])
		}
		b.WriteByte('}')
	}

	line := b.String()
	if d.useColors {
		switch level {
		case WarnLevel:
			line = ColorYellow + line + ColorReset
		case ErrorLevel:
			line = ColorRed + line + ColorReset
		case FatalLevel:
			line = ColorBold + ColorRed + line + ColorReset
		}
	}
	return line
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < d.level.get() {
		return
	}

	line := d.formatMessage(level, err, msg, fields...)
	switch level {
	case DebugLevel, InfoLevel:
		d.out.Println(line)
	case WarnLevel, ErrorLevel:
		d.err.Println(line)
	case FatalLevel:
		d.err.Println(line)
		os.Exit(1)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(d.fields)+len(fields))
	maps.Copy(merged, d.fields)
	maps.Copy(merged, fields)

	return &DefaultLogger{
		out:       d.out,
		err:       d.err,
		level:     d.level,
		fields:    merged,
		useColors: d.useColors,
	}
}

func (d *DefaultLogger) WithLevel(level Level) Logger {
	return &DefaultLogger{
		out:       d.out,
		err:       d.err,
		level:     &levelState{level: level},
		fields:    maps.Clone(d.fields),
		useColors: d.useColors,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level.set(level)
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) WithLevel(level Level) Logger                  { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
