package logging

import (
	"context"
	"maps"
	"sync"
)

// Entry is one message captured by a Recorder.
type Entry struct {
	Level   Level
	Message string
	Err     error
	Fields  Fields
}

// Recorder keeps every message in memory. Loggers derived through
// WithFields share the same entry list.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	level   *levelState
	fields  Fields
}

func NewRecorder() *Recorder {
	return &Recorder{
		mu:      &sync.Mutex{},
		entries: &[]Entry{},
		level:   &levelState{level: DebugLevel},
		fields:  make(Fields),
	}
}

// Entries returns a copy of the captured messages.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(*r.entries))
	copy(out, *r.entries)
	return out
}

// Count returns how many captured messages have the given level.
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (r *Recorder) record(level Level, err error, msg string, fields ...Fields) {
	if level < r.level.get() {
		return
	}
	all := make(Fields, len(r.fields))
	maps.Copy(all, r.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}
	r.mu.Lock()
	*r.entries = append(*r.entries, Entry{Level: level, Message: msg, Err: err, Fields: all})
	r.mu.Unlock()
}

func (r *Recorder) Debug(msg string, fields ...Fields) { r.record(DebugLevel, nil, msg, fields...) }
func (r *Recorder) Info(msg string, fields ...Fields)  { r.record(InfoLevel, nil, msg, fields...) }
func (r *Recorder) Warn(msg string, fields ...Fields)  { r.record(WarnLevel, nil, msg, fields...) }

func (r *Recorder) Error(err error, msg string, fields ...Fields) {
	r.record(ErrorLevel, err, msg, fields...)
}

// Fatal records the message without exiting.
func (r *Recorder) Fatal(err error, msg string, fields ...Fields) {
	r.record(FatalLevel, err, msg, fields...)
}

func (r *Recorder) WithFields(fields Fields) Logger {
	merged := make(Fields, len(r.fields)+len(fields))
	maps.Copy(merged, r.fields)
	maps.Copy(merged, fields)
	return &Recorder{mu: r.mu, entries: r.entries, level: r.level, fields: merged}
}

// WithLevel returns a recorder sharing the entry list but filtering by
// its own level.
func (r *Recorder) WithLevel(level Level) Logger {
	return &Recorder{mu: r.mu, entries: r.entries, level: &levelState{level: level}, fields: maps.Clone(r.fields)}
}

func (r *Recorder) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return r.WithFields(fields)
	}
	return r
}

func (r *Recorder) SetLevel(level Level) { r.level.set(level) }
