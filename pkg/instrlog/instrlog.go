// Package instrlog records executed instructions as structured trace
// entries and exposes them as dataframes for offline analysis. Traces
// can be exported to CSV or YAML and reloaded from CSV or Parquet.
package instrlog

import (
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is one executed instruction. The short field keys match the
// trace file format.
type Entry struct {
	WallTime       time.Time `yaml:"wct"`
	SimTime        int64     `yaml:"sit"`
	AppID          int       `yaml:"aid"`
	SubroutineID   int       `yaml:"sid"`
	ProgramCounter int       `yaml:"prc"`
	Instruction    string    `yaml:"ins"`
	Operands       string    `yaml:"opr"`
	Outcome        *int32    `yaml:"out"`
}

// Logger accumulates trace entries. Safe for use from the executor while
// a host inspects the trace.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLogger returns an empty trace logger.
func NewLogger() *Logger {
	return &Logger{}
}

// Record appends one entry.
func (l *Logger) Record(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Len returns the number of recorded entries.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the recorded entries.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Reset discards all recorded entries.
func (l *Logger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// MarshalYAML exports the trace as a YAML document, one entry per item.
func (l *Logger) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(l.Entries())
}
