package midi

import (
	"sync"

	"github.com/zurustar/midikit/pkg/logger"
)

// WarningKind identifies a recoverable condition met while processing input.
type WarningKind string

const (
	WarnQueueFull       WarningKind = "QUEUE_FULL"
	WarnStrayData       WarningKind = "STRAY_DATA"
	WarnSysExAborted    WarningKind = "SYSEX_ABORTED"
	WarnSysExOverflow   WarningKind = "SYSEX_OVERFLOW"
	WarnStrayEndOfSysEx WarningKind = "STRAY_EOX"
	WarnNonConformant   WarningKind = "NON_CONFORMANT"
)

// Warning is a non-fatal condition. Count is the running total of warnings of
// the same kind seen by the reporting component.
type Warning struct {
	Kind    WarningKind
	Message string
	Count   int
}

// Reporter receives warnings. Implementations are called synchronously on the
// goroutine that produced the warning and must return quickly.
type Reporter interface {
	Warn(w Warning)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(w Warning)

// Warn calls f(w).
func (f ReporterFunc) Warn(w Warning) { f(w) }

// LogReporter logs every warning through the package logger and continues.
type LogReporter struct{}

// Warn implements Reporter.
func (LogReporter) Warn(w Warning) {
	logger.GetLogger().Warn(w.Message, "kind", string(w.Kind), "count", w.Count)
}

// DefaultReporter is used by components that were not given a Reporter.
var DefaultReporter Reporter = LogReporter{}

// CountingReporter records warnings per kind. It is safe for concurrent use.
type CountingReporter struct {
	mu     sync.Mutex
	counts map[WarningKind]int
	last   []Warning
}

// NewCountingReporter creates an empty CountingReporter.
func NewCountingReporter() *CountingReporter {
	return &CountingReporter{counts: make(map[WarningKind]int)}
}

// Warn implements Reporter.
func (r *CountingReporter) Warn(w Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[w.Kind]++
	r.last = append(r.last, w)
}

// Count returns how many warnings of kind were reported.
func (r *CountingReporter) Count(kind WarningKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

// Warnings returns a copy of every warning received, in order.
func (r *CountingReporter) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Warning, len(r.last))
	copy(out, r.last)
	return out
}
