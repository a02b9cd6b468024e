// Package prof records how long each stage of a verification takes.
package prof

import (
	"sync"
	"time"
)

// Entry represents a single timing measurement.
type Entry struct {
	Label string
	Dur   time.Duration
}

// Recorder accumulates entries; the zero value is ready to use.
type Recorder struct {
	mu     sync.Mutex
	record []Entry
}

// Track logs the duration since start under name. Repeated labels are
// summed, so per-segment calls add up to one line.
func (r *Recorder) Track(start time.Time, name string) {
	elapsed := time.Since(start)
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.record {
		if r.record[i].Label == name {
			r.record[i].Dur += elapsed
			return
		}
	}
	r.record = append(r.record, Entry{Label: name, Dur: elapsed})
}

// Entries returns the entries in first-seen order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.record))
	copy(out, r.record)
	return out
}

// Total is the sum of all entries.
func (r *Recorder) Total() time.Duration {
	var d time.Duration
	for _, e := range r.Entries() {
		d += e.Dur
	}
	return d
}
