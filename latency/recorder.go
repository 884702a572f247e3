// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

// Package latency records time-to-first-token samples and summarizes
// them as percentiles.
//
// A sample is committed once per exchange, when the exchange ends with
// done or error. Exchanges abandoned by a closed channel never reach
// the recorder.
package latency

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// DefaultCapacity bounds how many samples a Recorder keeps. Older
// samples are dropped first.
const DefaultCapacity = 1000

// Sample is one time-to-first-token measurement.
type Sample struct {
	// ExchangeID identifies the exchange the sample belongs to.
	ExchangeID string

	// Elapsed is the time from sending the prompt to the first token.
	Elapsed time.Duration

	// At is when the sample was committed.
	At time.Time
}

// Summary aggregates the retained samples. All fields are zero when
// there are no samples.
type Summary struct {
	Count int
	P50   time.Duration
	P90   time.Duration
	Avg   time.Duration
}

// Milliseconds returns the summary in the /metrics/ttft wire shape.
func (s Summary) Milliseconds() map[string]any {
	return map[string]any{
		"p50_ms": float64(s.P50) / float64(time.Millisecond),
		"p90_ms": float64(s.P90) / float64(time.Millisecond),
		"avg_ms": float64(s.Avg) / float64(time.Millisecond),
		"count":  s.Count,
	}
}

// Recorder is a bounded, concurrency-safe sample store. The zero value
// is not usable; call NewRecorder.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	samples  []Sample
}

// NewRecorder returns a Recorder keeping at most capacity samples
// (DefaultCapacity when capacity <= 0).
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{capacity: capacity}
}

// Record commits a sample.
func (r *Recorder) Record(sample Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) == r.capacity {
		copy(r.samples, r.samples[1:])
		r.samples = r.samples[:len(r.samples)-1]
	}
	r.samples = append(r.samples, sample)
}

// Samples returns a copy of the retained samples, oldest first.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

// Len returns the number of retained samples.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Summary computes p50, p90 and mean over the retained samples.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	data := make(stats.Float64Data, len(r.samples))
	for i, sample := range r.samples {
		data[i] = float64(sample.Elapsed)
	}
	r.mu.Unlock()

	if len(data) == 0 {
		return Summary{}
	}
	summary := Summary{Count: len(data)}
	if p50, err := data.Percentile(50); err == nil {
		summary.P50 = time.Duration(p50)
	}
	if p90, err := data.Percentile(90); err == nil {
		summary.P90 = time.Duration(p90)
	}
	if mean, err := data.Mean(); err == nil {
		summary.Avg = time.Duration(mean)
	}
	return summary
}
