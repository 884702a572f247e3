// Copyright 2026 The QuicPair Authors
// SPDX-License-Identifier: Apache-2.0

package latency

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSummaryEmpty(t *testing.T) {
	summary := NewRecorder(0).Summary()
	if summary != (Summary{}) {
		t.Fatalf("Summary() = %+v, want zero", summary)
	}
}

func TestSummaryPercentiles(t *testing.T) {
	recorder := NewRecorder(0)
	// Out of order on purpose.
	for _, ms := range []int{70, 10, 100, 40, 20, 90, 30, 60, 80, 50} {
		recorder.Record(Sample{ExchangeID: fmt.Sprint(ms), Elapsed: time.Duration(ms) * time.Millisecond})
	}

	summary := recorder.Summary()
	if summary.Count != 10 {
		t.Fatalf("Count = %d, want 10", summary.Count)
	}
	if summary.P50 != 50*time.Millisecond {
		t.Fatalf("P50 = %s, want 50ms", summary.P50)
	}
	if summary.P90 != 90*time.Millisecond {
		t.Fatalf("P90 = %s, want 90ms", summary.P90)
	}
	if summary.Avg != 55*time.Millisecond {
		t.Fatalf("Avg = %s, want 55ms", summary.Avg)
	}
}

func TestSummarySingleSample(t *testing.T) {
	recorder := NewRecorder(0)
	recorder.Record(Sample{Elapsed: 120 * time.Millisecond})

	summary := recorder.Summary()
	want := Summary{Count: 1, P50: 120 * time.Millisecond, P90: 120 * time.Millisecond, Avg: 120 * time.Millisecond}
	if summary != want {
		t.Fatalf("Summary() = %+v, want %+v", summary, want)
	}
}

func TestRecorderCapacityDropsOldest(t *testing.T) {
	recorder := NewRecorder(3)
	for i := 1; i <= 5; i++ {
		recorder.Record(Sample{ExchangeID: fmt.Sprint(i), Elapsed: time.Duration(i) * time.Millisecond})
	}

	samples := recorder.Samples()
	if len(samples) != 3 {
		t.Fatalf("len(Samples()) = %d, want 3", len(samples))
	}
	for i, want := range []string{"3", "4", "5"} {
		if samples[i].ExchangeID != want {
			t.Fatalf("Samples()[%d].ExchangeID = %q, want %q", i, samples[i].ExchangeID, want)
		}
	}
}

func TestSamplesReturnsCopy(t *testing.T) {
	recorder := NewRecorder(0)
	recorder.Record(Sample{ExchangeID: "a"})
	samples := recorder.Samples()
	samples[0].ExchangeID = "mutated"
	if got := recorder.Samples()[0].ExchangeID; got != "a" {
		t.Fatalf("stored sample changed to %q", got)
	}
}

func TestMilliseconds(t *testing.T) {
	summary := Summary{Count: 2, P50: 1500 * time.Microsecond, P90: 3 * time.Millisecond, Avg: 2 * time.Millisecond}
	wire := summary.Milliseconds()
	if wire["p50_ms"] != 1.5 || wire["p90_ms"] != 3.0 || wire["avg_ms"] != 2.0 || wire["count"] != 2 {
		t.Fatalf("Milliseconds() = %v", wire)
	}
}

func TestRecordConcurrent(t *testing.T) {
	recorder := NewRecorder(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				recorder.Record(Sample{Elapsed: time.Millisecond})
				recorder.Summary()
			}
		}()
	}
	wg.Wait()
	if recorder.Len() != 400 {
		t.Fatalf("Len() = %d, want 400", recorder.Len())
	}
}
