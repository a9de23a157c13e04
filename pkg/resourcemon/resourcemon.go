// Package resourcemon samples process-level resources around a
// pipeline run and reports unexpected growth, the way
// pkg/goroutines and pkg/leakdetection watch for leaks around
// long-running sink loops — generalized here to a
// before/after snapshot taken around one pipeline run instead of a
// background ticker, since the aggregator's unit of concurrency is a
// bounded fan-out, not an always-on worker pool.
package resourcemon

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

func procPID() int { return os.Getpid() }

// Snapshot captures goroutine count and process memory at one instant.
type Snapshot struct {
	At          time.Time
	Goroutines  int
	RSSBytes    uint64
	SystemUsed  float64 // fraction of total system memory in use, 0..1
}

// Take samples the current process and system memory usage. It never
// fails the caller: if the OS query fails, the memory fields are zero
// and only the goroutine count (always available) is meaningful.
func Take() Snapshot {
	snap := Snapshot{At: time.Now(), Goroutines: runtime.NumGoroutine()}

	if proc, err := process.NewProcess(int32(procPID())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
			snap.RSSBytes = mi.RSS
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		snap.SystemUsed = vm.UsedPercent / 100
	}
	return snap
}

// Finding describes unexpected resource growth detected between two
// snapshots taken around a pipeline run. Kind is a low-cardinality
// classification ("goroutines" or "rss") suitable for a metrics label;
// Message carries the human-readable detail.
type Finding struct {
	Kind    string
	Message string
	Before  Snapshot
	After   Snapshot
}

// Thresholds configures how much growth between a before/after snapshot
// pair counts as a Finding worth surfacing.
type Thresholds struct {
	GoroutineGrowth int     // absolute increase in goroutine count
	RSSGrowthBytes  uint64  // absolute increase in resident memory
}

// DefaultThresholds mirrors a goroutine leak_threshold default of 100,
// extended with a 64MB RSS growth threshold.
func DefaultThresholds() Thresholds {
	return Thresholds{GoroutineGrowth: 100, RSSGrowthBytes: 64 * 1024 * 1024}
}

// Compare reports a Finding if after grew past before by more than
// thresholds allow. A nil return means nothing noteworthy happened.
func Compare(before, after Snapshot, thresholds Thresholds) *Finding {
	goroutineDelta := after.Goroutines - before.Goroutines
	var rssDelta uint64
	if after.RSSBytes > before.RSSBytes {
		rssDelta = after.RSSBytes - before.RSSBytes
	}

	switch {
	case goroutineDelta > thresholds.GoroutineGrowth:
		return &Finding{
			Kind:    "goroutines",
			Message: fmt.Sprintf("goroutine count grew by %d (from %d to %d) during the run", goroutineDelta, before.Goroutines, after.Goroutines),
			Before:  before, After: after,
		}
	case rssDelta > thresholds.RSSGrowthBytes:
		return &Finding{
			Kind:    "rss",
			Message: fmt.Sprintf("resident memory grew by %d bytes (from %d to %d) during the run", rssDelta, before.RSSBytes, after.RSSBytes),
			Before:  before, After: after,
		}
	default:
		return nil
	}
}

// Around runs fn, sampling before and after, and returns any Finding
// along with fn's own error. This is process-level accounting, not item
// metadata — the ItemMetadata taxonomy has no room for it, and it isn't
// meant to: findings here are surfaced through the admin server (see
// internal/admin), not attached to any item.
func Around(ctx context.Context, thresholds Thresholds, fn func(context.Context) error) (*Finding, error) {
	before := Take()
	err := fn(ctx)
	after := Take()
	return Compare(before, after, thresholds), err
}
