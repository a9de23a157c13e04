package resourcemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompare_NoFindingBelowThresholds(t *testing.T) {
	before := Snapshot{At: time.Now(), Goroutines: 10, RSSBytes: 1000}
	after := Snapshot{At: time.Now(), Goroutines: 12, RSSBytes: 1100}
	f := Compare(before, after, DefaultThresholds())
	assert.Nil(t, f)
}

func TestCompare_FindingOnGoroutineGrowth(t *testing.T) {
	before := Snapshot{Goroutines: 10}
	after := Snapshot{Goroutines: 10 + DefaultThresholds().GoroutineGrowth + 1}
	f := Compare(before, after, DefaultThresholds())
	if assert.NotNil(t, f) {
		assert.Contains(t, f.Message, "goroutine count grew")
	}
}

func TestCompare_FindingOnRSSGrowth(t *testing.T) {
	before := Snapshot{RSSBytes: 0}
	after := Snapshot{RSSBytes: DefaultThresholds().RSSGrowthBytes + 1}
	f := Compare(before, after, DefaultThresholds())
	if assert.NotNil(t, f) {
		assert.Contains(t, f.Message, "resident memory grew")
	}
}

func TestTake_ReturnsPositiveGoroutineCount(t *testing.T) {
	snap := Take()
	assert.Greater(t, snap.Goroutines, 0)
}
