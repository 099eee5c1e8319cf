package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePollStats struct{ last time.Time }

func (f fakePollStats) TickCount() int64    { return 12 }
func (f fakePollStats) ErrorCount() int64   { return 2 }
func (f fakePollStats) LastTick() time.Time { return f.last }

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1.00 KB"},
		{1536 * 1024, "1.50 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestGetSystemStats(t *testing.T) {
	last := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	stats := GetSystemStats(fakePollStats{last: last})

	assert.Positive(t, stats.NumCPU)
	assert.Positive(t, stats.GoRoutines)
	assert.Positive(t, stats.MemorySys)
	assert.GreaterOrEqual(t, stats.CPUUsage, 0.0)
	assert.Equal(t, int64(12), stats.PollTicks)
	assert.Equal(t, int64(2), stats.PollErrors)
	assert.Equal(t, last, stats.LastPollTick)
	assert.False(t, stats.Timestamp.IsZero())
}

func TestGetSystemStats_NoPoller(t *testing.T) {
	stats := GetSystemStats(nil)
	assert.Zero(t, stats.PollTicks)
	assert.True(t, stats.LastPollTick.IsZero())
}
