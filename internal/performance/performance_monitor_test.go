package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMonitor_EndSegment(t *testing.T) {
	t.Run("should accumulate segment counts and audio duration", func(t *testing.T) {
		m := NewMonitor(zap.NewNop())

		timer := m.StartSegment(30000)
		m.EndSegment(timer, true)
		timer = m.StartSegment(5000)
		m.EndSegment(timer, false)

		metrics := m.GetMetrics()
		assert.Equal(t, int64(2), metrics.TotalSegments)
		assert.Equal(t, int64(1), metrics.RecognizedSegments)
		assert.Equal(t, int64(1), metrics.EmptySegments)
		assert.Equal(t, int64(35000), metrics.TotalAudioMS)
	})

	t.Run("should track min and max request times", func(t *testing.T) {
		m := NewMonitor(zap.NewNop())

		timer := m.StartSegment(1000)
		time.Sleep(time.Millisecond)
		m.EndSegment(timer, true)

		metrics := m.GetMetrics()
		assert.LessOrEqual(t, metrics.MinRequestTime, metrics.MaxRequestTime)
		assert.Greater(t, metrics.AvgRequestTime, time.Duration(0))
	})
}

func TestMonitor_GetSummary(t *testing.T) {
	t.Run("should report when no segments were processed", func(t *testing.T) {
		m := NewMonitor(zap.NewNop())

		assert.Equal(t, "No recognition metrics available", m.GetSummary())
	})

	t.Run("should include recognition rate", func(t *testing.T) {
		m := NewMonitor(zap.NewNop())
		m.EndSegment(m.StartSegment(30000), true)
		m.EndSegment(m.StartSegment(30000), true)

		summary := m.GetSummary()

		assert.Contains(t, summary, "Total Segments: 2")
		assert.Contains(t, summary, "100.0%")
	})
}

func TestMonitor_ResetMetrics(t *testing.T) {
	t.Run("should clear accumulated metrics", func(t *testing.T) {
		m := NewMonitor(zap.NewNop())
		m.EndSegment(m.StartSegment(1000), true)

		m.ResetMetrics()

		assert.Equal(t, int64(0), m.GetMetrics().TotalSegments)
	})
}
