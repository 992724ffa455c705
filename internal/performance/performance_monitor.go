package performance

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SegmentMetrics tracks recognition performance across a job's segments
type SegmentMetrics struct {
	TotalSegments      int64
	RecognizedSegments int64
	EmptySegments      int64
	TotalAudioMS       int64
	TotalRequestTime   time.Duration
	AvgRequestTime     time.Duration
	MinRequestTime     time.Duration
	MaxRequestTime     time.Duration
	LastRequestTime    time.Duration
	LastTimestamp      time.Time
}

// SegmentTimer tracks timing for one segment recognition call
type SegmentTimer struct {
	StartTime   time.Time
	AudioMS     int64
	RequestTime time.Duration
}

// Monitor handles recognition performance tracking and reporting
type Monitor struct {
	logger  *zap.Logger
	metrics SegmentMetrics
	mu      sync.RWMutex
}

// NewMonitor creates a new performance monitor
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		metrics: SegmentMetrics{
			MinRequestTime: time.Hour, // Initialize to large value
			LastTimestamp:  time.Now(),
		},
	}
}

// StartSegment begins timing one recognition call
func (m *Monitor) StartSegment(audioMS int64) *SegmentTimer {
	return &SegmentTimer{
		StartTime: time.Now(),
		AudioMS:   audioMS,
	}
}

// EndSegment completes timing and updates metrics. The recognized flag
// distinguishes segments that produced text from empty-string results.
func (m *Monitor) EndSegment(timer *SegmentTimer, recognized bool) {
	timer.RequestTime = time.Since(timer.StartTime)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.TotalSegments++
	m.metrics.TotalAudioMS += timer.AudioMS
	m.metrics.TotalRequestTime += timer.RequestTime
	m.metrics.LastRequestTime = timer.RequestTime
	m.metrics.LastTimestamp = time.Now()

	if recognized {
		m.metrics.RecognizedSegments++
	} else {
		m.metrics.EmptySegments++
	}

	if timer.RequestTime < m.metrics.MinRequestTime {
		m.metrics.MinRequestTime = timer.RequestTime
	}
	if timer.RequestTime > m.metrics.MaxRequestTime {
		m.metrics.MaxRequestTime = timer.RequestTime
	}

	m.metrics.AvgRequestTime = time.Duration(
		int64(m.metrics.TotalRequestTime) / m.metrics.TotalSegments,
	)
}

// GetMetrics returns a copy of current metrics
func (m *Monitor) GetMetrics() SegmentMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.metrics
}

// GetSummary returns a formatted summary of recognition metrics
func (m *Monitor) GetSummary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.metrics.TotalSegments == 0 {
		return "No recognition metrics available"
	}

	recognizedPercent := float64(m.metrics.RecognizedSegments) / float64(m.metrics.TotalSegments) * 100

	return fmt.Sprintf(
		"Recognition Summary:\n"+
			"  Total Segments: %d\n"+
			"  Recognized: %.1f%% (%d recognized, %d empty)\n"+
			"  Avg Request Time: %v\n"+
			"  Min/Max Request Time: %v / %v\n"+
			"  Total Audio Processed: %.1f s\n",
		m.metrics.TotalSegments,
		recognizedPercent,
		m.metrics.RecognizedSegments,
		m.metrics.EmptySegments,
		m.metrics.AvgRequestTime,
		m.metrics.MinRequestTime,
		m.metrics.MaxRequestTime,
		float64(m.metrics.TotalAudioMS)/1000,
	)
}

// ResetMetrics clears all accumulated metrics
func (m *Monitor) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics = SegmentMetrics{
		MinRequestTime: time.Hour,
		LastTimestamp:  time.Now(),
	}

	m.logger.Info("recognition metrics reset")
}

// LogCurrentMetrics logs the current recognition metrics
func (m *Monitor) LogCurrentMetrics() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.Info("current recognition metrics",
		zap.Int64("total_segments", m.metrics.TotalSegments),
		zap.Int64("recognized_segments", m.metrics.RecognizedSegments),
		zap.Int64("empty_segments", m.metrics.EmptySegments),
		zap.Duration("avg_request_time", m.metrics.AvgRequestTime),
		zap.Duration("last_request_time", m.metrics.LastRequestTime),
		zap.Int64("total_audio_ms", m.metrics.TotalAudioMS),
	)
}
