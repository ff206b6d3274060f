// Package metrics provides delivery statistics for the chat relay.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventType represents the type of relay event being tracked.
type EventType string

const (
	EventMessageReceived  EventType = "message_received"
	EventAccessDenied     EventType = "access_denied"
	EventRateLimited      EventType = "rate_limited"
	EventAnalysisComplete EventType = "analysis_complete"
	EventAnalysisError    EventType = "analysis_error"
	EventReplyError       EventType = "reply_error"
)

const maxRecentErrors = 10

// RelayMetrics tracks delivery metrics for one platform.
type RelayMetrics struct {
	mu sync.RWMutex

	// Counters
	totalReceived    int64
	accessDenied     int64
	rateLimited      int64
	analysesComplete int64
	analysisErrors   int64
	replyErrors      int64

	// Timing
	lastReceived      time.Time
	lastError         time.Time
	avgAnalysisTime   time.Duration
	totalAnalysisTime int64

	// Error tracking
	recentErrors []ErrorRecord
}

// ErrorRecord records details of an error.
type ErrorRecord struct {
	Timestamp time.Time
	EventType EventType
	Error     string
	Platform  string
}

// Registry holds metrics per platform. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]*RelayMetrics
	started time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]*RelayMetrics),
		started: time.Now(),
	}
}

// RecordEvent records a relay event. For error events, reason should be a
// short category, not raw error text.
func (r *Registry) RecordEvent(platform string, eventType EventType, duration time.Duration, reason string) {
	r.mu.Lock()
	m, exists := r.metrics[platform]
	if !exists {
		m = &RelayMetrics{
			recentErrors: make([]ErrorRecord, 0, maxRecentErrors),
		}
		r.metrics[platform] = m
	}
	r.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	switch eventType {
	case EventMessageReceived:
		m.totalReceived++
		m.lastReceived = now

	case EventAccessDenied:
		m.accessDenied++

	case EventRateLimited:
		m.rateLimited++

	case EventAnalysisComplete:
		m.analysesComplete++
		if duration > 0 {
			m.totalAnalysisTime += int64(duration)
			m.avgAnalysisTime = time.Duration(m.totalAnalysisTime / m.analysesComplete)
		}

	case EventAnalysisError:
		m.analysisErrors++
		m.lastError = now
		m.addErrorRecord(now, eventType, reason, platform)

	case EventReplyError:
		m.replyErrors++
		m.lastError = now
		m.addErrorRecord(now, eventType, reason, platform)
	}
}

// addErrorRecord adds an error to the recent errors list.
func (m *RelayMetrics) addErrorRecord(ts time.Time, eventType EventType, reason string, platform string) {
	m.recentErrors = append(m.recentErrors, ErrorRecord{
		Timestamp: ts,
		EventType: eventType,
		Error:     reason,
		Platform:  platform,
	})
	if len(m.recentErrors) > maxRecentErrors {
		m.recentErrors = m.recentErrors[1:]
	}
}

// GetMetrics returns a snapshot of metrics for a platform, or nil if nothing
// was recorded yet.
func (r *Registry) GetMetrics(platform string) *RelayMetricsSnapshot {
	r.mu.RLock()
	m, exists := r.metrics[platform]
	r.mu.RUnlock()
	if !exists {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return &RelayMetricsSnapshot{
		Since:            r.started,
		TotalReceived:    m.totalReceived,
		AccessDenied:     m.accessDenied,
		RateLimited:      m.rateLimited,
		AnalysesComplete: m.analysesComplete,
		AnalysisErrors:   m.analysisErrors,
		ReplyErrors:      m.replyErrors,
		LastReceived:     m.lastReceived,
		LastError:        m.lastError,
		AvgAnalysisTime:  m.avgAnalysisTime,
		RecentErrors:     append([]ErrorRecord{}, m.recentErrors...),
	}
}

// RelayMetricsSnapshot is a thread-safe snapshot of relay metrics.
type RelayMetricsSnapshot struct {
	Since            time.Time
	TotalReceived    int64
	AccessDenied     int64
	RateLimited      int64
	AnalysesComplete int64
	AnalysisErrors   int64
	ReplyErrors      int64
	LastReceived     time.Time
	LastError        time.Time
	AvgAnalysisTime  time.Duration
	RecentErrors     []ErrorRecord
}

// SuccessRate calculates the analysis success rate in percent.
func (s *RelayMetricsSnapshot) SuccessRate() float64 {
	total := s.AnalysesComplete + s.AnalysisErrors
	if total == 0 {
		return 100.0
	}
	return float64(s.AnalysesComplete) / float64(total) * 100.0
}

// IsHealthy reports whether the last analysis attempt did not fail.
func (s *RelayMetricsSnapshot) IsHealthy() bool {
	if s.LastError.IsZero() {
		return true
	}
	return s.LastReceived.After(s.LastError) && s.AnalysesComplete > 0
}

// Format renders the snapshot as a short plain-text report for chat.
func (s *RelayMetricsSnapshot) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Relay stats (since %s)\n", s.Since.UTC().Format(time.RFC3339))
	status := "healthy"
	if !s.IsHealthy() {
		status = "degraded"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Messages: %d\n", s.TotalReceived)
	fmt.Fprintf(&b, "Analyses: %d ok, %d failed (%.0f%% success)\n", s.AnalysesComplete, s.AnalysisErrors, s.SuccessRate())
	fmt.Fprintf(&b, "Average analysis time: %s\n", s.AvgAnalysisTime.Round(time.Second))
	fmt.Fprintf(&b, "Denied: %d, rate limited: %d, reply errors: %d", s.AccessDenied, s.RateLimited, s.ReplyErrors)
	if n := len(s.RecentErrors); n > 0 {
		last := s.RecentErrors[n-1]
		fmt.Fprintf(&b, "\nLast error: %s at %s", last.Error, last.Timestamp.UTC().Format(time.RFC3339))
	}
	return b.String()
}
