package logging

import (
	"strings"
	"time"
)

// ProgressSampler thins copy progress lines. A line is kept when the copy
// label changes, when the percentage enters a new bucket, or when the
// heartbeat interval has passed since the last kept line. The heartbeat
// matters for large trees, where rsync can sit at the same percentage for a
// long time while it scans.
type ProgressSampler struct {
	bucketSize float64
	heartbeat  time.Duration
	now        func() time.Time

	lastLabel  string
	lastBucket int
	lastEmit   time.Time
}

// SamplerOption customizes a ProgressSampler.
type SamplerOption func(*ProgressSampler)

// WithHeartbeat keeps one line per interval even without progress. Zero
// disables the heartbeat.
func WithHeartbeat(interval time.Duration) SamplerOption {
	return func(s *ProgressSampler) {
		if interval > 0 {
			s.heartbeat = interval
		}
	}
}

// NewProgressSampler returns a sampler with the given bucket width in
// percent (10 when not positive).
func NewProgressSampler(bucketSize float64, opts ...SamplerOption) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	s := &ProgressSampler{bucketSize: bucketSize, lastBucket: -1, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldLog reports whether to log a progress event. A negative percent
// means unknown and never advances the bucket.
func (s *ProgressSampler) ShouldLog(percent float64, label string) bool {
	if s == nil {
		return true
	}
	now := s.now()
	label = strings.TrimSpace(label)

	emit := false
	if label != "" && label != s.lastLabel {
		s.lastLabel = label
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := int(min(percent, 100) / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	if !emit && s.heartbeat > 0 && !s.lastEmit.IsZero() && now.Sub(s.lastEmit) >= s.heartbeat {
		emit = true
	}
	if emit {
		s.lastEmit = now
	}
	return emit
}

// Reset forgets the previous label and bucket.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastLabel = ""
	s.lastBucket = -1
	s.lastEmit = time.Time{}
}
