package logging

import (
	"regexp"
	"strconv"
)

var percentPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)

// ProgressSampler thins smoothie-rs progress output to one log line per
// bucket. Use a fresh sampler for each task.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress value should be logged. Negative
// percentages mean "unknown" and never emit.
func (s *ProgressSampler) ShouldLog(percent float64) bool {
	if s == nil {
		return true
	}
	if percent < 0 {
		return false
	}
	bucket := int(percent / s.bucketSize)
	if percent >= 100 {
		bucket = int(100 / s.bucketSize)
	}
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}

// ParsePercent extracts the last percentage printed on a progress line.
func ParsePercent(line string) (float64, bool) {
	matches := percentPattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(matches[len(matches)-1][1], 64)
	if err != nil || value > 100 {
		return 0, false
	}
	return value, true
}
