// Package tracking keeps short histories of axis positions.
package tracking

import (
	"math"
	"time"
)

// rangeBucket holds the travel seen during a single minute
type rangeBucket struct {
	low, high float64
}

func emptyBucket() rangeBucket {
	return rangeBucket{low: math.MaxFloat64, high: -math.MaxFloat64}
}

func (b rangeBucket) empty() bool {
	return b.low > b.high
}

// RollingRange tracks the lowest and highest position of an axis over the last hour,
// using 60 one-minute buckets.
type RollingRange struct {
	buckets       [60]rangeBucket
	currentMinute int64 // minutes since the Unix epoch, -1 = nothing recorded
}

// NewRollingRange creates an empty RollingRange.
func NewRollingRange() RollingRange {
	r := RollingRange{}
	r.Clear()
	return r
}

// Clear drops all history, e.g. after the axis has been re-homed and old
// positions are no longer comparable.
func (r *RollingRange) Clear() {
	r.currentMinute = -1
	for i := range r.buckets {
		r.buckets[i] = emptyBucket()
	}
}

// Record adds a position at the current time.
func (r *RollingRange) Record(position float64) {
	r.recordAt(position, time.Now().Unix()/60)
}

// recordAt adds a position at the given minute since the epoch (for testing)
func (r *RollingRange) recordAt(position float64, minute int64) {
	window := int64(len(r.buckets))

	switch {
	case r.currentMinute < 0 || minute-r.currentMinute >= window:
		// Nothing in the window is recent enough to keep
		r.Clear()
	case minute > r.currentMinute:
		// Anything between the last minute and this one saw no updates
		for m := r.currentMinute + 1; m < minute; m++ {
			r.buckets[m%window] = emptyBucket()
		}
	default:
		// Same minute, or the clock stepped back
		b := &r.buckets[r.currentMinute%window]
		b.low = min(b.low, position)
		b.high = max(b.high, position)
		return
	}

	r.buckets[minute%window] = rangeBucket{low: position, high: position}
	r.currentMinute = minute
}

// Empty reports whether no position has been recorded in the window.
func (r *RollingRange) Empty() bool {
	for _, b := range r.buckets {
		if !b.empty() {
			return false
		}
	}
	return true
}

// Low returns the lowest recorded position, or 0 if there is none.
func (r *RollingRange) Low() float64 {
	result := math.MaxFloat64
	for _, b := range r.buckets {
		result = min(result, b.low)
	}
	if result == math.MaxFloat64 {
		return 0
	}
	return result
}

// High returns the highest recorded position, or 0 if there is none.
func (r *RollingRange) High() float64 {
	result := -math.MaxFloat64
	for _, b := range r.buckets {
		result = max(result, b.high)
	}
	if result == -math.MaxFloat64 {
		return 0
	}
	return result
}

// Travel returns High - Low.
func (r *RollingRange) Travel() float64 {
	return r.High() - r.Low()
}
