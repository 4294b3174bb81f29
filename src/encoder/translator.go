// Package encoder converts between wrapping hardware counter readings and a
// continuous scaled value such as an angle or a linear position.
package encoder

import (
	"errors"
	"fmt"
	"math"
)

// MaxResolutionBits is the widest counter the translator can track.
const MaxResolutionBits = 32

var (
	// ErrResolutionIsZero is returned when a counter depth of 0 bits is requested.
	ErrResolutionIsZero = errors.New("encoder: counter resolution is zero")
	// ErrResolutionTooHigh is returned when the counter depth exceeds MaxResolutionBits.
	ErrResolutionTooHigh = errors.New("encoder: counter resolution too high")
	// ErrInvalidScale is returned when counts or value per revolution can't be used as a divisor.
	ErrInvalidScale = errors.New("encoder: invalid scale")
	// ErrNotConfigured is returned by operations that need the scale before Configure succeeded.
	ErrNotConfigured = errors.New("encoder: translator not configured")
)

// Translator tracks a raw counter and the scaled value it represents.
// The zero value is unconfigured; Configure (or New) must succeed before
// Decode, Encode or ResetValue can be used.
//
// A Translator is not safe for concurrent use. Give each one a single owner.
type Translator struct {
	value        float64 // Accumulated scaled value
	count        int32   // Last raw count
	valuePerRev  float64 // Scaled units per revolution
	countsPerRev uint32  // Counter ticks per revolution
	counterLimit int64   // -2^(bits-1), wraparound threshold
	bits         uint8
	configured   bool
}

// State is a copy of a translator's configuration and live values.
type State struct {
	Value        float64
	Count        int32
	ValuePerRev  float64
	CountsPerRev uint32
	Bits         uint8
	CounterLimit int64
	Configured   bool
}

// New returns a configured translator.
func New(bits uint8, countsPerRev uint32, valuePerRev float64) (*Translator, error) {
	t := &Translator{}
	if err := t.Configure(bits, countsPerRev, valuePerRev); err != nil {
		return nil, err
	}
	return t, nil
}

// CounterLimit returns the negative half range of a signed counter with the given depth.
func CounterLimit(bits uint8) (int64, error) {
	if bits == 0 {
		return 0, ErrResolutionIsZero
	}
	if bits > MaxResolutionBits {
		return 0, fmt.Errorf("%w: %d bits (max %d)", ErrResolutionTooHigh, bits, MaxResolutionBits)
	}
	return -(int64(1) << (bits - 1)), nil
}

// Configure sets the counter depth and scale, and zeroes count and value.
// On error the translator is left untouched.
func (t *Translator) Configure(bits uint8, countsPerRev uint32, valuePerRev float64) error {
	limit, err := CounterLimit(bits)
	if err != nil {
		return err
	}
	if countsPerRev == 0 {
		return fmt.Errorf("%w: counts per revolution is zero", ErrInvalidScale)
	}
	if valuePerRev == 0 || math.IsNaN(valuePerRev) || math.IsInf(valuePerRev, 0) {
		return fmt.Errorf("%w: value per revolution is %v", ErrInvalidScale, valuePerRev)
	}

	t.value = 0
	t.count = 0
	t.valuePerRev = valuePerRev
	t.countsPerRev = countsPerRev
	t.counterLimit = limit
	t.bits = bits
	t.configured = true
	return nil
}

// Reset sets count and value to a known reference point, e.g. a homing switch.
// The pair is not checked for consistency.
func (t *Translator) Reset(count int32, value float64) {
	t.count = count
	t.value = value
}

// ResetValue sets the value and derives the count from it, truncating toward zero.
func (t *Translator) ResetValue(value float64) error {
	if !t.configured {
		return ErrNotConfigured
	}
	t.value = value
	t.count = t.toCount(value)
	return nil
}

// Decode folds a new raw counter reading into the accumulated value and returns it.
// At most one counter wrap is assumed to have happened since the previous reading.
func (t *Translator) Decode(raw int32) (float64, error) {
	if !t.configured {
		return 0, ErrNotConfigured
	}

	delta := int64(raw) - int64(t.count)
	if delta < t.counterLimit {
		// Large negative jump: the counter wrapped forwards
		delta -= 2 * t.counterLimit
	} else if delta > -t.counterLimit {
		// Large positive jump: the counter wrapped backwards
		delta += 2 * t.counterLimit
	}

	t.count = raw
	t.value += float64(delta) * t.valuePerRev / float64(t.countsPerRev)
	return t.value, nil
}

// Encode stores value as the new target and returns the change in counts
// from the previous count. No wraparound correction is applied to the delta.
func (t *Translator) Encode(value float64) (int32, error) {
	if !t.configured {
		return 0, ErrNotConfigured
	}

	count := t.toCount(value)
	delta := count - t.count
	t.count = count
	// Keep the caller's value so truncation doesn't accumulate in it
	t.value = value
	return delta, nil
}

// toCount converts a scaled value to an absolute count, truncating toward zero.
func (t *Translator) toCount(value float64) int32 {
	return int32(int64(value * float64(t.countsPerRev) / t.valuePerRev))
}

// Value returns the accumulated scaled value.
func (t *Translator) Value() float64 { return t.value }

// Count returns the last raw count.
func (t *Translator) Count() int32 { return t.count }

// CountsPerRev returns the configured counts per revolution.
func (t *Translator) CountsPerRev() uint32 { return t.countsPerRev }

// ValuePerRev returns the configured scaled units per revolution.
func (t *Translator) ValuePerRev() float64 { return t.valuePerRev }

// Bits returns the configured counter depth.
func (t *Translator) Bits() uint8 { return t.bits }

// CounterLimit returns the wraparound threshold, -2^(bits-1).
func (t *Translator) CounterLimit() int64 { return t.counterLimit }

// Configured reports whether Configure has succeeded.
func (t *Translator) Configured() bool { return t.configured }

// Snapshot returns a copy of the translator state.
func (t *Translator) Snapshot() State {
	return State{
		Value:        t.value,
		Count:        t.count,
		ValuePerRev:  t.valuePerRev,
		CountsPerRev: t.countsPerRev,
		Bits:         t.bits,
		CounterLimit: t.counterLimit,
		Configured:   t.configured,
	}
}
