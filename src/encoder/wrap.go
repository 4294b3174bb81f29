package encoder

// Wrap folds an absolute count into the signed range of the configured counter,
// [-2^(bits-1), 2^(bits-1)-1]. Drivers that take a wrapping counter target
// rather than a delta use this on the result of Encode.
// An unconfigured translator returns the count truncated to 32 bits.
func (t *Translator) Wrap(count int64) int32 {
	if !t.configured {
		return int32(count)
	}
	half := -t.counterLimit
	span := 2 * half
	r := (count + half) % span
	if r < 0 {
		r += span
	}
	return int32(r - half)
}
