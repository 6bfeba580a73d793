// Package model holds the data shapes shared across the seeding pipeline:
// schema descriptors, the seed plan, and the untyped record representation.
package model

// Record is an untyped field-name-to-value mapping, mirroring the shape CRM
// APIs hand back: strings, numbers, bools, nested objects, or nil. A key
// absent from the map means the field was not present in the source payload;
// a key present with a nil value means the field was explicitly null. Callers
// that need to distinguish "omit" from "set to null" must check for key
// presence with the comma-ok form, not just zero-value equality.
type Record map[string]any

// Clone returns a shallow copy of r. Field values are not deep-copied, which
// matches every value kind the pipeline handles (strings, numbers, bools,
// nil) — none of them are mutated in place.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// StringValue returns the value at key as a string. It returns "", false if
// the key is absent, explicitly null, or not a string.
func (r Record) StringValue(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IsNull reports whether key is present in r with an explicit nil value.
func (r Record) IsNull(key string) bool {
	v, ok := r[key]
	return ok && v == nil
}

// Has reports whether key is present in r at all (null or not).
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}
