// Package permission maps named capabilities onto bit positions inside a
// fixed-width mask, and composes per-role masks from permission name lists.
// Registries and role sets are built once during store construction, frozen,
// and read-only afterwards.
package permission

// Mask64 is a 64-bit permission bitmask.
type Mask64 uint64

// Has reports whether the given bit is set. Out-of-range bits are never set.
func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return m&(1<<uint(bit)) != 0
}

// Set sets the given bit. Out-of-range bits are ignored.
func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << uint(bit)
}

// Union returns the bitwise union of m and other.
func (m Mask64) Union(other Mask64) Mask64 {
	return m | other
}
