package kernel

// Version is the optimistic-lock counter persisted with every aggregate. A freshly
// constructed aggregate is at 0; each successful write advances it by one.
type Version struct {
	value int
}

func RestoreVersion(value int) Version {
	return Version{value: value}
}

func (v Version) Current() int {
	return v.value
}

// Advance moves to the next version and returns the version the stored row must still
// carry for the write to succeed.
func (v *Version) Advance() (expected int, next int) {
	expected = v.value
	v.value++
	return expected, v.value
}
