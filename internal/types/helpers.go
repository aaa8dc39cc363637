package types

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return &s
}
