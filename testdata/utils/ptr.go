package utils

// Ptr returns a pointer to v. Test helper for literal pointer fields.
func Ptr[T any](v T) *T {
	return &v
}
