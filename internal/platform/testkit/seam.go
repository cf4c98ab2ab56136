package testkit

import "testing"

// Swap replaces a seam (a function-valued field or package variable) for the
// duration of the test and restores the original on cleanup
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}
