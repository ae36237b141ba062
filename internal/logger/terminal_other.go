//go:build !linux && !darwin

package logger

// isTerminal disables color where terminal detection is not implemented.
func isTerminal(fd uintptr) bool {
	return false
}
