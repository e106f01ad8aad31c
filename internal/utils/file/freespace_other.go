//go:build !linux

package file

// FreeBytes is not supported on this platform.
func FreeBytes(_ string) (int64, error) {
	return 0, ErrFreeSpaceUnsupported
}
