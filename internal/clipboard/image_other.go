//go:build !windows

package clipboard

// readImage reports no image; only text is read on this platform.
func readImage() ([]byte, error) {
	return nil, nil
}
