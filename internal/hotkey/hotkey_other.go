//go:build !windows

package hotkey

func newPlatformService() (Service, error) {
	return nil, ErrUnsupported
}
