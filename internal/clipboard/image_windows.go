//go:build windows

package clipboard

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

const cfDIB = 8

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procOpenClipboard              = user32.NewProc("OpenClipboard")
	procCloseClipboard             = user32.NewProc("CloseClipboard")
	procIsClipboardFormatAvailable = user32.NewProc("IsClipboardFormatAvailable")
	procGetClipboardData           = user32.NewProc("GetClipboardData")
	procGlobalLock                 = kernel32.NewProc("GlobalLock")
	procGlobalUnlock               = kernel32.NewProc("GlobalUnlock")
	procGlobalSize                 = kernel32.NewProc("GlobalSize")
)

// readImage returns the clipboard bitmap as PNG, or nil when the clipboard
// holds no bitmap.
func readImage() ([]byte, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if r, _, _ := procIsClipboardFormatAvailable.Call(cfDIB); r == 0 {
		return nil, nil
	}

	if r, _, err := procOpenClipboard.Call(0); r == 0 {
		return nil, fmt.Errorf("OpenClipboard: %w", err)
	}
	defer procCloseClipboard.Call()

	h, _, err := procGetClipboardData.Call(cfDIB)
	if h == 0 {
		return nil, fmt.Errorf("GetClipboardData: %w", err)
	}

	size, _, _ := procGlobalSize.Call(h)
	ptr, _, err := procGlobalLock.Call(h)
	if ptr == 0 {
		return nil, fmt.Errorf("GlobalLock: %w", err)
	}
	defer procGlobalUnlock.Call(h)

	dib := make([]byte, size)
	copy(dib, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size))

	return DIBToPNG(dib)
}
