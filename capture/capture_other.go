//go:build !windows

package capture

import "errors"

// Open is only implemented on Windows, where the desktop is captured
// through GDI.
func Open(displays int) (Source, error) {
	return nil, errors.New("capture: not implemented on this platform")
}
