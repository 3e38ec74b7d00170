// Package process tears down browsers launched for the local backend.
package process

import (
	"errors"
	"fmt"
)

// ErrInvalidPID is returned for pids that cannot name a launched browser.
var ErrInvalidPID = errors.New("invalid browser pid")

// KillBrowser kills the browser with the given pid together with the
// renderer, GPU and zygote processes it spawned. A browser that already
// exited is not an error.
//
// Pids 0 and 1 are refused: they would target the caller's own process
// group or init.
func KillBrowser(pid int) error {
	if pid <= 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	return killTree(pid)
}
