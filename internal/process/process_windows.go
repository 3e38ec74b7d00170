//go:build windows

package process

import (
	"os/exec"
	"strconv"
)

// killTree runs taskkill; /T takes the child processes down with pid.
func killTree(pid int) error {
	return exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run() // #nosec G204 -- pid is an integer
}
