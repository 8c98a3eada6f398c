//go:build windows

package cliserver

import (
	"os/exec"
	"strconv"
)

func setProcessGroup(*exec.Cmd) {}

// killProcessTree terminates pid and all of its descendants.
func killProcessTree(pid int) error {
	if pid <= 0 {
		return nil
	}
	// #nosec G204 -- fixed executable, numeric pid
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}
