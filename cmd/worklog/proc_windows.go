//go:build windows

package main

import "os/exec"

// configureDaemonProc is a no-op: a child process outlives its parent on Windows.
func configureDaemonProc(c *exec.Cmd) {}
