//go:build windows

package portutil

import (
	"context"
	"fmt"
	"os/exec"

	"golang.org/x/sys/windows"
)

func platformFindPIDs(ctx context.Context, port int) ([]int, error) {
	out, err := exec.CommandContext(ctx, "netstat", "-ano", "-p", "TCP").Output()
	if err != nil {
		return nil, fmt.Errorf("netstat failed: %w", err)
	}
	return parseNetstat(string(out), port), nil
}

func platformKill(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}
