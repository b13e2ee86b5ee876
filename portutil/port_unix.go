//go:build unix

package portutil

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"golang.org/x/sys/unix"
)

func platformFindPIDs(ctx context.Context, port int) ([]int, error) {
	cmd := exec.CommandContext(ctx, "lsof", "-nP", "-t", "-iTCP:"+strconv.Itoa(port), "-sTCP:LISTEN")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		// lsof exits 1 when nothing matches.
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: lsof not found", ErrUnsupported)
		}
		return nil, fmt.Errorf("lsof failed: %w", err)
	}
	return parseLsof(string(out)), nil
}

func platformKill(pid int) error {
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
