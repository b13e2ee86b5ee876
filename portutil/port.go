// Package portutil frees the bridge's fixed port from a stale listener left
// behind by an earlier host process.
package portutil

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultPollInterval is how often Free re-checks the port after killing.
const DefaultPollInterval = 200 * time.Millisecond

// ErrUnsupported is returned where no listener lookup is available.
var ErrUnsupported = errors.New("portutil: listener lookup not supported on this platform")

// Platform hooks, replaced in tests.
var (
	findPIDs = platformFindPIDs
	killPID  = platformKill
)

// FindPIDs returns the ids of processes listening on port, excluding this one.
func FindPIDs(ctx context.Context, port int) ([]int, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	pids, err := findPIDs(ctx, port)
	if err != nil {
		return nil, err
	}
	self := os.Getpid()
	out := pids[:0]
	for _, pid := range pids {
		if pid != self {
			out = append(out, pid)
		}
	}
	return out, nil
}

// Free kills every other process listening on port and waits until the port
// is released or ctx is done. It is a no-op when nothing holds the port.
func Free(ctx context.Context, port int, poll time.Duration) error {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	log := slog.Default().With("component", "portutil", "port", port)

	pids, err := FindPIDs(ctx, port)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return nil
	}
	for _, pid := range pids {
		log.Warn("killing stale listener", "pid", pid)
		if err := killPID(pid); err != nil {
			return fmt.Errorf("failed to kill pid %d on port %d: %w", pid, port, err)
		}
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("port %d still in use: %w", port, ctx.Err())
		case <-ticker.C:
		}
		pids, err := FindPIDs(ctx, port)
		if err != nil {
			return err
		}
		if len(pids) == 0 {
			log.Info("port released")
			return nil
		}
	}
}

// parseLsof reads the pid-per-line output of `lsof -t`.
func parseLsof(out string) []int {
	seen := make(map[int]bool)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		pid, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
		if err != nil || pid <= 0 {
			continue
		}
		seen[pid] = true
	}
	return sortedKeys(seen)
}

// parseNetstat extracts listening pids for port from `netstat -ano` output.
func parseNetstat(out string, port int) []int {
	suffix := ":" + strconv.Itoa(port)
	seen := make(map[int]bool)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 || !strings.EqualFold(fields[0], "TCP") {
			continue
		}
		if !strings.HasSuffix(fields[1], suffix) || !strings.EqualFold(fields[3], "LISTENING") {
			continue
		}
		pid, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil || pid <= 0 {
			continue
		}
		seen[pid] = true
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
