//go:build !unix && !windows

package portutil

import "context"

func platformFindPIDs(context.Context, int) ([]int, error) {
	return nil, ErrUnsupported
}

func platformKill(int) error {
	return ErrUnsupported
}
