package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Patterns and length constraints are exported for reuse (e.g., JSON Schema).
const (
	PathPattern = `^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`

	PathMin     = 1
	PathMax     = 256
	SegmentsMax = 16
)

var rePath = regexp.MustCompile(PathPattern)

// ErrInvalidPath classifies malformed member paths.
var ErrInvalidPath = errors.New("invalid method path")

// ValidatePath checks a dotted member path such as "navigator.userAgent".
func ValidatePath(s string) error {
	s = strings.TrimSpace(s)
	if len(s) < PathMin || len(s) > PathMax {
		return fmt.Errorf("%w: length must be %d-%d", ErrInvalidPath, PathMin, PathMax)
	}
	if !rePath.MatchString(s) {
		return fmt.Errorf("%w: %q must be dot separated identifiers", ErrInvalidPath, s)
	}
	if n := strings.Count(s, ".") + 1; n > SegmentsMax {
		return fmt.Errorf("%w: %d segments exceeds limit %d", ErrInvalidPath, n, SegmentsMax)
	}
	return nil
}

// SplitPath validates s and returns its segments.
func SplitPath(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if err := ValidatePath(s); err != nil {
		return nil, err
	}
	return strings.Split(s, "."), nil
}
