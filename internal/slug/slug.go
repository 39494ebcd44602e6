package slug

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Fallback is used when a title has no ASCII letters or digits.
const Fallback = "loop"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// ExistsFunc reports whether a slug is already taken.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Make derives the base slug from a title.
func Make(title string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return Fallback
	}
	return s
}

// Allocate returns a slug for title that exists did not report as taken.
// A candidate equal to exclude is kept without probing, so an update that
// keeps its title keeps its slug. Uniqueness holds only at the moment of
// the probe; the unique index on loops.slug rejects a concurrent duplicate.
func Allocate(ctx context.Context, title string, exists ExistsFunc, exclude string) (string, error) {
	base := Make(title)
	candidate := base
	for n := 1; ; n++ {
		if exclude != "" && candidate == exclude {
			return candidate, nil
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}
