// Package version derives the build version from revision metadata
// injected at link time:
//
//	go build -ldflags "-X .../pkg/version.commitCount=$(git rev-list --count HEAD) \
//	                   -X .../pkg/version.commitHash=$(git rev-parse HEAD)"
package version

import (
	"fmt"
	"strconv"
)

const shortHashLen = 7

var (
	commitCount = "0"
	commitHash  = "unknown"
)

// String returns the r<commit-count>.<short-hash> version of this build.
func String() string {
	count, err := strconv.Atoi(commitCount)
	if err != nil {
		count = 0
	}
	return Format(count, commitHash)
}

// Format renders a revision count and hash as r<count>.<short-hash>.
func Format(count int, hash string) string {
	if hash == "" {
		hash = "unknown"
	}
	if len(hash) > shortHashLen {
		hash = hash[:shortHashLen]
	}
	return fmt.Sprintf("r%d.%s", count, hash)
}
