package liveclient

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CountFallback persists the unread counter to a small local file so the
// badge can show a plausible value when neither the live channel nor the
// REST count is available.
type CountFallback struct {
	path string
}

// NewCountFallback creates a fallback store at the given path. An empty path
// places the file under the user cache directory.
func NewCountFallback(path string) (*CountFallback, error) {
	if strings.TrimSpace(path) == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(base, "savora", "unread_count")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &CountFallback{path: path}, nil
}

// Load returns the persisted count, or zero when none exists.
func (f *CountFallback) Load() int64 {
	if f == nil {
		return 0
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return 0
	}
	count, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil || count < 0 {
		return 0
	}
	return count
}

// Store persists the count. Failures are ignored; the fallback is advisory.
func (f *CountFallback) Store(count int64) {
	if f == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	_ = os.WriteFile(f.path, []byte(strconv.FormatInt(count, 10)), 0o600)
}
