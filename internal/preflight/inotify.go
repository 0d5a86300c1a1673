package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CheckInotifyInstances checks fs.inotify.max_user_instances against one
// instance per watched file. Files over the limit need --poll-fallback, so
// the check only warns.
func (c *Checker) CheckInotifyInstances(fileCount int) CheckResult {
	return c.checkSysctl("inotify_instances", "max_user_instances", fileCount)
}

// CheckInotifyWatches checks fs.inotify.max_user_watches against one watch
// per watched file.
func (c *Checker) CheckInotifyWatches(fileCount int) CheckResult {
	return c.checkSysctl("inotify_watches", "max_user_watches", fileCount)
}

func (c *Checker) checkSysctl(name, key string, fileCount int) CheckResult {
	result := CheckResult{Name: name}

	limit, err := c.readInotifyLimit(key)
	if os.IsNotExist(err) {
		result.Status = StatusPass
		result.Message = "not applicable on this platform"
		return result
	}
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to read fs.inotify.%s: %v", key, err)
		return result
	}

	result.Message = fmt.Sprintf("%d (need: %d)", limit, fileCount)
	if limit < fileCount {
		result.Status = StatusWarn
		result.Details = fmt.Sprintf(
			"Run 'sysctl fs.inotify.%s=%d' or watch with --poll-fallback", key, fileCount*2)
		return result
	}
	result.Status = StatusPass
	return result
}

// readInotifyLimit reads a value from <procRoot>/sys/fs/inotify/.
func (c *Checker) readInotifyLimit(key string) (int, error) {
	data, err := os.ReadFile(filepath.Join(c.procRoot, "sys", "fs", "inotify", key))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
