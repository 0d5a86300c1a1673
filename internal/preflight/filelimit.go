package preflight

import (
	"fmt"
	"syscall"
)

// FileDescriptorHeadroom is reserved for descriptors that are not watches
// (stdio, log file, lock file, the change command's pipes).
const FileDescriptorHeadroom = 64

// CheckFileDescriptors checks that the open file limit fits one descriptor
// per watched file plus headroom.
func (c *Checker) CheckFileDescriptors(fileCount int) CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	return fileDescriptorResult(result, uint64(rLimit.Cur), fileCount)
}

func fileDescriptorResult(result CheckResult, limit uint64, fileCount int) CheckResult {
	need := uint64(fileCount) + FileDescriptorHeadroom
	result.Message = fmt.Sprintf("%d (need: %d)", limit, need)
	if limit < need {
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' to increase the limit", need*2)
		return result
	}
	result.Status = StatusPass
	return result
}
