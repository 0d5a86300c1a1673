// Package preflight checks the system limits that decide how many files
// can be watched natively.
//
// Every watched file holds its own inotify instance and one open file
// descriptor, so large inventories run into these limits:
//   - RLIMIT_NOFILE (open file descriptors)
//   - fs.inotify.max_user_instances
//   - fs.inotify.max_user_watches
//
// Use the Checker type to run all checks for a given inventory size:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, len(paths))
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
