// Package watchset watches a caller-supplied set of files for content
// changes and reports coalesced change notifications.
//
// A Set owns one OS-level watch per file. Each file is watched through its
// containing directory, so the file itself may be missing when it is
// registered and is picked up once it is written. Only content writes count;
// creation, removal, rename and attribute changes are ignored.
//
// The watched set is replaced wholesale by SetWatchedFiles: every active
// watch is torn down before the new ones are created. Raw events from all
// files share a single coalescing window, and exactly one notification is
// delivered once the window elapses with no further events.
//
// Notifications run on a background goroutine, never on the goroutine that
// called SetWatchedFiles. Consumers that own single-threaded resources must
// marshal the callback themselves.
//
// Usage:
//
//	set := watchset.New(watchset.DefaultOptions())
//	defer set.Stop()
//
//	set.OnChange(func() {
//	    // re-derive whatever depends on the watched files
//	})
//
//	diags := set.SetWatchedFiles([]string{"/srv/app/plugin.so"})
//	for _, d := range diags {
//	    log.Println(d)
//	}
package watchset
