package watchset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/Aman-CERP/watchset/internal/errors"
)

const testWindow = 50 * time.Millisecond

// recorder collects notifications delivered to a set.
type recorder struct {
	mu    sync.Mutex
	got   []ChangeNotification
	count atomic.Int32
	ch    chan ChangeNotification
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan ChangeNotification, 16)}
}

func (r *recorder) handle(n ChangeNotification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
	r.count.Add(1)
	r.ch <- n
}

func (r *recorder) wait(t *testing.T) ChangeNotification {
	t.Helper()
	select {
	case n := <-r.ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change notification")
		return ChangeNotification{}
	}
}

// quiet asserts no further notification arrives within several windows.
func (r *recorder) quiet(t *testing.T) {
	t.Helper()
	select {
	case n := <-r.ch:
		t.Fatalf("unexpected notification for %v", n.Paths)
	case <-time.After(6 * testWindow):
	}
}

func newTestSet(t *testing.T) (*Set, *recorder) {
	t.Helper()
	s := New(Options{DebounceWindow: testWindow})
	t.Cleanup(s.Stop)
	r := newRecorder()
	s.OnNotify(r.handle)
	return s, r
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSetWatchedFiles_ActiveSetMatchesValidSubset(t *testing.T) {
	// Given: a directory with one existing and one future file
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.bin")
	future := filepath.Join(dir, "b.bin")
	writeFile(t, existing, "a")
	missing := filepath.Join(dir, "nope", "c.bin")

	s, _ := newTestSet(t)

	// When: watching a mix of valid, duplicate, missing-dir and invalid paths
	diags := s.SetWatchedFiles([]string{existing, future, existing + "/", missing, "relative/d.bin", ""})

	// Then: exactly the de-duplicated directory-valid subset is active
	assert.Equal(t, []string{existing, future}, s.WatchedFiles())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, Watching, s.State())

	require.Len(t, diags, 3)
	assert.Len(t, diags.ByCode(werrors.ErrCodeDirectoryMissing), 1)
	assert.Len(t, diags.ByCode(werrors.ErrCodeInvalidPath), 2)
	assert.Equal(t, missing, diags.ByCode(werrors.ErrCodeDirectoryMissing)[0].Path)
}

func TestSetWatchedFiles_ReplaceLeavesOnlyNewSet(t *testing.T) {
	// Given: a set watching two files
	dir := t.TempDir()
	f1 := filepath.Join(dir, "f1.bin")
	f2 := filepath.Join(dir, "f2.bin")
	f3 := filepath.Join(dir, "f3.bin")

	s, r := newTestSet(t)
	require.Empty(t, s.SetWatchedFiles([]string{f1, f2}))
	gen1 := s.Generation()

	// When: replacing with an overlapping set
	require.Empty(t, s.SetWatchedFiles([]string{f2, f3}))

	// Then: only the second set is active and the generation moved on
	assert.Equal(t, []string{f2, f3}, s.WatchedFiles())
	assert.Greater(t, s.Generation(), gen1)

	// And: writing the dropped file does not notify
	writeFile(t, f1, "x")
	r.quiet(t)

	// And: writing a kept file does
	writeFile(t, f2, "x")
	n := r.wait(t)
	assert.Equal(t, []string{f2}, n.Paths)
}

func TestStop_IsIdempotentAndSilences(t *testing.T) {
	// Given: a set watching one file
	dir := t.TempDir()
	f := filepath.Join(dir, "f.bin")
	writeFile(t, f, "0")

	s, r := newTestSet(t)
	require.Empty(t, s.SetWatchedFiles([]string{f}))

	// When: stopping twice
	s.Stop()
	s.Stop()

	// Then: the set is idle with no handles
	assert.Equal(t, Idle, s.State())
	assert.Zero(t, s.Len())

	// And: later writes never notify
	writeFile(t, f, "1")
	r.quiet(t)
}

func TestStop_OnFreshSet(t *testing.T) {
	s := New(DefaultOptions())

	assert.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})
	assert.Equal(t, Idle, s.State())
}

func TestBurstOnOneFile_SingleNotification(t *testing.T) {
	// Given: a watched file
	dir := t.TempDir()
	f := filepath.Join(dir, "f.bin")
	writeFile(t, f, "0")

	s, r := newTestSet(t)
	require.Empty(t, s.SetWatchedFiles([]string{f}))

	// When: the file is written repeatedly within the window
	for i := 0; i < 5; i++ {
		writeFile(t, f, "burst")
		time.Sleep(5 * time.Millisecond)
	}

	// Then: exactly one notification is delivered
	n := r.wait(t)
	assert.Equal(t, []string{f}, n.Paths)
	r.quiet(t)
	assert.EqualValues(t, 1, r.count.Load())
	assert.GreaterOrEqual(t, s.Stats().RawEvents, uint64(5))
	assert.EqualValues(t, 1, s.Stats().Notifications)
}

func TestWritesOnTwoFiles_CoalesceAcrossFiles(t *testing.T) {
	// Given: two watched files
	dir := t.TempDir()
	f1 := filepath.Join(dir, "f1.bin")
	f2 := filepath.Join(dir, "f2.bin")

	s, r := newTestSet(t)
	require.Empty(t, s.SetWatchedFiles([]string{f1, f2}))

	// When: both are written inside one window
	writeFile(t, f1, "1")
	writeFile(t, f2, "2")

	// Then: one notification carries both paths
	n := r.wait(t)
	assert.Equal(t, []string{f1, f2}, n.Paths)
	assert.Equal(t, s.Generation(), n.Generation)
	r.quiet(t)
}

func TestMissingFileInExistingDir_WatchedUntilWritten(t *testing.T) {
	// Given: a directory without the file
	dir := t.TempDir()
	f := filepath.Join(dir, "f1.bin")

	s, r := newTestSet(t)

	// When: watching the absent file
	diags := s.SetWatchedFiles([]string{f})

	// Then: one handle, no diagnostics
	assert.Empty(t, diags)
	assert.Equal(t, 1, s.Len())

	// And: writing it later notifies once
	writeFile(t, f, "content")
	n := r.wait(t)
	assert.Equal(t, []string{f}, n.Paths)
	r.quiet(t)
}

func TestMissingDirectory_DiagnosticAndNoHandle(t *testing.T) {
	// Given: a path in a directory that does not exist
	f := filepath.Join(t.TempDir(), "missing-dir", "f.bin")
	s, _ := newTestSet(t)

	// When: watching it
	diags := s.SetWatchedFiles([]string{f})

	// Then: the call succeeds with one DirectoryMissing diagnostic
	require.Len(t, diags, 1)
	assert.Equal(t, werrors.ErrCodeDirectoryMissing, diags[0].Code)
	assert.Zero(t, s.Len())
	assert.Equal(t, Watching, s.State())

	// And: the diagnostic is also published out of band
	select {
	case err := <-s.Errors():
		assert.ErrorIs(t, err, werrors.ErrDirectoryMissing)
	case <-time.After(time.Second):
		t.Fatal("diagnostic not published")
	}
}

func TestDuplicatePath_SingleHandle(t *testing.T) {
	f := filepath.Join(t.TempDir(), "f1.bin")
	s, _ := newTestSet(t)

	diags := s.SetWatchedFiles([]string{f, f})

	assert.Empty(t, diags)
	assert.Equal(t, []string{f}, s.WatchedFiles())
}

func TestSetThenClear_NoNotification(t *testing.T) {
	// Given: a watched file that is immediately cleared
	dir := t.TempDir()
	f := filepath.Join(dir, "f1.bin")
	writeFile(t, f, "0")

	s, r := newTestSet(t)
	require.Empty(t, s.SetWatchedFiles([]string{f}))
	assert.Nil(t, s.SetWatchedFiles([]string{}))
	assert.Equal(t, Idle, s.State())

	// When: the file is modified right after
	writeFile(t, f, "1")

	// Then: nothing is delivered
	r.quiet(t)
	assert.Zero(t, r.count.Load())
}

func TestClear_KeepsSubscriber(t *testing.T) {
	// Given: a set that was cleared
	dir := t.TempDir()
	f := filepath.Join(dir, "f.bin")
	s, r := newTestSet(t)
	s.SetWatchedFiles([]string{f})
	s.Clear()

	// When: watching again
	require.Empty(t, s.SetWatchedFiles([]string{f}))
	writeFile(t, f, "x")

	// Then: the original subscriber still receives notifications
	r.wait(t)
}

func TestIgnoresNonWriteOperations(t *testing.T) {
	// Given: a watched file
	dir := t.TempDir()
	f := filepath.Join(dir, "f.bin")
	s, r := newTestSet(t)
	require.Empty(t, s.SetWatchedFiles([]string{f}))

	// When: the file is created empty, chmodded and removed
	fh, err := os.Create(f)
	require.NoError(t, err)
	require.NoError(t, fh.Close())
	require.NoError(t, os.Chmod(f, 0o600))
	require.NoError(t, os.Remove(f))

	// And: a sibling file is written
	writeFile(t, filepath.Join(dir, "other.bin"), "x")

	// Then: nothing is delivered
	r.quiet(t)
}

func TestStaleGenerationEvent_Discarded(t *testing.T) {
	// Given: a set that has been reconfigured once
	dir := t.TempDir()
	f := filepath.Join(dir, "f.bin")
	s, r := newTestSet(t)
	s.SetWatchedFiles([]string{f})
	old := s.Generation()
	s.SetWatchedFiles([]string{f})

	// When: a late event from the old generation arrives
	s.rawEvent(old, f)

	// Then: it is counted as stale and never delivered
	assert.EqualValues(t, 1, s.Stats().StaleEvents)
	assert.False(t, s.Pending())
	r.quiet(t)
}

func TestOnChange_ReplacesSubscriber(t *testing.T) {
	// Given: two subscribers registered in turn
	dir := t.TempDir()
	f := filepath.Join(dir, "f.bin")
	s := New(Options{DebounceWindow: testWindow})
	t.Cleanup(s.Stop)

	var first, second atomic.Int32
	done := make(chan struct{}, 1)
	s.OnChange(func() { first.Add(1) })
	s.OnChange(func() {
		second.Add(1)
		done <- struct{}{}
	})
	require.Empty(t, s.SetWatchedFiles([]string{f}))

	// When: the file changes
	writeFile(t, f, "x")

	// Then: only the latest subscriber runs
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
	assert.Zero(t, first.Load())
	assert.EqualValues(t, 1, second.Load())
}

func TestReconfigureFromCallback_NoDeadlock(t *testing.T) {
	// Given: a subscriber that re-watches and then stops from the callback
	dir := t.TempDir()
	f1 := filepath.Join(dir, "f1.bin")
	f2 := filepath.Join(dir, "f2.bin")
	s := New(Options{DebounceWindow: testWindow})
	t.Cleanup(s.Stop)

	done := make(chan struct{})
	s.OnChange(func() {
		s.SetWatchedFiles([]string{f2})
		s.Stop()
		close(done)
	})
	require.Empty(t, s.SetWatchedFiles([]string{f1}))

	// When: the watched file changes
	writeFile(t, f1, "x")

	// Then: the callback completes
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback deadlocked")
	}
	assert.Equal(t, Idle, s.State())
	assert.Zero(t, s.Len())
}

func TestConcurrentReconfiguration(t *testing.T) {
	// Given: several files and a subscriber
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"a", "b", "c", "d"} {
		files = append(files, filepath.Join(dir, name))
	}
	s, _ := newTestSet(t)

	// When: goroutines reconfigure, stop and write concurrently
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				switch (i + j) % 3 {
				case 0:
					s.SetWatchedFiles(files[:1+(i+j)%len(files)])
				case 1:
					_ = os.WriteFile(files[j%len(files)], []byte("x"), 0o644)
				default:
					s.Stop()
				}
			}
		}(i)
	}
	wg.Wait()

	// Then: a final configuration is exact
	s.SetWatchedFiles(files[:2])
	assert.Equal(t, files[:2], s.WatchedFiles())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", Idle.String())
	assert.Equal(t, "WATCHING", Watching.String())
	assert.Equal(t, "UNKNOWN", State(7).String())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()

	assert.Equal(t, 200*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, time.Second, opts.PollInterval)
	assert.Equal(t, 64, opts.ErrorBufferSize)
	assert.NotNil(t, opts.Logger)
	assert.False(t, opts.PollFallback)

	custom := Options{DebounceWindow: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, custom.DebounceWindow)
}

func TestBackends_ReportsFsnotify(t *testing.T) {
	f := filepath.Join(t.TempDir(), "f.bin")
	s, _ := newTestSet(t)
	s.SetWatchedFiles([]string{f})

	assert.Equal(t, map[string]string{f: "fsnotify"}, s.Backends())
}

// refuseNative makes native watch creation fail for files whose name starts
// with "busy", as when the inotify instance limit is reached.
func refuseNative(s *Set) {
	s.openNative = func(f watchedFile, gen uint64, sk sink) (handle, error) {
		if strings.HasPrefix(f.Name, "busy") {
			return nil, errors.New("too many open files")
		}
		return openFsnotify(f, gen, sk)
	}
}

func TestWatchCreationFailed_SkipsOnlyRefusedPaths(t *testing.T) {
	// Given: a set whose native watches fail for some files
	dir := t.TempDir()
	ok1 := filepath.Join(dir, "a.bin")
	busy1 := filepath.Join(dir, "busy1.bin")
	ok2 := filepath.Join(dir, "b.bin")
	busy2 := filepath.Join(dir, "busy2.bin")
	requested := []string{ok1, busy1, ok2, busy2}

	s, r := newTestSet(t)
	refuseNative(s)

	// When: watching all of them
	diags := s.SetWatchedFiles(requested)

	// Then: every path is either active or has exactly one creation failure
	failed := diags.ByCode(werrors.ErrCodeWatchCreationFailed)
	require.Len(t, diags, 2)
	require.Len(t, failed, 2)
	active := s.WatchedFiles()
	assert.Equal(t, []string{ok1, ok2}, active)
	for _, p := range requested {
		n := 0
		for _, d := range failed {
			if d.Path == p {
				n++
			}
		}
		if p == ok1 || p == ok2 {
			assert.Zero(t, n, p)
		} else {
			assert.Equal(t, 1, n, p)
		}
	}

	// And: the diagnostics arrive on Errors
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case err := <-s.Errors():
			assert.Equal(t, werrors.ErrCodeWatchCreationFailed, werrors.GetCode(err))
			var we *werrors.WatchError
			require.ErrorAs(t, err, &we)
			seen[we.Path] = true
		case <-time.After(time.Second):
			t.Fatal("diagnostic not published on Errors")
		}
	}
	assert.Equal(t, map[string]bool{busy1: true, busy2: true}, seen)

	// And: the surviving watches still notify
	writeFile(t, ok2, "x")
	assert.Equal(t, []string{ok2}, r.wait(t).Paths)
}

func TestPollFallback_WatchesRefusedPaths(t *testing.T) {
	// Given: a polling-enabled set whose native watches fail for some files
	dir := t.TempDir()
	native := filepath.Join(dir, "a.bin")
	polled := filepath.Join(dir, "busy.bin")

	s := New(Options{
		DebounceWindow: testWindow,
		PollFallback:   true,
		PollInterval:   20 * time.Millisecond,
	})
	t.Cleanup(s.Stop)
	refuseNative(s)
	r := newRecorder()
	s.OnNotify(r.handle)

	// When: watching both
	diags := s.SetWatchedFiles([]string{native, polled})

	// Then: both are active, the refused one through polling
	assert.Empty(t, diags)
	assert.Equal(t, map[string]string{native: "fsnotify", polled: "polling"}, s.Backends())
	select {
	case err := <-s.Errors():
		t.Fatalf("unexpected diagnostic: %v", err)
	default:
	}

	// And: writing the polled file notifies
	writeFile(t, polled, "content")
	assert.Equal(t, []string{polled}, r.wait(t).Paths)
}

func TestStop_DuringDelivery_DoesNotWait(t *testing.T) {
	// Given: a subscriber blocked inside a delivery
	dir := t.TempDir()
	f := filepath.Join(dir, "f.bin")
	s := New(Options{DebounceWindow: testWindow})
	t.Cleanup(s.Stop)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	s.OnChange(func() {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	})
	require.Empty(t, s.SetWatchedFiles([]string{f}))
	writeFile(t, f, "x")

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery started")
	}

	// When: stopping while the delivery runs
	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	// Then: Stop returns without waiting for the subscriber
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop waited for the running delivery")
	}
	close(release)

	// And: no further delivery starts
	writeFile(t, f, "y")
	time.Sleep(6 * testWindow)
	assert.EqualValues(t, 1, calls.Load())
}
