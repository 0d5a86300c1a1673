package watchset

import (
	"os"
	"path/filepath"
	"strings"

	werrors "github.com/Aman-CERP/watchset/internal/errors"
)

// watchedFile is a registered path split into the directory that is watched
// and the file name events are filtered by.
type watchedFile struct {
	Path string
	Dir  string
	Name string
}

// parsePath validates a raw path string without touching the filesystem.
func parsePath(raw string) (watchedFile, *werrors.WatchError) {
	p := strings.TrimSpace(raw)
	switch {
	case p == "":
		return watchedFile{}, werrors.InvalidPath(raw, "empty path")
	case strings.ContainsRune(p, 0):
		return watchedFile{}, werrors.InvalidPath(raw, "contains NUL byte")
	case !filepath.IsAbs(p):
		return watchedFile{}, werrors.InvalidPath(raw, "not an absolute path")
	}

	p = filepath.Clean(p)
	dir, name := filepath.Split(p)
	if name == "" {
		return watchedFile{}, werrors.InvalidPath(raw, "no file name")
	}

	return watchedFile{
		Path: p,
		Dir:  filepath.Clean(dir),
		Name: name,
	}, nil
}

// checkDir verifies that the containing directory exists and that the path
// itself is not a directory. The file may be absent.
func checkDir(f watchedFile) *werrors.WatchError {
	info, err := os.Stat(f.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return werrors.DirectoryMissing(f.Path, f.Dir, err)
		}
		return werrors.WatchCreationFailed(f.Path, err)
	}
	if !info.IsDir() {
		return werrors.DirectoryMissing(f.Path, f.Dir, nil)
	}

	if info, err := os.Stat(f.Path); err == nil && info.IsDir() {
		return werrors.InvalidPath(f.Path, "is a directory")
	}
	return nil
}

// resolve validates and de-duplicates the requested paths, preserving the
// order of first occurrence.
func resolve(paths []string) ([]watchedFile, werrors.Diagnostics) {
	var (
		files []watchedFile
		diags werrors.Diagnostics
	)
	seen := make(map[string]struct{}, len(paths))

	for _, raw := range paths {
		f, werr := parsePath(raw)
		if werr != nil {
			diags = append(diags, werr)
			continue
		}
		if _, ok := seen[f.Path]; ok {
			continue
		}
		seen[f.Path] = struct{}{}

		if werr := checkDir(f); werr != nil {
			diags = append(diags, werr)
			continue
		}
		files = append(files, f)
	}
	return files, diags
}
