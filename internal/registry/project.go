// Package registry implements the project registry: the domain model a
// server session answers ListProjects requests from. It is richer than
// the wire Project — it additionally tracks whether a project came
// from a live session file and whether its path still resolves on
// disk, neither of which crosses the wire.
package registry

import (
	"os"
	"path/filepath"
	"strings"
)

// Project is the registry's view of a project: a name, a canonical
// path, an optional backing session file, and whether the path still
// exists.
type Project struct {
	Name        string
	Path        string
	SessionFile string // empty when not discovered from a session file
	Exists      bool
}

// decodePathFromSessionName reverses the session-file naming scheme:
// components are joined with "__" and the whole name is rooted at "/".
// "__tmp__test1__test2" decodes to "/tmp/test1/test2".
func decodePathFromSessionName(name string) string {
	parts := strings.Split(name, "__")
	return filepath.Join(append([]string{string(filepath.Separator)}, parts...)...)
}

func decodePathFromSessionFile(sessionFile string) string {
	return decodePathFromSessionName(filepath.Base(sessionFile))
}

// FromSessionFile builds a Project by decoding sessionFile's basename
// into a path, the way a live editor session is discovered. cache may
// be nil, in which case existence is checked with a plain os.Stat.
func FromSessionFile(sessionFile string, cache *ExistsCache) Project {
	return build(decodePathFromSessionFile(sessionFile), sessionFile, cache)
}

// FromPath builds a Project from an explicitly registered path, with no
// backing session file. cache may be nil, in which case existence is
// checked with a plain os.Stat.
func FromPath(path string, cache *ExistsCache) Project {
	return build(path, "", cache)
}

// build canonicalizes path, setting Exists false (rather than failing)
// when that isn't possible — a project whose directory has since moved
// is still reportable, just flagged as gone. Existence is checked
// before resolving symlinks, so a cache hit for "missing" skips the
// extra syscalls EvalSymlinks would otherwise make.
func build(path, sessionFile string, cache *ExistsCache) Project {
	canon := path
	abs, absErr := filepath.Abs(path)
	if absErr == nil {
		canon = abs
	}

	exists := absErr == nil && pathExists(canon, cache)
	if exists {
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			canon = resolved
		} else {
			exists = false
		}
	}

	return Project{
		Name:        filepath.Base(canon),
		Path:        canon,
		SessionFile: sessionFile,
		Exists:      exists,
	}
}

func pathExists(path string, cache *ExistsCache) bool {
	if cache != nil {
		if exists, err := cache.Exists(path); err == nil {
			return exists
		}
	}
	_, err := os.Stat(path)
	return err == nil
}

// Remove deletes the backing session file, if any. It is a no-op for a
// project that was never discovered from one.
func (p Project) Remove() error {
	if p.SessionFile == "" {
		return nil
	}
	return os.Remove(p.SessionFile)
}
