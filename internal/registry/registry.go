package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Registry aggregates projects from two sources: live session files
// discovered in a directory, and an explicit YAML registration list.
// Registration entries win on name collision but inherit the session
// file of a same-named discovered project, so a registered project that
// also happens to have a live session can still be torn down via
// Project.Remove.
type Registry struct {
	sessionDir       string
	registrationFile string
	existsCache      *ExistsCache

	mu       sync.RWMutex
	projects map[string]Project
}

// Option configures a Registry beyond its two source paths.
type Option func(*Registry)

// WithExistsCache makes Reload consult cache for each project's
// existence check instead of always calling os.Stat/EvalSymlinks
// directly.
func WithExistsCache(cache *ExistsCache) Option {
	return func(r *Registry) { r.existsCache = cache }
}

// New constructs a Registry. Neither path needs to exist yet; Reload
// tolerates both being absent.
func New(sessionDir, registrationFile string, opts ...Option) *Registry {
	r := &Registry{
		sessionDir:       sessionDir,
		registrationFile: registrationFile,
		projects:         make(map[string]Project),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reload re-scans both sources and atomically replaces the in-memory
// snapshot used by Snapshot.
func (r *Registry) Reload() error {
	projects := make(map[string]Project)

	entries, err := os.ReadDir(r.sessionDir)
	switch {
	case err == nil:
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			p := FromSessionFile(filepath.Join(r.sessionDir, entry.Name()), r.existsCache)
			projects[p.Name] = p
		}
	case os.IsNotExist(err):
		// No session directory yet: nothing discovered, not an error.
	default:
		return fmt.Errorf("registry: reading session dir %s: %w", r.sessionDir, err)
	}

	regs, err := loadRegistrations(r.registrationFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, reg := range regs {
		p := FromPath(reg.Path, r.existsCache)
		p.Name = reg.Name
		if existing, ok := projects[p.Name]; ok {
			p.SessionFile = existing.SessionFile
		}
		projects[p.Name] = p
	}

	r.mu.Lock()
	r.projects = projects
	r.mu.Unlock()
	return nil
}

// Snapshot returns the current projects, sorted by name for a stable
// ListProjects response.
func (r *Registry) Snapshot() []Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the project registered under name, if any.
func (r *Registry) Lookup(name string) (Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[name]
	return p, ok
}

// Forget removes name from the in-memory snapshot and, if it had a
// backing session file, deletes it.
func (r *Registry) Forget(name string) error {
	r.mu.Lock()
	p, ok := r.projects[name]
	if ok {
		delete(r.projects, name)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("registry: no such project %q", name)
	}
	return p.Remove()
}
