// Package registry maps entity aliases found in audit reports to canonical
// entities. Entries come from a YAML file and from the entity_registry
// table; table rows win on conflict.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/lexgraph/segment"
	"github.com/brunobiangulo/lexgraph/store"
)

// Source supplies registry rows stored outside the YAML file.
type Source interface {
	RegistryEntries(ctx context.Context) ([]store.RegistryEntry, error)
}

// fileEntry is one value of the YAML mapping alias -> entity.
type fileEntry struct {
	Name   string `yaml:"name"`
	Sector string `yaml:"sector"`
}

// Registry is safe for concurrent use. Lookups see either the previous or
// the reloaded alias map, never a mix.
type Registry struct {
	path   string
	source Source

	mu      sync.RWMutex
	entries map[string]segment.Entity
}

// New returns an empty registry reading path and source on Reload. Either
// may be empty or nil.
func New(path string, source Source) *Registry {
	return &Registry{path: path, source: source, entries: map[string]segment.Entity{}}
}

// Load creates a registry and performs the first Reload.
func Load(ctx context.Context, path string, source Source) (*Registry, error) {
	r := New(path, source)
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the YAML file path.
func (r *Registry) Path() string { return r.path }

// Reload rebuilds the alias map from the file and the source. On error the
// previous map is kept.
func (r *Registry) Reload(ctx context.Context) error {
	entries, err := readFile(r.path)
	if err != nil {
		return err
	}
	fromFile := len(entries)

	fromSource := 0
	if r.source != nil {
		rows, err := r.source.RegistryEntries(ctx)
		if err != nil {
			return fmt.Errorf("loading registry table: %w", err)
		}
		for _, row := range rows {
			if add(entries, row.Alias, row.Name, row.Sector) {
				fromSource++
			}
		}
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	slog.Info("registry: loaded", "path", r.path, "file_aliases", fromFile,
		"table_aliases", fromSource, "total", len(entries))
	return nil
}

func readFile(path string) (map[string]segment.Entity, error) {
	entries := map[string]segment.Entity{}
	if path == "" {
		return entries, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("registry: file not found, starting empty", "path", path)
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var raw map[string]fileEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	for alias, e := range raw {
		add(entries, alias, e.Name, e.Sector)
	}
	return entries, nil
}

// add stores one alias; entries without a name are ignored.
func add(m map[string]segment.Entity, alias, name, sector string) bool {
	alias = strings.ToLower(strings.TrimSpace(alias))
	name = strings.TrimSpace(name)
	if alias == "" || name == "" {
		return false
	}
	m[alias] = segment.Entity{Name: name, Sector: strings.TrimSpace(sector)}
	return true
}

// Lookup finds an alias, ignoring case.
func (r *Registry) Lookup(alias string) (segment.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[strings.ToLower(strings.TrimSpace(alias))]
	return e, ok
}

// Resolve maps names to canonical entities. Unknown names are returned
// unchanged with an empty sector, and entities are deduplicated on their
// lowercased canonical name, keeping first occurrence.
func (r *Registry) Resolve(names []string) []segment.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []segment.Entity
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		e, ok := r.entries[strings.ToLower(n)]
		if !ok {
			e = segment.Entity{Name: n}
		}
		key := strings.ToLower(e.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// Len returns the number of aliases.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns every alias sorted by alias.
func (r *Registry) Entries() []store.RegistryEntry {
	r.mu.RLock()
	out := make([]store.RegistryEntry, 0, len(r.entries))
	for alias, e := range r.entries {
		out = append(out, store.RegistryEntry{Alias: alias, Name: e.Name, Sector: e.Sector})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

var _ segment.EntityResolver = (*Registry)(nil)
