package store

import (
	"context"
	"strings"
)

// RegistryEntry maps one alias to a canonical entity.
type RegistryEntry struct {
	Alias  string `json:"alias" yaml:"alias"`
	Name   string `json:"name" yaml:"name"`
	Sector string `json:"sector,omitempty" yaml:"sector,omitempty"`
}

// UpsertRegistryEntry stores an alias. Aliases are matched case-insensitively
// and stored lowercased.
func (s *Store) UpsertRegistryEntry(ctx context.Context, e RegistryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_registry (alias, name, sector) VALUES (?, ?, ?)
		ON CONFLICT(alias) DO UPDATE SET name = excluded.name, sector = excluded.sector
	`, strings.ToLower(strings.TrimSpace(e.Alias)), e.Name, nullString(e.Sector))
	return err
}

// DeleteRegistryEntry removes an alias. Deleting a missing alias is not an
// error.
func (s *Store) DeleteRegistryEntry(ctx context.Context, alias string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM entity_registry WHERE alias = ?", strings.ToLower(strings.TrimSpace(alias)))
	return err
}

// RegistryEntries returns every stored alias ordered by alias.
func (s *Store) RegistryEntries(ctx context.Context) ([]RegistryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT alias, name, COALESCE(sector, '') FROM entity_registry ORDER BY alias")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []RegistryEntry
	for rows.Next() {
		var e RegistryEntry
		if err := rows.Scan(&e.Alias, &e.Name, &e.Sector); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
