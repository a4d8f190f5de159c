package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/lexgraph/segment"
	"github.com/brunobiangulo/lexgraph/store"
)

const sampleYAML = `
MSSS:
  name: Ministère de la Santé et des Services sociaux
  sector: santé
"Ville de Laval":
  name: Ville de Laval
  sector: municipal
laval:
  name: Ville de Laval
  sector: municipal
incomplet:
  sector: rien
`

type fakeSource struct {
	rows []store.RegistryEntry
	err  error
}

func (f *fakeSource) RegistryEntries(ctx context.Context) ([]store.RegistryEntry, error) {
	return f.rows, f.err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	writeFile(t, path, sampleYAML)

	r, err := Load(context.Background(), path, nil)
	require.NoError(t, err)

	// Entries without a name are dropped.
	assert.Equal(t, 3, r.Len())

	e, ok := r.Lookup("msss")
	require.True(t, ok)
	assert.Equal(t, "Ministère de la Santé et des Services sociaux", e.Name)
	assert.Equal(t, "santé", e.Sector)

	_, ok = r.Lookup("  VILLE DE LAVAL ")
	assert.True(t, ok)
	_, ok = r.Lookup("incomplet")
	assert.False(t, ok)
}

func TestResolveDedupsOnCanonicalName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	writeFile(t, path, sampleYAML)
	r, err := Load(context.Background(), path, nil)
	require.NoError(t, err)

	got := r.Resolve([]string{"Laval", "Ville de Laval", "Société Inconnue", "", "MSSS"})
	want := []segment.Entity{
		{Name: "Ville de Laval", Sector: "municipal"},
		{Name: "Société Inconnue"},
		{Name: "Ministère de la Santé et des Services sociaux", Sector: "santé"},
	}
	assert.Equal(t, want, got)
}

func TestSourceOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	writeFile(t, path, sampleYAML)
	src := &fakeSource{rows: []store.RegistryEntry{
		{Alias: "MSSS", Name: "MSSS (table)", Sector: "santé"},
		{Alias: "Hydro", Name: "Hydro-Québec", Sector: "énergie"},
	}}

	r, err := Load(context.Background(), path, src)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())

	e, _ := r.Lookup("msss")
	assert.Equal(t, "MSSS (table)", e.Name)
	e, ok := r.Lookup("hydro")
	assert.True(t, ok)
	assert.Equal(t, "Hydro-Québec", e.Name)

	entries := r.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, "hydro", entries[0].Alias)
}

func TestMissingFileStartsEmpty(t *testing.T) {
	r, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)
	assert.Zero(t, r.Len())

	r, err = Load(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Zero(t, r.Len())
}

func TestReloadErrorKeepsPreviousEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	writeFile(t, path, sampleYAML)
	r, err := Load(context.Background(), path, nil)
	require.NoError(t, err)

	writeFile(t, path, "msss: [broken")
	if err := r.Reload(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
	assert.Equal(t, 3, r.Len())

	writeFile(t, path, sampleYAML)
	src := &fakeSource{err: errors.New("db closed")}
	r2 := New(path, src)
	assert.Error(t, r2.Reload(context.Background()))
	assert.Zero(t, r2.Len())
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	writeFile(t, path, sampleYAML)
	r, err := Load(context.Background(), path, nil)
	require.NoError(t, err)

	writeFile(t, path, "stm:\n  name: Société de transport de Montréal\n")
	require.NoError(t, r.Reload(context.Background()))
	assert.Equal(t, 1, r.Len())
	_, ok := r.Lookup("msss")
	assert.False(t, ok)
}

func TestConcurrentLookupDuringReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	writeFile(t, path, sampleYAML)
	r, err := Load(context.Background(), path, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.Lookup("msss")
				r.Resolve([]string{"laval", "MSSS"})
			}
		}()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, r.Reload(context.Background()))
	}
	wg.Wait()
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	writeFile(t, path, sampleYAML)
	r, err := Load(context.Background(), path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, sampleYAML+"stm:\n  name: Société de transport de Montréal\n")

	assert.Eventually(t, func() bool {
		_, ok := r.Lookup("stm")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchWithoutPath(t *testing.T) {
	assert.Error(t, New("", nil).Watch(context.Background()))
}
