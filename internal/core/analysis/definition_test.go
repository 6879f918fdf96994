package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeDef(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileSystemRepository_MissingDirIsAllDefaults(t *testing.T) {
	repo, err := NewFileSystemRepository(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)

	def, err := repo.Get(TopSpenders)
	require.NoError(t, err)
	require.Equal(t, Default(TopSpenders), def)
	require.Len(t, repo.All(), len(Names))
}

func TestFileSystemRepository_Override(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "top_spenders.yaml", `
name: top_spenders
enabled: true
top_k: 5
`)

	repo, err := NewFileSystemRepository(dir)
	require.NoError(t, err)

	def, err := repo.Get(TopSpenders)
	require.NoError(t, err)
	require.Equal(t, 5, def.TopK)
	require.Len(t, def.Fingerprint, 64)
	require.NotEqual(t, "default", def.Fingerprint)

	// Analyses without override keep their defaults.
	other, err := repo.Get(BoughtTogether)
	require.NoError(t, err)
	require.Equal(t, "default", other.Fingerprint)
}

func TestFileSystemRepository_RejectsUnknownName(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "bad.yaml", `
name: median_spend
`)

	_, err := NewFileSystemRepository(dir)
	require.ErrorContains(t, err, `unknown analysis "median_spend"`)
}

func TestFileSystemRepository_RejectsInvalidParams(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "bad.yaml", `
name: bought_together
max_pairs: 0
`)

	_, err := NewFileSystemRepository(dir)
	require.ErrorContains(t, err, "max_pairs must be > 0")
}

func TestFileSystemRepository_RejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "a.yaml", "name: top_spenders\n")
	writeDef(t, dir, "b.yaml", "name: top_spenders\n")

	_, err := NewFileSystemRepository(dir)
	require.ErrorContains(t, err, "duplicate analysis definition")
}

func TestGet_UnknownAnalysis(t *testing.T) {
	repo, err := NewFileSystemRepository(t.TempDir())
	require.NoError(t, err)
	_, err = repo.Get("median_spend")
	require.ErrorContains(t, err, "unknown analysis")
}

func TestDefinition_Validate(t *testing.T) {
	def := Default(EngagementSegments)
	require.NoError(t, def.Validate())

	def.SegmentHigh = def.SegmentLow
	require.ErrorContains(t, def.Validate(), "segment thresholds")
}
