package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildManifestAndVerify(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("x,y\n1,2\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("p,q\n3,4\n"), 0644))

	m, err := BuildManifest([]string{a, b, filepath.Join(dir, "missing.csv")})
	require.NoError(t, err)
	require.Len(t, m.Files, 2, "missing files are skipped")
	assert.Len(t, m.Files["a.csv"].BLAKE2b, 64)

	changed, err := m.Verify()
	require.NoError(t, err)
	assert.Empty(t, changed)

	require.NoError(t, os.WriteFile(a, []byte("x,y\n9,9\n"), 0644))
	changed, err = m.Verify()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv"}, changed)
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(input, []byte("data"), 0644))

	m, err := BuildManifest([]string{input})
	require.NoError(t, err)

	out := filepath.Join(dir, "manifest.json")
	require.NoError(t, m.Save(out))

	loaded, err := LoadManifest(out)
	require.NoError(t, err)
	assert.Equal(t, m.Files["in.csv"].BLAKE2b, loaded.Files["in.csv"].BLAKE2b)
}
