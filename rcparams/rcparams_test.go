package rcparams

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	p := Defaults()

	v, ok := p.Get("figure.figsize")
	require.True(t, ok)
	assert.Equal(t, "6.4, 4.8", v)

	v, ok = p.Get("axes.grid")
	require.True(t, ok)
	assert.Equal(t, "True", v)

	keys := p.Keys()
	assert.Contains(t, keys, "figure.dpi")
	assert.IsIncreasing(t, keys)
}

func TestSetOverwrites(t *testing.T) {
	p := Defaults()
	p.Set("figure.dpi", "300")
	p.Set("custom.key", "value")

	v, ok := p.Get("figure.dpi")
	require.True(t, ok)
	assert.Equal(t, "300", v)

	v, ok = p.Get("custom.key")
	require.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestSnapshotIsACopy(t *testing.T) {
	p := Defaults()
	snap := p.Snapshot()
	snap["figure.dpi"] = "tampered"

	v, ok := p.Get("figure.dpi")
	require.True(t, ok)
	assert.Equal(t, "96", v)
}

func TestLoadFileOverlays(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rc.toml")
	contents := `
[figure]
dpi = 120
figsize = [8.0, 6.0]

[legend]
border = true

[lines]
linestyle = "dashed"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	p := Defaults()
	require.NoError(t, p.LoadFile(path))

	cases := map[string]string{
		"figure.dpi":      "120",
		"figure.figsize":  "8, 6",
		"legend.border":   "True",
		"lines.linestyle": "dashed",
		// untouched default survives the overlay
		"font.family": "sans-serif",
	}
	for key, want := range cases {
		v, ok := p.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, want, v, key)
	}
}

func TestLoadFileErrors(t *testing.T) {
	p := Defaults()
	require.Error(t, p.LoadFile(filepath.Join(t.TempDir(), "missing.toml")))

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid"), 0644))
	require.Error(t, p.LoadFile(path))
}

func TestLocate(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	path := filepath.Join(root, OverlayFileName)
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	assert.Equal(t, path, Locate(nested))
	assert.Equal(t, "", Locate(os.TempDir()))
}
