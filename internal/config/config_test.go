package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/provgraph/internal/frontend"
)

func TestLoad_MissingFileYieldsDefault(t *testing.T) {
	t.Parallel()
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, []string{"riverpod", "flutter_riverpod", "hooks_riverpod"}, cfg.Packages)
	assert.Contains(t, cfg.ConsumerBases, "ConsumerWidget")
	assert.Equal(t, "build", cfg.BuildMethod)
	assert.Equal(t, "mermaid", cfg.Format)
	assert.Equal(t, frontend.DefaultExclude, cfg.Exclude)
	assert.Empty(t, cfg.Filter)

	cfg.Exclude[0] = "changed"
	assert.Equal(t, "node_modules", frontend.DefaultExclude[0], "defaults are copied")
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	content := `packages:
  - "@acme/state"
build_method: render
filter: kind == "provider"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(content), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"@acme/state"}, cfg.Packages)
	assert.Equal(t, "render", cfg.BuildMethod)
	assert.Equal(t, `kind == "provider"`, cfg.Filter)
	assert.Equal(t, Default().ConsumerBases, cfg.ConsumerBases)
	assert.Equal(t, Default().Exclude, cfg.Exclude)
	assert.Equal(t, "mermaid", cfg.Format)
}

func TestParse_Full(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte(`packages: [riverpod]
consumer_bases: [ConsumerWidget, Screen]
build_method: view
exclude: [generated]
format: d2
`))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Packages:      []string{"riverpod"},
		ConsumerBases: []string{"ConsumerWidget", "Screen"},
		BuildMethod:   "view",
		Exclude:       []string{"generated"},
		Format:        "d2",
	}, cfg)
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownKey(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("pakages: [riverpod]\n"))
	require.Error(t, err)
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("packages: {"), 0o644))
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshal_RoundTrip(t *testing.T) {
	t.Parallel()
	data, err := Marshal(Default())
	require.NoError(t, err)
	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
