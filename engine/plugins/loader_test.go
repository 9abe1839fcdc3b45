package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowx-dev/flowx/common/logger"
	"github.com/flowx-dev/flowx/engine/node"
)

type pluginStub struct{}

func (pluginStub) Validate(data map[string]any) node.ValidationResult {
	return node.ValidationResult{Valid: true}
}
func (pluginStub) Execute(ctx context.Context, rc *node.RuntimeContext, payload map[string]any) (node.Result, error) {
	return node.Result{"status": node.StatusSuccess}, nil
}
func (pluginStub) ExecutionMode() node.ExecutionMode { return node.ExecutionMode{} }
func (pluginStub) WaitStrategy() node.WaitStrategy   { return node.WaitAll }

func stubFactory(data map[string]any) node.Node { return pluginStub{} }

func writeManifest(t *testing.T, dir, plugin, body string) {
	t.Helper()
	pluginDir := filepath.Join(dir, plugin)
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "manifest.json"), []byte(body), 0o644))
}

func TestLoadRegistersNodeTypes(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "commandgen",
		`{"id": "commandgen", "node_type": "commandNode", "backend_class": "CommandNode", "router": true}`)

	mounted := false
	catalog := Catalog{
		"CommandNode": {
			Factory: stubFactory,
			Mount:   func(g *echo.Group) { mounted = true },
		},
	}

	reg := node.NewRegistry()
	loader := NewLoader(dir, catalog, logger.Discard())
	mounts, err := loader.Load(reg)
	require.NoError(t, err)

	assert.True(t, reg.Has("commandNode"))
	require.Len(t, mounts, 1)
	assert.Equal(t, "commandgen", mounts[0].PluginID)

	mounts[0].Register(echo.New().Group(""))
	assert.True(t, mounted)
}

func TestLoadSkipsUnknownBackendClass(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "mystery",
		`{"id": "mystery", "node_type": "mysteryNode", "backend_class": "NoSuchClass"}`)

	reg := node.NewRegistry()
	loader := NewLoader(dir, Catalog{}, logger.Discard())
	mounts, err := loader.Load(reg)

	require.NoError(t, err)
	assert.Empty(t, mounts)
	assert.False(t, reg.Has("mysteryNode"))
}

func TestLoadSkipsBadManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "broken", `{not json`)
	writeManifest(t, dir, "incomplete", `{"node_type": "x"}`)

	loader := NewLoader(dir, Catalog{}, logger.Discard())
	mounts, err := loader.Load(node.NewRegistry())

	require.NoError(t, err)
	assert.Empty(t, mounts)
}

func TestLoadMissingDirIsNotAnError(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope"), Catalog{}, logger.Discard())
	mounts, err := loader.Load(node.NewRegistry())

	require.NoError(t, err)
	assert.Empty(t, mounts)
}

func TestLoadDoesNotReplaceExistingRegistration(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "commandgen",
		`{"id": "commandgen", "node_type": "commandNode", "backend_class": "CommandNode"}`)

	reg := node.NewRegistry()
	require.NoError(t, reg.Register("commandNode", stubFactory))

	loader := NewLoader(dir, Catalog{"CommandNode": {Factory: stubFactory}}, logger.Discard())
	_, err := loader.Load(reg)

	require.NoError(t, err, "builtin registration wins silently")
}
