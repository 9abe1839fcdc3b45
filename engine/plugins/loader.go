// Package plugins discovers node plugins from a manifest directory and
// activates them against the node registry and HTTP surface.
package plugins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/flowx-dev/flowx/common/logger"
	"github.com/flowx-dev/flowx/engine/node"
)

const manifestName = "manifest.json"

// Manifest is a plugin's on-disk descriptor.
type Manifest struct {
	ID           string `json:"id"`
	NodeType     string `json:"node_type"`
	BackendClass string `json:"backend_class"`
	Router       bool   `json:"router"`
}

// Backend is a compiled-in plugin implementation, looked up by the
// manifest's backend_class. Mount is nil when the plugin contributes no
// routes.
type Backend struct {
	Factory node.Factory
	Mount   func(g *echo.Group)
}

// Catalog maps backend_class names to their implementations.
type Catalog map[string]Backend

// RouteMount is a plugin-contributed sub-router, mounted by the server
// under the plugin's id.
type RouteMount struct {
	PluginID string
	Register func(g *echo.Group)
}

// Loader scans a plugins directory for manifests.
type Loader struct {
	dir     string
	catalog Catalog
	log     *logger.Logger
}

// NewLoader creates a loader over the given directory and catalog.
func NewLoader(dir string, catalog Catalog, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Discard()
	}
	return &Loader{dir: dir, catalog: catalog, log: log}
}

// Load walks <dir>/<plugin>/manifest.json, registers each manifest's
// node type, and collects route mounts. A missing plugins directory is
// not an error; unknown backend classes are logged and skipped.
func (l *Loader) Load(reg *node.Registry) ([]RouteMount, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Info("plugins directory not found, skipping discovery", "dir", l.dir)
			return nil, nil
		}
		return nil, fmt.Errorf("read plugins dir: %w", err)
	}

	var mounts []RouteMount
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(l.dir, entry.Name(), manifestName)
		m, err := readManifest(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			l.log.Warn("skipping plugin with bad manifest", "path", path, "error", err)
			continue
		}

		backend, ok := l.catalog[m.BackendClass]
		if !ok {
			l.log.Warn("skipping plugin with unknown backend class",
				"plugin", m.ID, "backend_class", m.BackendClass)
			continue
		}

		if m.NodeType != "" && !reg.Has(m.NodeType) {
			if err := reg.Register(m.NodeType, backend.Factory); err != nil {
				return nil, fmt.Errorf("register plugin %s: %w", m.ID, err)
			}
		}

		if m.Router && backend.Mount != nil {
			mounts = append(mounts, RouteMount{PluginID: m.ID, Register: backend.Mount})
		}

		l.log.Info("plugin loaded", "plugin", m.ID, "node_type", m.NodeType, "router", m.Router)
	}
	return mounts, nil
}

func readManifest(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if m.ID == "" || m.BackendClass == "" {
		return Manifest{}, fmt.Errorf("manifest missing id or backend_class")
	}
	return m, nil
}
