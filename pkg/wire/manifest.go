package wire

import (
	"encoding/json"
	"fmt"
)

// Schema identifies a guest module: where it lives, which version it is, and
// which other modules it links against. Locators are host-addressing paths
// and are carried opaquely.
type Schema struct {
	ID           string   `json:"id"`
	Version      string   `json:"version"`
	Dependencies []string `json:"dependencies"`
}

// RouteExport maps a logical route path to the wasm export that serves it.
// The full set is static per guest module and never mutated at runtime.
type RouteExport struct {
	Path   string `json:"path"`
	Export string `json:"export"`
}

// Manifest is the self-describing document a guest module returns once at
// load time via its module_manifest export.
type Manifest struct {
	Schema Schema        `json:"schema"`
	Routes []RouteExport `json:"routes"`
}

// Route returns the export serving path, reporting whether the route exists.
func (m Manifest) Route(path string) (string, bool) {
	for _, route := range m.Routes {
		if route.Path == path {
			return route.Export, true
		}
	}
	return "", false
}

func DecodeManifest(data []byte) (Manifest, error) {
	if len(data) == 0 {
		return Manifest{}, fmt.Errorf("empty manifest")
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("malformed manifest: %w", err)
	}
	return manifest, nil
}
