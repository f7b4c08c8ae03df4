package pilot

import "github.com/hazyhaar/proseai/pilot/internal/config"

// FileConfig is the pilot.yaml document.
type FileConfig = config.Config

// Rewrite routes.
const (
	RouteLocal = config.RouteLocal
	RouteHTTP  = config.RouteHTTP
)

// LoadConfig reads pilot.yaml. An empty path returns the defaults.
func LoadConfig(path string) (*FileConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}
