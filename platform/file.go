package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk profiles document.
//
//	profiles:
//	  - id: slack
//	    name: Slack
//	    url: https://app.slack.com/
//	    primary: {selector: 'div.ql-editor[contenteditable="true"]'}
//	    origins: [app.slack.com]
type File struct {
	// Builtin controls whether the built-in profiles are included. Default true.
	Builtin  *bool     `yaml:"builtin,omitempty"`
	Profiles []Profile `yaml:"profiles"`
}

// LoadFile reads a profiles file and returns the registry it describes.
// Profiles in the file replace built-ins with the same ID and are appended
// otherwise.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("platform: read profiles: %w", err)
	}
	return Parse(data)
}

// Parse decodes a profiles document.
func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("platform: parse profiles: %w", err)
	}

	var base []Profile
	if f.Builtin == nil || *f.Builtin {
		base = Builtin()
	}
	return NewRegistry(Merge(base, f.Profiles)...)
}

// Merge overlays profiles onto base by ID, keeping base order for replaced
// entries and appending new ones. Duplicate IDs inside overrides are kept so
// NewRegistry reports them.
func Merge(base, overrides []Profile) []Profile {
	out := append([]Profile(nil), base...)
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.ID] = i
	}
	replaced := make(map[string]bool)
	for _, p := range overrides {
		if i, ok := index[p.ID]; ok && !replaced[p.ID] {
			out[i] = p
			replaced[p.ID] = true
			continue
		}
		out = append(out, p)
	}
	return out
}
