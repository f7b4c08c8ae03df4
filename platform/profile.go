// Package platform holds the chat platforms proseai knows how to drive:
// where each one lives and how to find its message composition element.
// Adding a platform is a data change, either in Default or in a profiles
// file loaded with LoadFile.
package platform

import (
	"net/url"
	"strings"
)

// Locator is one way of finding the composition element.
type Locator struct {
	Selector string `yaml:"selector" json:"selector"`
	// AnyEditable scans every match of Selector for the first live editable
	// node. Otherwise only the first match is considered.
	AnyEditable bool `yaml:"any_editable,omitempty" json:"any_editable,omitempty"`
}

// Profile describes one supported chat platform.
type Profile struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	URL       string    `yaml:"url" json:"url"`
	Primary   Locator   `yaml:"primary" json:"primary"`
	Fallbacks []Locator `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
	// Origins are host names; a page matches when its host equals one of
	// them or is a subdomain of one.
	Origins []string `yaml:"origins" json:"origins"`
}

// Locators returns the primary locator followed by the fallbacks.
func (p Profile) Locators() []Locator {
	out := make([]Locator, 0, 1+len(p.Fallbacks))
	out = append(out, p.Primary)
	return append(out, p.Fallbacks...)
}

// Matches reports whether origin belongs to this platform. origin may be a
// full URL, a scheme://host[:port] origin, or a bare host.
func (p Profile) Matches(origin string) bool {
	host := hostOf(origin)
	if host == "" {
		return false
	}
	for _, o := range p.Origins {
		o = strings.ToLower(o)
		if host == o || strings.HasSuffix(host, "."+o) {
			return true
		}
	}
	return false
}

func hostOf(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ""
	}
	if !strings.Contains(origin, "://") {
		origin = "https://" + origin
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
}
