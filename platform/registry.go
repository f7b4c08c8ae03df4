package platform

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hazyhaar/proseai/horosafe"
)

// ErrDuplicateID is returned by NewRegistry when two profiles share an ID.
var ErrDuplicateID = errors.New("platform: duplicate profile id")

// Registry is an immutable set of profiles.
type Registry struct {
	order []string
	byID  map[string]Profile
}

// NewRegistry validates profiles and builds a registry preserving their order.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{byID: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		p.Fallbacks = append([]Locator(nil), p.Fallbacks...)
		p.Origins = append([]string(nil), p.Origins...)
		r.byID[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	return r, nil
}

func validate(p Profile) error {
	if err := horosafe.ValidateIdentifier(p.ID); err != nil {
		return fmt.Errorf("platform: profile id: %w", err)
	}
	if p.Primary.Selector == "" {
		return fmt.Errorf("platform: profile %s: primary selector is empty", p.ID)
	}
	for i, f := range p.Fallbacks {
		if f.Selector == "" {
			return fmt.Errorf("platform: profile %s: fallback %d selector is empty", p.ID, i)
		}
	}
	if len(p.Origins) == 0 {
		return fmt.Errorf("platform: profile %s: no origins", p.ID)
	}
	return nil
}

// Resolve returns the first profile in registration order whose origins
// match origin.
func (r *Registry) Resolve(origin string) (Profile, bool) {
	for _, id := range r.order {
		if p := r.byID[id]; p.Matches(origin) {
			return p, true
		}
	}
	return Profile{}, false
}

// Get returns the profile with the given ID.
func (r *Registry) Get(id string) (Profile, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// All returns every profile in registration order.
func (r *Registry) All() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns the sorted profile IDs.
func (r *Registry) IDs() []string {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}
