package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lamim/cardforge/internal/config"
)

// Registry holds every configured profile, valid or not
type Registry struct {
	profiles map[string]*Profile
	errs     map[string]error
	descs    map[string]string
}

// Description summarizes one profile for listing
type Description struct {
	Name        string
	Description string
	Columns     []string
	Err         error
}

// NewRegistry builds all profiles. Invalid ones are kept and reported when requested.
func NewRegistry(configs map[string]config.ProfileConfig) *Registry {
	r := &Registry{
		profiles: make(map[string]*Profile, len(configs)),
		errs:     make(map[string]error),
		descs:    make(map[string]string, len(configs)),
	}
	for name, pc := range configs {
		r.descs[name] = pc.Description
		p, err := newProfile(name, pc)
		if err != nil {
			r.errs[name] = err
			continue
		}
		r.profiles[name] = p
	}
	return r
}

// Get returns the named profile or an ErrInvalidConfig-wrapped error
func (r *Registry) Get(name string) (*Profile, error) {
	if err, ok := r.errs[name]; ok {
		return nil, fmt.Errorf("%w: profile %q is invalid: %v", config.ErrInvalidConfig, name, err)
	}
	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown profile %q (available: %s)",
			config.ErrInvalidConfig, name, strings.Join(r.List(), ", "))
	}
	return p, nil
}

// List returns all profile names in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.profiles)+len(r.errs))
	for name := range r.profiles {
		names = append(names, name)
	}
	for name := range r.errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns one description per profile in name order
func (r *Registry) Describe() []Description {
	names := r.List()
	out := make([]Description, 0, len(names))
	for _, name := range names {
		d := Description{Name: name, Description: r.descs[name], Err: r.errs[name]}
		if p, ok := r.profiles[name]; ok {
			d.Columns = p.ExportColumns()
		}
		out = append(out, d)
	}
	return out
}
