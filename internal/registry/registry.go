// Package registry discovers available filter classes and
// instantiates the active subset in declared order (spec §4.2).
// Grounded on original_source/DNS/Config.py's get_all_plugins, which
// walks the Plugins package at runtime with pkgutil/inspect; Go has
// no equivalent runtime package enumeration, so each filter package
// registers its Descriptor from an init() function instead — the same
// static-registration idiom the teacher uses for CoreDNS's
// plugin.Register.
package registry

import (
	"context"

	"github.com/amirdaaee/dnspy/internal/config"
	"github.com/amirdaaee/dnspy/internal/dnspyerr"
	"github.com/amirdaaee/dnspy/internal/filter"
)

// Descriptor is a discoverable plugin class: its option schema plus a
// constructor. New receives the slice of filters already built (in
// declared order) so a later plugin can bind to an earlier one by
// type (spec §9 "Cross-plugin binding"), and the plugin's own resolved
// option values.
type Descriptor struct {
	config.PluginSchema
	New func(ctx context.Context, built []filter.Filter, values config.Values) (filter.Filter, error)
}

var all []Descriptor

// Register adds a Descriptor to the discoverable set. Called from
// each filter package's init(). A class whose name begins with "_" is
// considered abstract in the original; in Go that's simply a type
// never registered, so there is nothing to filter out here.
func Register(d Descriptor) {
	all = append(all, d)
}

// All returns every discovered Descriptor.
func All() []Descriptor {
	out := make([]Descriptor, len(all))
	copy(out, all)
	return out
}

// Schemas projects All() down to the config.PluginSchema slice the
// config registry needs to compose its flat schema.
func Schemas() []config.PluginSchema {
	out := make([]config.PluginSchema, len(all))
	for i, d := range all {
		out[i] = d.PluginSchema
	}
	return out
}

// Build instantiates settings.Plugins in order, in a single pass, so
// each constructor sees every filter built before it. A plugin name
// present in settings.Plugins that isn't in the registry has already
// been dropped by config.Load; Build only ever sees names it can
// resolve, but still verifies defensively since Settings can be
// constructed outside Load in tests.
func Build(ctx context.Context, settings *config.Settings) ([]filter.Filter, error) {
	byName := make(map[string]Descriptor, len(all))
	for _, d := range all {
		byName[d.FullName()] = d
	}

	built := make([]filter.Filter, 0, len(settings.Plugins))
	for _, name := range settings.Plugins {
		d, ok := byName[name]
		if !ok {
			return nil, &dnspyerr.PluginNotFound{Plugin: name}
		}
		values := settings.PluginValues[name]
		f, err := d.New(ctx, built, values)
		if err != nil {
			return nil, &dnspyerr.PluginInitError{Plugin: name, Cause: err}
		}
		built = append(built, f)
	}
	return built, nil
}

// FindByType returns the first filter in built whose concrete type
// matches T, used by plugins that bind to an earlier peer (spec
// §4.4.4). It never searches a global registry, only the slice handed
// to this plugin's own constructor.
func FindByType[T filter.Filter](built []filter.Filter) (T, bool) {
	for _, f := range built {
		if t, ok := f.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}
