// Package config resolves dnspy's process-wide Settings from
// environment variables, composing a flat schema from the base
// options and every plugin's declared option set (spec §4.1).
// Grounded on original_source/DNS/Config.py's pydantic-based
// create_model dance; Go has no runtime model synthesis, so the
// schema is composed as an ordinary map instead, and per-option
// validation is explicit rather than delegated to a type system.
package config

import "fmt"

// OptionType names the few value shapes a plugin option can declare.
type OptionType int

const (
	TString OptionType = iota
	TInt
	TBool
	TIPv4
	TIPv4List
	TStringList
	// TPort is TInt additionally bounds-checked to [0, 65535] (spec §4.1).
	TPort
)

// OptionSpec declares a single configurable value: its type, default,
// and whether it is required. A Required option with a non-nil
// Default is a contradiction the registry never constructs.
type OptionSpec struct {
	Name     string
	Type     OptionType
	Default  interface{}
	Required bool
}

// PluginSchema is what one plugin class contributes to the flat
// config schema: the options shared by every class in its module
// (ModuleOptions, e.g. Authoritative's redis_uri/default_ttl) plus the
// options specific to this class (ClassOptions). ModuleOptions is
// repeated verbatim across every class in the same module; the schema
// composer de-duplicates by module name.
type PluginSchema struct {
	Module        string
	Class         string
	ModuleOptions []OptionSpec
	ClassOptions  []OptionSpec
}

// FullName is the "<module>.<class>" identifier used in
// Settings.Plugins and plugin env-var namespacing.
func (p PluginSchema) FullName() string {
	return fmt.Sprintf("%s.%s", p.Module, p.Class)
}

// Values is a fully resolved, type-asserted set of option values for
// one plugin instance, with class-scope options already taking
// precedence over module-scope options of the same name (Open
// Question (i) in spec §9, resolved in favor of class-scope).
type Values map[string]interface{}

func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v Values) Int(name string) int {
	i, _ := v[name].(int)
	return i
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

func (v Values) IPv4List(name string) []string {
	l, _ := v[name].([]string)
	return l
}

func (v Values) StringList(name string) []string {
	l, _ := v[name].([]string)
	return l
}

// Has reports whether name was set (explicitly or via default).
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}
