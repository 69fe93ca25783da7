package config

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/amirdaaee/dnspy/internal/dnspyerr"
)

// Logger is the minimal interface Load needs to report a skipped
// plugin without introducing a hard dependency on a specific logging
// library from this package.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// noopLogger discards warnings; used when callers (mostly tests) don't
// care about PluginNotFound diagnostics.
type noopLogger struct{}

func (noopLogger) Warnf(string, ...interface{}) {}

// EnvironMap canonicalizes a slice of "KEY=VALUE" strings (as returned
// by os.Environ()) into an upper-cased lookup map, implementing the
// case-insensitivity spec §6 requires.
func EnvironMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		idx := strings.IndexByte(kv, '=')
		if idx == -1 {
			continue
		}
		out[strings.ToUpper(kv[:idx])] = kv[idx+1:]
	}
	return out
}

// Load resolves Settings from env (canonicalized via EnvironMap),
// validating the base options plus every plugin named in
// DNSPY__PLUGINS against the option schemas declared by available.
// Plugins named but not present in available are logged via log and
// skipped (PluginNotFound), not fatal. Any missing required option or
// type mismatch is accumulated into a single *dnspyerr.ConfigError.
func Load(env map[string]string, available []PluginSchema, log Logger) (*Settings, error) {
	if log == nil {
		log = noopLogger{}
	}
	cerr := dnspyerr.NewConfigError()

	settings := &Settings{PluginValues: map[string]Values{}}
	base := baseSchema()

	localIP, err := resolveOption(env, EnvPrefix, "LOCAL_IP", base["LOCAL_IP"])
	addErr(cerr, err)
	upstreamIP, err := resolveOption(env, EnvPrefix, "UPSTREAM_IP", base["UPSTREAM_IP"])
	addErr(cerr, err)
	localPort, err := resolveOption(env, EnvPrefix, "LOCAL_PORT", base["LOCAL_PORT"])
	addErr(cerr, err)
	upstreamPort, err := resolveOption(env, EnvPrefix, "UPSTREAM_PORT", base["UPSTREAM_PORT"])
	addErr(cerr, err)
	pluginsRaw, err := resolveOption(env, EnvPrefix, "PLUGINS", base["PLUGINS"])
	addErr(cerr, err)

	if s, ok := localIP.(string); ok {
		settings.LocalIP = s
	}
	if s, ok := upstreamIP.(string); ok {
		settings.UpstreamIP = s
	}
	if p, ok := localPort.(int); ok {
		settings.LocalPort = uint16(p)
	}
	if p, ok := upstreamPort.(int); ok {
		settings.UpstreamPort = uint16(p)
	}
	if l, ok := pluginsRaw.([]string); ok {
		settings.Plugins = l
	}

	byName := make(map[string]PluginSchema, len(available))
	for _, p := range available {
		byName[p.FullName()] = p
	}

	var active []string
	for _, name := range settings.Plugins {
		schema, ok := byName[name]
		if !ok {
			log.Warnf("plugin %q not found, skipping", name)
			continue
		}
		active = append(active, name)

		values, err := resolvePluginValues(env, schema)
		if err != nil {
			cerr.Add(fmt.Errorf("plugin %s: %w", name, err))
			continue
		}
		settings.PluginValues[name] = values
	}
	settings.Plugins = active

	if cerr.HasErrors() {
		return nil, cerr
	}
	return settings, nil
}

// DiscoverableSchema composes the full flat schema (base options plus
// every discoverable plugin's options, active or not) for --list-env
// style introspection (spec §4.1).
func DiscoverableSchema(available []PluginSchema) map[string]OptionSpec {
	out := baseSchema()
	for _, p := range available {
		for _, opt := range p.ModuleOptions {
			out[flatKey("PLUGIN__"+strings.ToUpper(p.Module), opt.Name)] = opt
		}
		for _, opt := range p.ClassOptions {
			out[flatKey("PLUGIN__"+strings.ToUpper(p.Module+"."+p.Class), opt.Name)] = opt
		}
	}
	return out
}

func resolvePluginValues(env map[string]string, schema PluginSchema) (Values, error) {
	values := make(Values)
	cerr := dnspyerr.NewConfigError()

	moduleNS := "PLUGIN__" + strings.ToUpper(schema.Module)
	for _, opt := range schema.ModuleOptions {
		v, err := resolveOption(env, EnvPrefix, moduleNS+"__"+strings.ToUpper(opt.Name), opt)
		if err != nil {
			cerr.Add(err)
			continue
		}
		values[opt.Name] = v
	}

	classNS := "PLUGIN__" + strings.ToUpper(schema.Module+"."+schema.Class)
	for _, opt := range schema.ClassOptions {
		v, err := resolveOption(env, EnvPrefix, classNS+"__"+strings.ToUpper(opt.Name), opt)
		if err != nil {
			cerr.Add(err)
			continue
		}
		// Class-scope wins over module-scope on name collision.
		values[opt.Name] = v
	}

	if cerr.HasErrors() {
		return nil, cerr
	}
	return values, nil
}

func flatKey(namespace, optName string) string {
	return namespace + "__" + strings.ToUpper(optName)
}

func resolveOption(env map[string]string, prefix, flatName string, spec OptionSpec) (interface{}, error) {
	key := strings.ToUpper(prefix + flatName)
	raw, ok := env[key]
	if !ok {
		if spec.Required {
			return nil, fmt.Errorf("missing required option %q (env %s)", spec.Name, key)
		}
		return spec.Default, nil
	}
	return parseValue(raw, spec)
}

func parseValue(raw string, spec OptionSpec) (interface{}, error) {
	switch spec.Type {
	case TString:
		return raw, nil
	case TInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("option %q: invalid integer %q", spec.Name, raw)
		}
		return n, nil
	case TPort:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 65535 {
			return nil, fmt.Errorf("option %q: invalid port %q", spec.Name, raw)
		}
		return n, nil
	case TBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("option %q: invalid bool %q", spec.Name, raw)
		}
		return b, nil
	case TIPv4:
		if net.ParseIP(raw).To4() == nil {
			return nil, fmt.Errorf("option %q: invalid IPv4 address %q", spec.Name, raw)
		}
		return raw, nil
	case TIPv4List:
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("option %q: invalid JSON list %q", spec.Name, raw)
		}
		for _, ip := range list {
			if net.ParseIP(ip).To4() == nil {
				return nil, fmt.Errorf("option %q: invalid IPv4 address %q", spec.Name, ip)
			}
		}
		return list, nil
	case TStringList:
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("option %q: invalid JSON list %q", spec.Name, raw)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("option %q: unknown type", spec.Name)
	}
}

func addErr(cerr *dnspyerr.ConfigError, err error) {
	if err != nil {
		cerr.Add(err)
	}
}
