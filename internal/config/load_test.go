package config

import "testing"

func authoritativeSchemas() []PluginSchema {
	moduleOpts := []OptionSpec{
		{Name: "redis_uri", Type: TString, Required: true},
		{Name: "default_ttl", Type: TInt, Default: 0},
	}
	return []PluginSchema{
		{
			Module:        "Authoritative",
			Class:         "LocalDB",
			ModuleOptions: moduleOpts,
			ClassOptions: []OptionSpec{
				{Name: "redis_key_A", Type: TString, Default: "LocalDB"},
			},
		},
		{
			Module:        "Authoritative",
			Class:         "DenySet",
			ModuleOptions: moduleOpts,
			ClassOptions: []OptionSpec{
				{Name: "redis_key_A", Type: TString, Default: "BLDB"},
				{Name: "response_ip", Type: TIPv4List, Required: true},
				{Name: "ttl", Type: TInt, Default: 0},
			},
		},
	}
}

func TestLoadDefaults(t *testing.T) {
	env := EnvironMap([]string{})
	s, err := Load(env, nil, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.LocalIP != "127.0.0.1" || s.LocalPort != 5053 {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.UpstreamIP != "8.8.8.8" || s.UpstreamPort != 53 {
		t.Errorf("unexpected upstream defaults: %+v", s)
	}
	if len(s.Plugins) != 0 {
		t.Errorf("expected no active plugins, got %v", s.Plugins)
	}
}

func TestLoadInvalidIP(t *testing.T) {
	env := EnvironMap([]string{"DNSPY__LOCAL_IP=not-an-ip"})
	_, err := Load(env, nil, nil)
	if err == nil {
		t.Fatal("expected ConfigError for invalid local_ip")
	}
}

func TestLoadUnknownPluginSkipped(t *testing.T) {
	env := EnvironMap([]string{`DNSPY__PLUGINS=["Foo.Bar"]`})
	s, err := Load(env, authoritativeSchemas(), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(s.Plugins) != 0 {
		t.Errorf("expected Foo.Bar to be skipped, got %v", s.Plugins)
	}
}

func TestLoadPluginModuleAndClassScopeValues(t *testing.T) {
	env := EnvironMap([]string{
		`DNSPY__PLUGINS=["Authoritative.LocalDB"]`,
		`DNSPY__PLUGIN__AUTHORITATIVE__REDIS_URI=redis://localhost:6379/0`,
		`DNSPY__PLUGIN__AUTHORITATIVE__DEFAULT_TTL=10`,
	})
	s, err := Load(env, authoritativeSchemas(), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	v := s.PluginValues["Authoritative.LocalDB"]
	if v.Int("default_ttl") != 10 {
		t.Errorf("expected module-scope default_ttl=10, got %v", v.Int("default_ttl"))
	}
	if v.String("redis_key_A") != "LocalDB" {
		t.Errorf("expected class default redis_key_A, got %v", v.String("redis_key_A"))
	}
}

func TestLoadMissingRequiredPluginOption(t *testing.T) {
	env := EnvironMap([]string{`DNSPY__PLUGINS=["Authoritative.DenySet"]`})
	_, err := Load(env, authoritativeSchemas(), nil)
	if err == nil {
		t.Fatal("expected ConfigError for missing redis_uri/response_ip")
	}
}

func TestDiscoverableSchemaCoversInactivePlugins(t *testing.T) {
	schema := DiscoverableSchema(authoritativeSchemas())
	if _, ok := schema["PLUGIN__AUTHORITATIVE.DENYSET__RESPONSE_IP"]; !ok {
		t.Errorf("expected discoverable schema to include inactive plugin options, got keys: %v", keys(schema))
	}
}

func keys(m map[string]OptionSpec) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
