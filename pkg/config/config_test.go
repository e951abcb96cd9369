package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegene/devproxy/pkg/proxy/rules"
	"github.com/codegene/devproxy/pkg/shared/kvs"
	"github.com/codegene/devproxy/pkg/shared/logging"
	"github.com/codegene/devproxy/pkg/theme"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		wantMsg string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name: "sso-cas with explicit rules",
			mutate: func(c *Config) {
				c.Proxy.Preset = PresetSSOCAS
				c.Proxy.Rules = []rules.Rule{{Prefix: "/graphql", Target: "http://localhost:4000"}}
			},
		},
		{
			name:    "unknown preset",
			mutate:  func(c *Config) { c.Proxy.Preset = "staging" },
			wantErr: ErrUnknownPreset,
		},
		{
			name: "duplicate explicit rules",
			mutate: func(c *Config) {
				c.Proxy.Rules = []rules.Rule{
					{Prefix: "/graphql", Target: "http://a"},
					{Prefix: "/graphql", Target: "http://b"},
				}
			},
			wantErr: ErrDuplicateRule,
		},
		{
			name:    "invalid rule target",
			mutate:  func(c *Config) { c.Proxy.Rules = []rules.Rule{{Prefix: "/graphql", Target: "localhost:4000"}} },
			wantMsg: "proxy.rules[0]",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: ErrInvalidPort,
		},
		{
			name:    "invalid timeout",
			mutate:  func(c *Config) { c.Proxy.Timeout = "soon" },
			wantMsg: "proxy.timeout",
		},
		{
			name:    "invalid theme",
			mutate:  func(c *Config) { c.Theme = &theme.Overrides{ModifyVars: map[string]string{"primary": "red"}} },
			wantMsg: "theme:",
		},
		{
			name: "redis journal without addr",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.KVS = kvs.Config{Type: "redis"}
			},
			wantMsg: "journal.kvs",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == nil && tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1
	cfg.Proxy.Preset = "staging"
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 3)
	assert.Contains(t, err.Error(), "found 3 validation errors")
	assert.ErrorIs(t, err, ErrUnknownPreset)
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}

func TestPresets(t *testing.T) {
	sso, ok := LookupPreset(PresetSSO)
	require.True(t, ok)
	require.Len(t, sso.Rules, 4)
	for _, r := range sso.Rules {
		assert.Equal(t, "http://sso-api.codegene.xyz", r.Target)
		assert.True(t, r.ChangeOrigin)
	}

	cas, ok := LookupPreset(PresetSSOCAS)
	require.True(t, ok)
	require.Len(t, cas.Rules, 8)
	assert.Equal(t, sso.Rules, cas.Rules[:4])
	for _, r := range cas.Rules[4:] {
		assert.Equal(t, "http://localhost:8000", r.Target)
		assert.True(t, r.ChangeOrigin)
	}

	for _, p := range []Preset{sso, cas} {
		assert.Equal(t, "rgb(45,120,213)", p.Theme.ModifyVars["@primary-color"])
		assert.True(t, p.Theme.JavascriptEnabled)
	}

	none, ok := LookupPreset(PresetNone)
	require.True(t, ok)
	assert.Empty(t, none.Rules)

	def, ok := LookupPreset("")
	require.True(t, ok)
	assert.Equal(t, PresetSSO, def.Name)

	_, ok = LookupPreset("staging")
	assert.False(t, ok)

	assert.Equal(t, []string{"none", "sso", "sso-cas"}, PresetNames())
}

func TestPresets_AreIndependentCopies(t *testing.T) {
	a, _ := LookupPreset(PresetSSO)
	a.Rules[0].Target = "http://changed"
	a.Theme.ModifyVars["@primary-color"] = "red"

	b, _ := LookupPreset(PresetSSO)
	assert.Equal(t, "http://sso-api.codegene.xyz", b.Rules[0].Target)
	assert.Equal(t, "rgb(45,120,213)", b.Theme.ModifyVars["@primary-color"])
}

func TestConfig_EffectiveRules(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Proxy.Preset = PresetSSOCAS
	cfg.Proxy.Rules = []rules.Rule{
		{Prefix: "/graphql", Target: "http://localhost:4000"},
		{Prefix: "/cas/validate", Target: "http://localhost:9000", ChangeOrigin: false},
	}

	got, err := cfg.EffectiveRules(logging.NewTestLogger())
	require.NoError(t, err)
	require.Len(t, got, 9)

	// the override stays at the preset rule's position
	assert.Equal(t, "/cas/validate", got[7].Prefix)
	assert.Equal(t, "http://localhost:9000", got[7].Target)
	assert.False(t, got[7].ChangeOrigin)
	assert.Equal(t, "/graphql", got[8].Prefix)
}

func TestConfig_EffectiveRulesPresetNone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Proxy.Preset = PresetNone
	cfg.Proxy.Rules = []rules.Rule{{Prefix: "/graphql", Target: "http://localhost:4000"}}

	got, err := cfg.EffectiveRules(nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Proxy.Rules, got)
}

func TestConfig_EffectiveTable(t *testing.T) {
	tests := []struct {
		preset     string
		path       string
		wantTarget string
		wantMatch  bool
	}{
		{PresetSSO, "/api/users", "http://sso-api.codegene.xyz", true},
		{PresetSSO, "/swagger/index.html", "http://sso-api.codegene.xyz", true},
		{PresetSSO, "/files/a.png", "http://sso-api.codegene.xyz", true},
		{PresetSSO, "/.well-known/openid-configuration", "http://sso-api.codegene.xyz", true},
		{PresetSSO, "/cas/serviceValidate", "", false},
		{PresetSSO, "/static/app.js", "", false},
		{PresetSSOCAS, "/cas/serviceValidate", "http://localhost:8000", true},
		{PresetSSOCAS, "/cas/proxyValidate", "http://localhost:8000", true},
		{PresetSSOCAS, "/cas/proxy", "http://localhost:8000", true},
		{PresetSSOCAS, "/cas/validate", "http://localhost:8000", true},
		{PresetSSOCAS, "/api/users", "http://sso-api.codegene.xyz", true},
		{PresetSSOCAS, "/static/app.js", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.preset+tt.path, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Proxy.Preset = tt.preset
			table, err := cfg.EffectiveTable(nil)
			require.NoError(t, err)

			m, ok := table.Match(tt.path)
			assert.Equal(t, tt.wantMatch, ok)
			if ok {
				assert.Equal(t, tt.wantTarget, m.Rule.Target)
				assert.True(t, m.Rule.ChangeOrigin)
			}
		})
	}
}

func TestConfig_EffectiveTheme(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "rgb(45,120,213)", cfg.EffectiveTheme().ModifyVars["@primary-color"])

	cfg.Theme = &theme.Overrides{ModifyVars: map[string]string{"@primary-color": "#000"}}
	assert.Equal(t, "#000", cfg.EffectiveTheme().ModifyVars["@primary-color"])

	cfg.Theme = nil
	cfg.Proxy.Preset = PresetNone
	assert.Empty(t, cfg.EffectiveTheme().ModifyVars)
}

func TestServerConfig(t *testing.T) {
	s := ServerConfig{Host: "localhost", Port: 3000}
	assert.Equal(t, "localhost:3000", s.Addr())
	assert.Equal(t, "/__devproxy", s.GetAdminPrefix())

	s.AdminPrefix = "_admin/"
	assert.Equal(t, "/_admin", s.GetAdminPrefix())

	d, err := s.GetReadHeaderTimeout()
	require.NoError(t, err)
	assert.Equal(t, DefaultReadHeaderTimeout, d)
}
