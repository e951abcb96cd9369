package config

import (
	"sort"

	"github.com/codegene/devproxy/pkg/proxy/rules"
	"github.com/codegene/devproxy/pkg/theme"
)

const (
	// PresetSSO forwards the SSO API paths to the shared SSO backend
	PresetSSO = "sso"

	// PresetSSOCAS adds the CAS validation endpoints served by a local backend
	PresetSSOCAS = "sso-cas"

	// PresetNone disables presets; only proxy.rules apply
	PresetNone = "none"

	// DefaultPreset is used when neither the config file nor a flag names one
	DefaultPreset = PresetSSO
)

const (
	ssoTarget = "http://sso-api.codegene.xyz"
	casTarget = "http://localhost:8000"
)

// Preset is a built-in rule table plus theme
type Preset struct {
	Name  string
	Rules []rules.Rule
	Theme theme.Overrides
}

func brandTheme() theme.Overrides {
	return theme.Overrides{
		ModifyVars:        map[string]string{"@primary-color": "rgb(45,120,213)"},
		JavascriptEnabled: true,
	}
}

func ssoRules() []rules.Rule {
	return []rules.Rule{
		{Prefix: "/api", Target: ssoTarget, ChangeOrigin: true},
		{Prefix: "/swagger", Target: ssoTarget, ChangeOrigin: true},
		{Prefix: "/files", Target: ssoTarget, ChangeOrigin: true},
		{Prefix: "/.well-known/openid-configuration", Target: ssoTarget, ChangeOrigin: true},
	}
}

func casRules() []rules.Rule {
	return []rules.Rule{
		{Prefix: "/cas/serviceValidate", Target: casTarget, ChangeOrigin: true},
		{Prefix: "/cas/proxyValidate", Target: casTarget, ChangeOrigin: true},
		{Prefix: "/cas/proxy", Target: casTarget, ChangeOrigin: true},
		{Prefix: "/cas/validate", Target: casTarget, ChangeOrigin: true},
	}
}

// presets are built on lookup so callers can never mutate a shared table
var presets = map[string]func() Preset{
	PresetSSO: func() Preset {
		return Preset{Name: PresetSSO, Rules: ssoRules(), Theme: brandTheme()}
	},
	PresetSSOCAS: func() Preset {
		return Preset{Name: PresetSSOCAS, Rules: append(ssoRules(), casRules()...), Theme: brandTheme()}
	},
	PresetNone: func() Preset {
		return Preset{Name: PresetNone}
	},
}

// LookupPreset returns the named preset. The empty name is DefaultPreset.
func LookupPreset(name string) (Preset, bool) {
	if name == "" {
		name = DefaultPreset
	}
	build, ok := presets[name]
	if !ok {
		return Preset{}, false
	}
	return build(), true
}

// PresetNames returns the built-in preset names in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
