package config

import (
	"fmt"

	"github.com/codegene/devproxy/pkg/proxy/rules"
	"github.com/codegene/devproxy/pkg/shared/logging"
	"github.com/codegene/devproxy/pkg/theme"
)

// EffectiveRules merges the preset with proxy.rules.
// An explicit rule with the same prefix (or glob) as a preset rule replaces
// it in place; other explicit rules are appended in order.
func (c *Config) EffectiveRules(logger logging.Logger) ([]rules.Rule, error) {
	preset, ok := LookupPreset(c.Proxy.Preset)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, c.Proxy.Preset)
	}

	merged := append([]rules.Rule(nil), preset.Rules...)
	index := make(map[string]int, len(merged))
	for i, rule := range merged {
		index[rule.Key()] = i
	}

	explicit := make(map[string]bool, len(c.Proxy.Rules))
	for i, rule := range c.Proxy.Rules {
		key := rule.Key()
		if explicit[key] {
			return nil, fmt.Errorf("proxy.rules[%d]: %w: %q", i, ErrDuplicateRule, key)
		}
		explicit[key] = true

		if at, ok := index[key]; ok {
			if logger != nil {
				logger.Info("Rule overrides preset",
					"preset", preset.Name,
					"path", key,
					"preset_target", merged[at].Target,
					"target", rule.Target)
			}
			merged[at] = rule
			continue
		}
		index[key] = len(merged)
		merged = append(merged, rule)
	}

	return merged, nil
}

// EffectiveTable builds the compiled rule table
func (c *Config) EffectiveTable(logger logging.Logger) (*rules.Table, error) {
	merged, err := c.EffectiveRules(logger)
	if err != nil {
		return nil, err
	}
	return rules.NewTable(merged)
}

// EffectiveTheme returns the configured theme, or the preset's theme when
// the config has no theme section
func (c *Config) EffectiveTheme() theme.Overrides {
	if c.Theme != nil {
		return *c.Theme
	}
	preset, _ := LookupPreset(c.Proxy.Preset)
	return preset.Theme
}
