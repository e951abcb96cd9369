package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codegene/devproxy/pkg/proxy/rules"
	"github.com/codegene/devproxy/pkg/theme"
)

// ErrNoCracoSettings is returned when the input has neither devServer.proxy nor less options
var ErrNoCracoSettings = errors.New("no devServer.proxy or lessOptions found")

// cracoTarget is one devServer.proxy value. A bare string is shorthand for
// {target: "..."}.
type cracoTarget struct {
	Target       string `yaml:"target" json:"target"`
	ChangeOrigin bool   `yaml:"changeOrigin" json:"changeOrigin"`
}

type cracoLessOptions struct {
	ModifyVars        map[string]string `yaml:"modifyVars" json:"modifyVars"`
	JavascriptEnabled bool              `yaml:"javascriptEnabled" json:"javascriptEnabled"`
}

type cracoPlugin struct {
	Options struct {
		LessLoaderOptions struct {
			LessOptions *cracoLessOptions `yaml:"lessOptions" json:"lessOptions"`
		} `yaml:"lessLoaderOptions" json:"lessLoaderOptions"`
	} `yaml:"options" json:"options"`
}

type cracoProxyEntry struct {
	path   string
	target cracoTarget
}

// ImportCraco converts a craco/webpack dev server settings object (the
// module.exports value of craco.config.js, as JSON or YAML) into a Config.
// Proxy entries keep their declaration order. Less options are read from
// plugins[].options.lessLoaderOptions.lessOptions or a top-level lessOptions.
// The result uses preset "none" so only the imported rules apply.
func ImportCraco(data []byte, ext string) (*Config, error) {
	var (
		entries []cracoProxyEntry
		less    *cracoLessOptions
		err     error
	)

	switch strings.ToLower(ext) {
	case ".json":
		entries, less, err = decodeCracoJSON(data)
	case ".yaml", ".yml":
		entries, less, err = decodeCracoYAML(data)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .yaml, .yml, .json)", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 && less == nil {
		return nil, ErrNoCracoSettings
	}

	cfg := &Config{Proxy: ProxyConfig{Preset: PresetNone}}
	for _, e := range entries {
		cfg.Proxy.Rules = append(cfg.Proxy.Rules, rules.Rule{
			Prefix:       e.path,
			Target:       e.target.Target,
			ChangeOrigin: e.target.ChangeOrigin,
		})
	}
	if less != nil {
		cfg.Theme = &theme.Overrides{
			ModifyVars:        less.ModifyVars,
			JavascriptEnabled: less.JavascriptEnabled,
		}
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func pickLessOptions(top *cracoLessOptions, plugins []cracoPlugin) *cracoLessOptions {
	if top != nil {
		return top
	}
	for _, p := range plugins {
		if p.Options.LessLoaderOptions.LessOptions != nil {
			return p.Options.LessLoaderOptions.LessOptions
		}
	}
	return nil
}

func decodeCracoYAML(data []byte) ([]cracoProxyEntry, *cracoLessOptions, error) {
	var doc struct {
		DevServer struct {
			Proxy yaml.Node `yaml:"proxy"`
		} `yaml:"devServer"`
		Plugins     []cracoPlugin     `yaml:"plugins"`
		LessOptions *cracoLessOptions `yaml:"lessOptions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML craco settings: %w", err)
	}

	var entries []cracoProxyEntry
	proxy := doc.DevServer.Proxy
	if proxy.Kind != 0 && proxy.Tag != "!!null" {
		if proxy.Kind != yaml.MappingNode {
			return nil, nil, fmt.Errorf("devServer.proxy must be a mapping (line %d)", proxy.Line)
		}
		for i := 0; i+1 < len(proxy.Content); i += 2 {
			key, value := proxy.Content[i], proxy.Content[i+1]

			var target cracoTarget
			if value.Kind == yaml.ScalarNode {
				target.Target = value.Value
			} else if err := value.Decode(&target); err != nil {
				return nil, nil, fmt.Errorf("devServer.proxy[%q]: %w", key.Value, err)
			}
			entries = append(entries, cracoProxyEntry{path: key.Value, target: target})
		}
	}

	return entries, pickLessOptions(doc.LessOptions, doc.Plugins), nil
}

func decodeCracoJSON(data []byte) ([]cracoProxyEntry, *cracoLessOptions, error) {
	var doc struct {
		DevServer struct {
			Proxy json.RawMessage `json:"proxy"`
		} `json:"devServer"`
		Plugins     []cracoPlugin     `json:"plugins"`
		LessOptions *cracoLessOptions `json:"lessOptions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse JSON craco settings: %w", err)
	}

	var entries []cracoProxyEntry
	if len(doc.DevServer.Proxy) > 0 && string(doc.DevServer.Proxy) != "null" {
		// walk the object token by token; a map would lose key order
		dec := json.NewDecoder(bytes.NewReader(doc.DevServer.Proxy))
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("devServer.proxy: %w", err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return nil, nil, errors.New("devServer.proxy must be an object")
		}

		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, nil, fmt.Errorf("devServer.proxy: %w", err)
			}
			path := tok.(string)

			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, nil, fmt.Errorf("devServer.proxy[%q]: %w", path, err)
			}

			var target cracoTarget
			if err := json.Unmarshal(raw, &target.Target); err != nil {
				if err := json.Unmarshal(raw, &target); err != nil {
					return nil, nil, fmt.Errorf("devServer.proxy[%q]: %w", path, err)
				}
			}
			entries = append(entries, cracoProxyEntry{path: path, target: target})
		}
	}

	return entries, pickLessOptions(doc.LessOptions, doc.Plugins), nil
}
