package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "LINKDEX_"

// configNames are the file names probed by Find, in priority order.
var configNames = []string{
	".linkdex.toml",
	"linkdex.toml",
	".linkdex.yaml",
	"linkdex.yaml",
}

// Find returns the path of the first config file found directly under root,
// or "" when none exists.
func Find(root string) string {
	for _, name := range configNames {
		path := filepath.Join(root, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load reads the config file at path, overlays LINKDEX_* environment
// variables, and normalizes the result. An empty path loads defaults plus
// environment only. Roots passed explicitly take precedence over roots from
// the file.
func Load(path string, roots []string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// LINKDEX_DEBOUNCE_MS=250 maps to debounce_ms. Underscores inside a
	// key stay literal; there are no nested env keys.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var raw fileConfig
	err = k.UnmarshalWithConf("", &raw, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &raw,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return normalize(raw, roots)
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
}
