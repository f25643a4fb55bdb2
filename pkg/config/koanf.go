package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "KERUTA_"
	ConfigFileEnv = "KERUTA_CONFIG"
	configDir     = "/config"
)

// Load merges, in order of increasing precedence, the given defaults, the yaml file for the
// service and the KERUTA_ prefixed environment. Nested keys use "__" in environment names,
// e.g. KERUTA_SCHEDULER__INTERVAL=10s sets scheduler.interval.
func Load[T any](service string, def T) (T, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(def, "koanf"), nil); err != nil {
		return def, fmt.Errorf("load defaults: %w", err)
	}

	path := configPath(service)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return def, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return def, fmt.Errorf("load environment: %w", err)
	}

	var cfg T
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return def, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Provide is Load for composition roots: a broken configuration is fatal.
func Provide[T any](service string, def T) T {
	cfg, err := Load(service, def)
	if err != nil {
		panic(fmt.Errorf("%s config: %w", service, err))
	}
	return cfg
}

func configPath(service string) string {
	if p, ok := os.LookupEnv(ConfigFileEnv); ok && p != "" {
		return p
	}
	return fmt.Sprintf("%s/%s.yaml", configDir, service)
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}
