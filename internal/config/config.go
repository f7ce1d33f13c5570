package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"vibe/internal/fsutil"
)

const (
	configType = "toml"
	envPrefix  = "VIBE"
)

// Ensure loads the config at path, writing the defaults first if the file
// does not exist yet.
func Ensure(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
		if err := Save(path, DefaultConfig()); err != nil {
			return Config{}, err
		}
	}
	return Load(path)
}

// Load layers the built-in defaults, the TOML file at path (when present) and
// VIBE_* environment variables, in that order. A missing file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	v := viper.New()
	v.SetConfigType(configType)

	defaults, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("CFG_ENCODE: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, fmt.Errorf("CFG_DEFAULTS: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("CFG_PARSE: %s: %w", path, err)
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return Config{}, statErr
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("CFG_PARSE: %w", err)
	}
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("CFG_ENCODE: %w", err)
	}
	return fsutil.AtomicWrite(path, blob, 0o644)
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("CFG_ENCODE: %w", err)
	}
	return blob, nil
}
