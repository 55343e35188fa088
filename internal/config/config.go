// Package config resolves which files and directories the tag tools skip.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Environment variables overriding the configured lists. Both are space-separated.
const (
	EnvSkipExtensions = "NOTAGS_SKIP_EXTENSIONS"
	EnvIgnoreDirnames = "NOTAGS_IGNORE_DIRNAMES"
)

// FileName is the config file name inside the metapho config directory.
const FileName = "config.json"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigInvalid      = errors.New("invalid config file")
)

// Config holds the skip rules.
type Config struct {
	// Extensions (with the dot) of files that are never expected to be tagged.
	SkipExtensions []string `json:"skip_extensions"` //nolint:tagliatelle // snake_case for config file
	// Regular expressions matched against the start of directory names to ignore.
	IgnoreDirnames []string `json:"ignore_dirnames"` //nolint:tagliatelle // snake_case for config file
}

// Default returns the built-in rules.
func Default() Config {
	return Config{
		SkipExtensions: []string{
			".cr2", ".arw", ".xcf",
			".mvi", ".avi", ".mov", ".thm", ".mp4", ".mkv",
			".pto", ".txt", ".wav", ".mp3",
			".xml", ".pp3",
		},
		IgnoreDirnames: []string{"html", "web", "bad", ".*_assets$"},
	}
}

// GlobalPath returns the path of the per-user config file:
// $XDG_CONFIG_HOME/metapho/config.json, else ~/.config/metapho/config.json.
// Returns "" if no home directory can be determined.
func GlobalPath(env []string) string {
	if xdg := lookupEnv(env, "XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "metapho", FileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "metapho", FileName)
}

// Load resolves the configuration with this precedence (highest wins):
//  1. Defaults
//  2. The global config file, or configPath if non-empty (which must exist)
//  3. NOTAGS_SKIP_EXTENSIONS / NOTAGS_IGNORE_DIRNAMES in env
//
// env is a list of KEY=value strings as returned by os.Environ.
func Load(configPath string, env []string) (Config, error) {
	cfg := Default()

	path := configPath
	mustExist := path != ""
	if path == "" {
		path = GlobalPath(env)
	}
	if path != "" {
		fileCfg, loaded, err := loadFile(path, mustExist)
		if err != nil {
			return Config{}, err
		}
		if loaded {
			cfg = merge(cfg, fileCfg)
		}
	}

	if v, ok := lookupEnvOK(env, EnvSkipExtensions); ok {
		cfg.SkipExtensions = strings.Fields(v)
	}
	if v, ok := lookupEnvOK(env, EnvIgnoreDirnames); ok {
		cfg.IgnoreDirnames = strings.Fields(v)
	}
	return cfg, nil
}

func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
			}
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}
	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

// merge overlays the lists present in override onto base.
func merge(base, override Config) Config {
	if override.SkipExtensions != nil {
		base.SkipExtensions = override.SkipExtensions
	}
	if override.IgnoreDirnames != nil {
		base.IgnoreDirnames = override.IgnoreDirnames
	}
	return base
}

func lookupEnv(env []string, key string) string {
	v, _ := lookupEnvOK(env, key)
	return v
}

// lookupEnvOK finds key in env, the last occurrence winning like os.Getenv.
// An empty value counts as unset.
func lookupEnvOK(env []string, key string) (string, bool) {
	var val string
	var found bool
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, key+"="); ok {
			val, found = after, true
		}
	}
	if !found || strings.TrimSpace(val) == "" {
		return "", false
	}
	return val, true
}
