// Package config loads dexview settings from a YAML or JSONC file, a .env
// file and DEXVIEW_* environment variables, in increasing precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dexview/internal/dexfmt"
	"dexview/internal/highlight"
	"dexview/internal/loader"
	"dexview/internal/writer"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEXVIEW_"

// DefaultFiles are tried in order when no config path is given.
var DefaultFiles = []string{".dexview.yaml", ".dexview.yml", ".dexview.json", ".dexview.jsonc"}

// Config holds the settings shared by all commands.
type Config struct {
	Writer    string   `yaml:"writer" json:"writer"`
	Options   []string `yaml:"options" json:"options"`
	Entry     string   `yaml:"entry" json:"entry"`
	TempDir   string   `yaml:"temp_dir" json:"temp_dir"`
	Mode      string   `yaml:"mode" json:"mode"` // "strict" or "best-effort"
	MaxSteps  int      `yaml:"max_steps" json:"max_steps"`
	CacheSize int      `yaml:"cache_size" json:"cache_size"`
	Theme     Theme    `yaml:"theme" json:"theme"`

	// Highlight appends rules to the named writers.
	Highlight map[string][]highlight.Spec `yaml:"highlight" json:"highlight"`

	// Source is the file the config was read from, if any.
	Source string `yaml:"-" json:"-"`
}

// Theme holds "#rrggbb" colours for the terminal browser. Empty fields keep
// the terminal default.
type Theme struct {
	Text       string `yaml:"text" json:"text"`
	Background string `yaml:"background" json:"background"`
	Selection  string `yaml:"selection" json:"selection"`
	Status     string `yaml:"status" json:"status"`
	Match      string `yaml:"match" json:"match"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Writer: "Smali",
		Entry:  loader.DefaultEntry,
		Mode:   "best-effort",
		Theme: Theme{
			Selection: "#0b3d91",
			Status:    "#424242",
			Match:     "#fc3d21",
		},
	}
}

// Load reads path, or the first of DefaultFiles present in the working
// directory when path is empty, then applies .env and environment
// overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	c := Default()
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path == "" {
		for _, f := range DefaultFiles {
			if _, err := os.Stat(f); err == nil {
				path = f
				break
			}
		}
	}
	if path != "" {
		if err := c.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.decode(path, data); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	c.Source = path
	return nil
}

func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, c)
	}
	return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
}

// applyEnv overlays DEXVIEW_* variables read through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("WRITER", &c.Writer)
	str("ENTRY", &c.Entry)
	str("TEMP_DIR", &c.TempDir)
	str("MODE", &c.Mode)
	if v, ok := lookup(EnvPrefix + "OPTIONS"); ok && strings.TrimSpace(v) != "" {
		c.Options = splitList(v)
	}
	if err := num("MAX_STEPS", &c.MaxSteps); err != nil {
		return err
	}
	return num("CACHE_SIZE", &c.CacheSize)
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

// Validate checks option names, the decoder mode, theme colours and
// highlight colours. Highlight patterns are compiled when the writer
// registry is built.
func (c *Config) Validate() error {
	if _, err := c.ClassOptions(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.DecodeOptions(); err != nil {
		return err
	}
	if c.CacheSize < 0 || c.MaxSteps < 0 {
		return errors.New("config: cache_size and max_steps must not be negative")
	}
	for name, v := range map[string]string{
		"text":       c.Theme.Text,
		"background": c.Theme.Background,
		"selection":  c.Theme.Selection,
		"status":     c.Theme.Status,
		"match":      c.Theme.Match,
	} {
		if v == "" {
			continue
		}
		if _, err := highlight.ParseColor(v); err != nil {
			return fmt.Errorf("config: theme.%s: %w", name, err)
		}
	}
	return nil
}

// ClassOptions returns the class display options, or the default set when
// none are configured.
func (c *Config) ClassOptions() (writer.Options, error) {
	if len(c.Options) == 0 {
		return writer.DefaultOptions, nil
	}
	return writer.ParseOptions(c.Options)
}

// DecodeOptions returns the DEX decoder options.
func (c *Config) DecodeOptions() (dexfmt.Options, error) {
	o := dexfmt.Options{MaxSteps: c.MaxSteps}
	switch strings.ToLower(c.Mode) {
	case "", "best-effort", "besteffort":
		o.Mode = dexfmt.ModeBestEffort
	case "strict":
		o.Mode = dexfmt.ModeStrict
	default:
		return o, fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	return o, nil
}

// LoaderOptions returns the options for opening inputs.
func (c *Config) LoaderOptions() loader.Options {
	d, _ := c.DecodeOptions()
	return loader.Options{Entry: c.Entry, TempDir: c.TempDir, Decode: d}
}
