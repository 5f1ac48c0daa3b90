// Package config loads svgdeck settings from defaults, an optional YAML
// file and SVGDECK_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/notes"
	"svgdeck/internal/deck/raster"
	"svgdeck/internal/deck/slidexml"
	"svgdeck/internal/observability"
)

const (
	// FileName is the config file looked up without an explicit path.
	FileName = "svgdeck"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SVGDECK"
)

// Config is the complete application configuration.
type Config struct {
	Build         BuildConfig          `mapstructure:"build" yaml:"build"`
	Canvas        CanvasConfig         `mapstructure:"canvas" yaml:"canvas"`
	Rasterizer    raster.Config        `mapstructure:"rasterizer" yaml:"rasterizer"`
	Server        ServerConfig         `mapstructure:"server" yaml:"server"`
	Observability observability.Config `mapstructure:"observability" yaml:"observability"`
}

// BuildConfig holds build defaults the CLI flags start from.
type BuildConfig struct {
	Source             string  `mapstructure:"source" yaml:"source"`
	Compat             bool    `mapstructure:"compat" yaml:"compat"`
	Notes              bool    `mapstructure:"notes" yaml:"notes"`
	NotesLanguage      string  `mapstructure:"notes_language" yaml:"notes_language"`
	RelIDs             string  `mapstructure:"rel_ids" yaml:"rel_ids"`
	Transition         string  `mapstructure:"transition" yaml:"transition"`
	TransitionDuration float64 `mapstructure:"transition_duration" yaml:"transition_duration"`
	WorkDir            string  `mapstructure:"work_dir" yaml:"work_dir"`
	Parallel           int     `mapstructure:"parallel" yaml:"parallel"`
}

// CanvasConfig selects the default canvas and extra preset files.
type CanvasConfig struct {
	Format      string `mapstructure:"format" yaml:"format"`
	PresetsFile string `mapstructure:"presets_file" yaml:"presets_file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr          string        `mapstructure:"addr" yaml:"addr"`
	EnableCORS    bool          `mapstructure:"enable_cors" yaml:"enable_cors"`
	Debug         bool          `mapstructure:"debug" yaml:"debug"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxUploadMB   int64         `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Build: BuildConfig{
			Source:             "output",
			Compat:             true,
			Notes:              true,
			NotesLanguage:      notes.DefaultLanguage,
			RelIDs:             string(notes.RelIDSequential),
			TransitionDuration: slidexml.DefaultTransitionDuration,
			Parallel:           4,
		},
		Canvas: CanvasConfig{
			Format: canvas.DefaultPreset,
		},
		Rasterizer: raster.DefaultConfig(),
		Server: ServerConfig{
			Addr:          ":8080",
			EnableCORS:    true,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  2 * time.Minute,
			MaxUploadMB:   64,
			MaxConcurrent: 4,
		},
		Observability: observability.DefaultConfig(),
	}
}

// Option customizes Load.
type Option func(*loadOptions)

type loadOptions struct {
	fs         afero.Fs
	file       string
	searchDirs []string
	envLookup  func(string) (string, bool)
}

// WithFile loads an explicit config file; it must exist.
func WithFile(path string) Option {
	return func(o *loadOptions) { o.file = path }
}

// WithFs reads config files from fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *loadOptions) { o.fs = fs }
}

// WithSearchDirs replaces the directories searched for svgdeck.yaml.
func WithSearchDirs(dirs ...string) Option {
	return func(o *loadOptions) { o.searchDirs = dirs }
}

// WithEnv replaces the environment lookup.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// Load builds the effective configuration. A missing svgdeck.yaml in the
// search path is not an error; a missing explicit file is.
func Load(opts ...Option) (Config, string, error) {
	options := loadOptions{searchDirs: []string{".", "$HOME/.svgdeck"}}
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	if options.fs != nil {
		v.SetFs(options.fs)
	}
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if options.envLookup == nil {
		v.AutomaticEnv()
	}

	if options.file != "" {
		v.SetConfigFile(options.file)
		if ext := strings.TrimPrefix(filepath.Ext(options.file), "."); ext == "" {
			v.SetConfigType("yaml")
		}
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		for _, dir := range options.searchDirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if options.file != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("read config: %w", err)
		}
	}

	if options.envLookup != nil {
		applyEnv(v, options.envLookup)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}

// Validate rejects values no build could use.
func (c Config) Validate() error {
	if _, err := raster.ParseBackend(c.Rasterizer.Backend); err != nil {
		return fmt.Errorf("rasterizer.backend: %w", err)
	}
	if _, err := notes.ParseRelIDMode(c.Build.RelIDs); err != nil {
		return fmt.Errorf("build.rel_ids: %w", err)
	}
	if c.Build.Transition != "" {
		if _, err := slidexml.ParseTransition(c.Build.Transition, c.Build.TransitionDuration, nil); err != nil {
			return fmt.Errorf("build.transition: %w", err)
		}
	}
	if c.Build.Parallel < 1 {
		return fmt.Errorf("build.parallel: must be at least 1, got %d", c.Build.Parallel)
	}
	return nil
}

// setDefaults registers every leaf of cfg so env overrides and Unmarshal
// see the full key set.
func setDefaults(v *viper.Viper, cfg Config) {
	for key, value := range flatten(cfg) {
		v.SetDefault(key, value)
	}
}

func applyEnv(v *viper.Viper, lookup func(string) (string, bool)) {
	for _, key := range v.AllKeys() {
		name := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if value, ok := lookup(name); ok {
			v.Set(key, value)
		}
	}
}
