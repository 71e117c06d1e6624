package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	appName   = "nowplaying"
	envPrefix = "NOWPLAYING"
)

// Flag names shared with the CLI
const (
	FlagConfig         = "config"
	FlagDebounce       = "debounce"
	FlagTimeout        = "timeout"
	FlagArtwork        = "artwork"
	FlagArtworkMaxEdge = "artwork-max-edge"
	FlagVerbose        = "verbose"
)

// Config holds the raw, not yet validated configuration
type Config struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Artwork  struct {
		Enabled bool `mapstructure:"enabled"`
		MaxEdge int  `mapstructure:"max_edge"`
	} `mapstructure:"artwork"`
	Verbose bool `mapstructure:"verbose"`

	// File is the config file that was read, empty when none was found
	File string `mapstructure:"-"`
}

// Settings validates the loaded values
func (c Config) Settings() (domain.Settings, error) {
	return domain.NewSettings(c.Debounce, c.Timeout, c.Artwork.Enabled, c.Artwork.MaxEdge)
}

// Option customizes Load
type Option func(*viper.Viper)

// WithConfigDir searches dir instead of the XDG location
func WithConfigDir(dir string) Option {
	return func(v *viper.Viper) {
		v.AddConfigPath(dir)
	}
}

// RegisterFlags adds the configuration flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "path to a config file (default $XDG_CONFIG_HOME/nowplaying/config.yaml)")
	fs.Duration(FlagDebounce, domain.DefaultDebounce, "minimum gap between non-structural events")
	fs.Duration(FlagTimeout, domain.DefaultOperationTimeout, "deadline for every backend call")
	fs.Bool(FlagArtwork, true, "fetch artwork with the current snapshot")
	fs.Int(FlagArtworkMaxEdge, domain.DefaultArtworkMaxEdge, "downscale artwork larger than this many pixels (0 disables)")
	fs.BoolP(FlagVerbose, "v", false, "enable debug logging")
}

// Load merges defaults, the YAML config file, NOWPLAYING_* environment variables and flags
// (lowest to highest precedence). flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("debounce", domain.DefaultDebounce)
	v.SetDefault("timeout", domain.DefaultOperationTimeout)
	v.SetDefault("artwork.enabled", true)
	v.SetDefault("artwork.max_edge", domain.DefaultArtworkMaxEdge)
	v.SetDefault("verbose", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if len(opts) == 0 {
		if dir := defaultConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}
	for _, opt := range opts {
		opt(v)
	}

	// Environment variable support with NOWPLAYING_ prefix
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
		if f := flags.Lookup(FlagConfig); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
		}
	}

	// Read config file (a missing one is fine)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, domain.InvalidConfig(fmt.Sprintf("failed to read config file: %v", err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, domain.InvalidConfig(fmt.Sprintf("failed to parse config: %v", err))
	}
	cfg.File = v.ConfigFileUsed()

	return cfg, nil
}

// Fields describes the loaded values for logging. Load runs before the logger exists,
// since the logger itself is built from Verbose.
func (c Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("file", c.File),
		zap.Duration("debounce", c.Debounce),
		zap.Duration("timeout", c.Timeout),
		zap.Bool("artwork", c.Artwork.Enabled),
		zap.Int("artworkMaxEdge", c.Artwork.MaxEdge),
		zap.Bool("verbose", c.Verbose),
	}
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	keys := map[string]string{
		"debounce":         FlagDebounce,
		"timeout":          FlagTimeout,
		"artwork.enabled":  FlagArtwork,
		"artwork.max_edge": FlagArtworkMaxEdge,
		"verbose":          FlagVerbose,
	}
	for key, name := range keys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// defaultConfigDir follows XDG: $XDG_CONFIG_HOME/nowplaying, falling back to the OS user config dir
func defaultConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return ""
		}
		configHome = dir
	}
	return filepath.Join(configHome, appName)
}
