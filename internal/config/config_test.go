package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, WithConfigDir(t.TempDir()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Debounce != domain.DefaultDebounce || cfg.Timeout != domain.DefaultOperationTimeout {
		t.Errorf("unexpected durations: %s / %s", cfg.Debounce, cfg.Timeout)
	}
	if !cfg.Artwork.Enabled || cfg.Artwork.MaxEdge != domain.DefaultArtworkMaxEdge {
		t.Errorf("unexpected artwork config: %+v", cfg.Artwork)
	}
	if cfg.File != "" {
		t.Errorf("no config file expected, got %s", cfg.File)
	}
	if _, err := cfg.Settings(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_Precedence(t *testing.T) {
	tests := []struct {
		name         string
		file         string
		env          map[string]string
		args         []string
		wantDebounce time.Duration
		wantTimeout  time.Duration
		wantArtwork  bool
		wantMaxEdge  int
		wantVerbose  bool
	}{
		{
			name:         "File Overrides Defaults",
			file:         "debounce: 1s\ntimeout: 3s\nartwork:\n  enabled: false\n  max_edge: 256\n",
			wantDebounce: time.Second,
			wantTimeout:  3 * time.Second,
			wantArtwork:  false,
			wantMaxEdge:  256,
		},
		{
			name:         "Environment Overrides File",
			file:         "timeout: 3s\n",
			env:          map[string]string{"NOWPLAYING_TIMEOUT": "7s", "NOWPLAYING_ARTWORK_MAX_EDGE": "128"},
			wantDebounce: domain.DefaultDebounce,
			wantTimeout:  7 * time.Second,
			wantArtwork:  true,
			wantMaxEdge:  128,
		},
		{
			name:         "Flags Override Environment",
			env:          map[string]string{"NOWPLAYING_DEBOUNCE": "2s"},
			args:         []string{"--debounce=250ms", "--artwork=false"},
			wantDebounce: 250 * time.Millisecond,
			wantTimeout:  domain.DefaultOperationTimeout,
			wantArtwork:  false,
			wantMaxEdge:  domain.DefaultArtworkMaxEdge,
		},
		{
			name:         "Unset Flags Do Not Mask The File",
			file:         "debounce: 1500ms\n",
			args:         []string{"--verbose"},
			wantDebounce: 1500 * time.Millisecond,
			wantTimeout:  domain.DefaultOperationTimeout,
			wantArtwork:  true,
			wantMaxEdge:  domain.DefaultArtworkMaxEdge,
			wantVerbose:  true,
		},
		{
			name:         "Verbose From File",
			file:         "verbose: true\n",
			wantDebounce: domain.DefaultDebounce,
			wantTimeout:  domain.DefaultOperationTimeout,
			wantArtwork:  true,
			wantMaxEdge:  domain.DefaultArtworkMaxEdge,
			wantVerbose:  true,
		},
		{
			name:         "Verbose From Environment",
			env:          map[string]string{"NOWPLAYING_VERBOSE": "true"},
			wantDebounce: domain.DefaultDebounce,
			wantTimeout:  domain.DefaultOperationTimeout,
			wantArtwork:  true,
			wantMaxEdge:  domain.DefaultArtworkMaxEdge,
			wantVerbose:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.file != "" {
				writeConfig(t, dir, tt.file)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(newFlags(t, tt.args...), WithConfigDir(dir))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}

			if cfg.Debounce != tt.wantDebounce {
				t.Errorf("debounce: got %s, want %s", cfg.Debounce, tt.wantDebounce)
			}
			if cfg.Timeout != tt.wantTimeout {
				t.Errorf("timeout: got %s, want %s", cfg.Timeout, tt.wantTimeout)
			}
			if cfg.Artwork.Enabled != tt.wantArtwork {
				t.Errorf("artwork: got %v, want %v", cfg.Artwork.Enabled, tt.wantArtwork)
			}
			if cfg.Artwork.MaxEdge != tt.wantMaxEdge {
				t.Errorf("max edge: got %d, want %d", cfg.Artwork.MaxEdge, tt.wantMaxEdge)
			}
			if cfg.Verbose != tt.wantVerbose {
				t.Errorf("verbose: got %v, want %v", cfg.Verbose, tt.wantVerbose)
			}
		})
	}
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("timeout: 9s\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(newFlags(t, "--config", path), WithConfigDir(t.TempDir()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 9*time.Second || cfg.File != path {
		t.Errorf("got timeout %s from %q", cfg.Timeout, cfg.File)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "debounce: [unterminated\n")

	_, err := Load(nil, WithConfigDir(dir))
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestSettings_RejectsOutOfRange(t *testing.T) {
	tests := map[string]string{
		"Zero Debounce":    "debounce: 0s\n",
		"Huge Timeout":     "timeout: 10m\n",
		"Negative Edge":    "artwork:\n  max_edge: -1\n",
		"Negative Timeout": "timeout: -1s\n",
	}
	for name, file := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, file)

			cfg, err := Load(nil, WithConfigDir(dir))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if _, err := cfg.Settings(); !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("expected invalid config, got %v", err)
			}
		})
	}
}
