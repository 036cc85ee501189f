package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/linksweep/linksweep/pkg/linksweep/pathmatch"
)

// ErrInvalidConfig marks configuration errors. They are fatal at startup,
// before any scanning begins.
var ErrInvalidConfig = errors.New("invalid configuration")

// Instance configures one debrid integration: a credential, a mount root and
// a deletion policy, managed independently of other instances.
type Instance struct {
	Name    string `mapstructure:"name"`
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`

	// MountPath is the absolute path where the debrid storage is
	// bridged into the local filesystem.
	MountPath string `mapstructure:"mount_path"`

	// RateLimit is the minimum number of seconds between deletion calls.
	RateLimit float64 `mapstructure:"rate_limit"`

	// RetryAttempts is the number of retries after a transient failure.
	// The initial call is not counted: attempts = retries + 1.
	RetryAttempts int `mapstructure:"retry_attempts"`

	// RetryBackoff is the geometric growth factor for retry waits:
	// attempt n sleeps RetryBackoff^n seconds.
	RetryBackoff float64 `mapstructure:"retry_backoff"`

	// AllowEmptyLibrary permits deletion even when the symlink scan found
	// nothing. Without it, an empty symlink set downgrades the run to
	// dry-run semantics: zero symlinks would otherwise flag the whole
	// mount for deletion.
	AllowEmptyLibrary bool `mapstructure:"allow_empty_library"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// HistoryConfig configures the run-history store.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config is the full application configuration, loaded and validated once
// per run and immutable afterwards.
type Config struct {
	// LibraryRoot is the base directory containing symlinked media.
	LibraryRoot string `mapstructure:"library_root"`

	// IncludeDirs, when set, is a whitelist of LibraryRoot children to
	// scan. When empty, all children except ExcludeDirs are scanned.
	IncludeDirs []string `mapstructure:"include_dirs"`
	ExcludeDirs []string `mapstructure:"exclude_dirs"`

	// CycleCount is the number of detect/clean cycles. Zero runs until
	// interrupted.
	CycleCount int `mapstructure:"cycle_count"`

	// CycleInterval is the pause between cycles, in minutes.
	CycleInterval int `mapstructure:"cycle_interval"`

	// Workers bounds how many instances run concurrently.
	Workers int `mapstructure:"workers"`

	Logging LoggingConfig `mapstructure:"logging"`
	History HistoryConfig `mapstructure:"history"`

	Instances []Instance `mapstructure:"instances"`
}

// Load reads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/linksweep/config.yaml
//   - $HOME/.config/linksweep/config.yaml
//
// Environment variables are prefixed with LINKSWEEP_.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "linksweep"))
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "linksweep"))

	v.SetEnvPrefix("LINKSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return Unmarshal(v)
}

// LoadFile reads configuration from an explicit config file path. Unlike
// Load, a missing file is an error: the path was asked for.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("LINKSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Unmarshal(v)
}

// SetDefaults registers every recognized option's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cycle_count", DefaultCycleCount)
	v.SetDefault("cycle_interval", DefaultCycleIntervalMinutes)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("exclude_dirs", DefaultExcludeDirs)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.retention_days", DefaultHistoryRetentionDays)
}

// Unmarshal decodes and validates the configuration held by v.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyInstanceDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyInstanceDefaults fills zero policy fields on each instance.
func applyInstanceDefaults(cfg *Config) {
	for i := range cfg.Instances {
		inst := &cfg.Instances[i]
		if inst.RateLimit == 0 {
			inst.RateLimit = DefaultRateLimit
		}
		if inst.RetryAttempts == 0 {
			inst.RetryAttempts = DefaultRetryAttempts
		}
		if inst.RetryBackoff == 0 {
			inst.RetryBackoff = DefaultRetryBackoff
		}
	}
}

// Validate checks the configuration for errors that must stop the run
// before any scanning begins.
func (c *Config) Validate() error {
	if c.LibraryRoot == "" {
		return fmt.Errorf("%w: library_root is required", ErrInvalidConfig)
	}
	if !filepath.IsAbs(c.LibraryRoot) {
		return fmt.Errorf("%w: library_root must be absolute, got %q", ErrInvalidConfig, c.LibraryRoot)
	}
	if c.CycleCount < 0 {
		return fmt.Errorf("%w: cycle_count cannot be negative", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers cannot be negative", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Instances))
	for i := range c.Instances {
		inst := &c.Instances[i]
		if err := inst.validate(); err != nil {
			return err
		}
		key := strings.ToLower(inst.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate instance name %q", ErrInvalidConfig, inst.Name)
		}
		seen[key] = struct{}{}
	}

	return nil
}

func (inst *Instance) validate() error {
	if inst.Name == "" {
		return fmt.Errorf("%w: instance name is required", ErrInvalidConfig)
	}
	if inst.MountPath == "" {
		return fmt.Errorf("%w: instance %q: mount_path is required", ErrInvalidConfig, inst.Name)
	}
	if !filepath.IsAbs(inst.MountPath) {
		return fmt.Errorf("%w: instance %q: mount_path must be absolute, got %q",
			ErrInvalidConfig, inst.Name, inst.MountPath)
	}
	if inst.Enabled && inst.APIKey == "" {
		return fmt.Errorf("%w: instance %q: api_key is required for enabled instances",
			ErrInvalidConfig, inst.Name)
	}
	if inst.RateLimit < 0 {
		return fmt.Errorf("%w: instance %q: rate_limit cannot be negative", ErrInvalidConfig, inst.Name)
	}
	if inst.RetryAttempts < 0 {
		return fmt.Errorf("%w: instance %q: retry_attempts cannot be negative", ErrInvalidConfig, inst.Name)
	}
	if inst.RetryBackoff < 1.0 {
		return fmt.Errorf("%w: instance %q: retry_backoff must be >= 1.0, got %g",
			ErrInvalidConfig, inst.Name, inst.RetryBackoff)
	}
	return nil
}

// Enabled returns the enabled instances, optionally filtered to a single
// name (case-insensitive). An empty filter selects all enabled instances.
func (c *Config) Enabled(nameFilter string) []Instance {
	var out []Instance
	for _, inst := range c.Instances {
		if !inst.Enabled {
			continue
		}
		if nameFilter != "" && !strings.EqualFold(inst.Name, nameFilter) {
			continue
		}
		out = append(out, inst)
	}
	return out
}

// OverlappingMounts returns pairs of enabled instances whose mount roots are
// semantic ancestors of one another. The matcher handles overlap correctly,
// but overlapping roots usually indicate a misconfiguration worth a warning.
func (c *Config) OverlappingMounts() [][2]string {
	enabled := c.Enabled("")
	var out [][2]string
	for i := 0; i < len(enabled); i++ {
		for j := i + 1; j < len(enabled); j++ {
			a, b := enabled[i], enabled[j]
			if pathmatch.Belongs(a.MountPath, b.MountPath) || pathmatch.Belongs(b.MountPath, a.MountPath) {
				out = append(out, [2]string{a.Name, b.Name})
			}
		}
	}
	return out
}

// ScanDirs builds the list of library directories the symlink scanner walks.
// With IncludeDirs set, only those children of LibraryRoot that exist are
// returned. Otherwise every child directory not named in ExcludeDirs is
// returned.
func (c *Config) ScanDirs() ([]string, error) {
	if len(c.IncludeDirs) > 0 {
		var dirs []string
		for _, name := range c.IncludeDirs {
			path := filepath.Join(c.LibraryRoot, name)
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() {
				continue
			}
			dirs = append(dirs, path)
		}
		return dirs, nil
	}

	entries, err := os.ReadDir(c.LibraryRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: reading library_root %q: %v", ErrInvalidConfig, c.LibraryRoot, err)
	}

	excluded := make(map[string]struct{}, len(c.ExcludeDirs))
	for _, name := range c.ExcludeDirs {
		excluded[name] = struct{}{}
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, skip := excluded[entry.Name()]; skip {
			continue
		}
		dirs = append(dirs, filepath.Join(c.LibraryRoot, entry.Name()))
	}
	return dirs, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "linksweep"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "linksweep"), nil
}

// DataDir returns $XDG_DATA_HOME/linksweep/ for the history database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "linksweep")
}

// DefaultHistoryPath returns the default run-history database path.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// WriteDefault writes a starter config file if none exists.
// Returns the config path.
func WriteDefault() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# linksweep configuration

# Base directory containing your symlinked media library.
library_root: /library/medias

# Library subdirectories to scan. When empty, every child of library_root
# is scanned except exclude_dirs.
include_dirs: []
exclude_dirs:
  - downloads
  - .trash

# Number of detect/clean cycles per invocation (0 = run until interrupted)
# and minutes to wait between cycles.
cycle_count: %d
cycle_interval: %d

# Maximum instances processed concurrently.
workers: %d

logging:
  level: info
  # Empty means $XDG_STATE_HOME/linksweep/linksweep.log
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30
    max_backups: 5
    daily: true

history:
  enabled: true
  # Empty means $XDG_DATA_HOME/linksweep/history
  path: ""
  retention_days: %d

instances:
  - name: alldebrid_radarr
    enabled: true
    api_key: YOUR_API_KEY
    mount_path: /mnt/alldebrid-radarr
    rate_limit: %g
    retry_attempts: %d
    retry_backoff: %g
`, DefaultCycleCount, DefaultCycleIntervalMinutes, DefaultWorkers,
		DefaultHistoryRetentionDays, DefaultRateLimit, DefaultRetryAttempts, DefaultRetryBackoff)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o600); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}
