package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"giffer/internal/logging"
)

// Configuration keys. Each is also read from GIFFER_<KEY> and from
// config.yaml in the data directory.
const (
	KeyDataDir            = "data_dir"
	KeyLibraryDir         = "library_dir"
	KeyTagsFile           = "tags_file"
	KeyStoreBackend       = "store_backend"
	KeyIntakeDir          = "intake_dir"
	KeyExtensions         = "extensions"
	KeyQuiescence         = "quiescence"
	KeyIntakeQuiescence   = "intake_quiescence"
	KeySearchDebounce     = "search_debounce"
	KeyPort               = "port"
	KeyMetricsEnabled     = "metrics_enabled"
	KeyMetricsPort        = "metrics_port"
	KeyLogFile            = "log_file"
	KeyLogHealthChecks    = "log_health_checks"
	KeyLogMediaRequests   = "log_media_requests"
	KeyThumbnailCacheSize = "thumbnail_cache_size"
	KeyThumbnailWorkers   = "thumbnail_workers"
)

// Store backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// EnvPrefix is prepended to every configuration key in the environment.
const EnvPrefix = "GIFFER"

// ConfigFileName is read from the data directory when present.
const ConfigFileName = "config.yaml"

// Config holds all application configuration
type Config struct {
	DataDir      string
	LibraryDir   string
	TagsFile     string
	StoreBackend string
	DatabasePath string
	IntakeDir    string
	Extensions   []string

	Quiescence       time.Duration
	IntakeQuiescence time.Duration
	SearchDebounce   time.Duration

	Port           int
	MetricsEnabled bool
	MetricsPort    int

	LogFile          string
	LogHealthChecks  bool
	LogMediaRequests bool

	ThumbnailCacheSize int
	// ThumbnailWorkers bounds startup thumbnail warm-up; 0 sizes it from the CPU count.
	ThumbnailWorkers int

	// ConfigFile is the config.yaml that was read, if any.
	ConfigFile string
}

// Addr is the loopback address the gallery server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}

// MetricsAddr is the loopback address of the metrics server.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.MetricsPort)
}

// NewViper returns a viper instance with giffer's defaults and environment
// binding. Paths derived from data_dir are left unset and resolved by
// LoadConfig.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyDataDir, defaultDataDir())
	v.SetDefault(KeyStoreBackend, BackendJSON)
	v.SetDefault(KeyIntakeDir, "")
	v.SetDefault(KeyExtensions, []string{".gif"})
	v.SetDefault(KeyQuiescence, 1500*time.Millisecond)
	v.SetDefault(KeyIntakeQuiescence, 2*time.Second)
	v.SetDefault(KeySearchDebounce, 300*time.Millisecond)
	v.SetDefault(KeyPort, 7373)
	v.SetDefault(KeyMetricsEnabled, false)
	v.SetDefault(KeyMetricsPort, 9393)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogHealthChecks, false)
	v.SetDefault(KeyLogMediaRequests, false)
	v.SetDefault(KeyThumbnailCacheSize, 256)
	v.SetDefault(KeyThumbnailWorkers, 0)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "GIFfer"
	}
	return filepath.Join(home, "Documents", "GIFfer")
}

// LoadConfig resolves and validates configuration from v. It reads
// config.yaml from the data directory when present but creates nothing;
// call PrepareDirectories once the instance lock is held.
func LoadConfig(v *viper.Viper) (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir, err := filepath.Abs(expandHome(v.GetString(KeyDataDir)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	configFile := filepath.Join(dataDir, ConfigFileName)
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
		}
		configFile = ""
	}

	cfg := &Config{
		DataDir:            dataDir,
		StoreBackend:       strings.ToLower(strings.TrimSpace(v.GetString(KeyStoreBackend))),
		Extensions:         splitList(v.GetStringSlice(KeyExtensions)),
		Quiescence:         v.GetDuration(KeyQuiescence),
		IntakeQuiescence:   v.GetDuration(KeyIntakeQuiescence),
		SearchDebounce:     v.GetDuration(KeySearchDebounce),
		Port:               v.GetInt(KeyPort),
		MetricsEnabled:     v.GetBool(KeyMetricsEnabled),
		MetricsPort:        v.GetInt(KeyMetricsPort),
		LogHealthChecks:    v.GetBool(KeyLogHealthChecks),
		LogMediaRequests:   v.GetBool(KeyLogMediaRequests),
		ThumbnailCacheSize: v.GetInt(KeyThumbnailCacheSize),
		ThumbnailWorkers:   v.GetInt(KeyThumbnailWorkers),
		ConfigFile:         configFile,
	}

	paths := []struct {
		key      string
		fallback string
		dst      *string
	}{
		{KeyLibraryDir, filepath.Join(dataDir, "gifs"), &cfg.LibraryDir},
		{KeyTagsFile, filepath.Join(dataDir, "tags.json"), &cfg.TagsFile},
		{KeyIntakeDir, "", &cfg.IntakeDir},
		{KeyLogFile, "", &cfg.LogFile},
	}
	for _, p := range paths {
		value := strings.TrimSpace(v.GetString(p.key))
		if value == "" {
			value = p.fallback
		}
		if value != "" {
			if value, err = filepath.Abs(expandHome(value)); err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", p.key, err)
			}
		}
		*p.dst = value
	}
	cfg.DatabasePath = filepath.Join(dataDir, "tags.db")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.log()
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("invalid %s %q: must be %q or %q", KeyStoreBackend, c.StoreBackend, BackendJSON, BackendSQLite)
	}
	for key, port := range map[string]int{KeyPort: c.Port, KeyMetricsPort: c.MetricsPort} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s %d: must be between 1 and 65535", key, port)
		}
	}
	if c.MetricsEnabled && c.MetricsPort == c.Port {
		return fmt.Errorf("%s and %s must differ", KeyPort, KeyMetricsPort)
	}
	for key, d := range map[string]time.Duration{
		KeyQuiescence:       c.Quiescence,
		KeyIntakeQuiescence: c.IntakeQuiescence,
		KeySearchDebounce:   c.SearchDebounce,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s %v: must be positive", key, d)
		}
	}
	if c.IntakeDir != "" && c.IntakeDir == c.LibraryDir {
		return fmt.Errorf("%s must differ from %s", KeyIntakeDir, KeyLibraryDir)
	}
	if c.ThumbnailCacheSize <= 0 {
		return fmt.Errorf("invalid %s %d: must be positive", KeyThumbnailCacheSize, c.ThumbnailCacheSize)
	}
	if c.ThumbnailWorkers < 0 {
		return fmt.Errorf("invalid %s %d: must not be negative", KeyThumbnailWorkers, c.ThumbnailWorkers)
	}
	return nil
}

func (c *Config) log() {
	if c.ConfigFile != "" {
		logging.Info("  Config file:          %s", c.ConfigFile)
	}
	logging.Info("  DATA_DIR:             %s", c.DataDir)
	logging.Info("  LIBRARY_DIR:          %s", c.LibraryDir)
	logging.Info("  STORE_BACKEND:        %s", c.StoreBackend)
	if c.StoreBackend == BackendSQLite {
		logging.Info("  DATABASE:             %s", c.DatabasePath)
	} else {
		logging.Info("  TAGS_FILE:            %s", c.TagsFile)
	}
	if c.IntakeDir != "" {
		logging.Info("  INTAKE_DIR:           %s", c.IntakeDir)
	} else {
		logging.Info("  INTAKE_DIR:           DISABLED")
	}
	logging.Info("  EXTENSIONS:           %s", strings.Join(c.Extensions, ", "))
	logging.Info("  QUIESCENCE:           %v", c.Quiescence)
	logging.Info("  INTAKE_QUIESCENCE:    %v", c.IntakeQuiescence)
	logging.Info("  SEARCH_DEBOUNCE:      %v", c.SearchDebounce)
	logging.Info("  PORT:                 %d", c.Port)
	logging.Info("  METRICS_ENABLED:      %v", c.MetricsEnabled)
	logging.Info("  METRICS_PORT:         %d", c.MetricsPort)
	logging.Info("  THUMBNAIL_CACHE_SIZE: %d", c.ThumbnailCacheSize)
	if c.ThumbnailWorkers > 0 {
		logging.Info("  THUMBNAIL_WORKERS:    %d", c.ThumbnailWorkers)
	} else {
		logging.Info("  THUMBNAIL_WORKERS:    auto")
	}
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())
}

// PrepareDirectories creates the data and library directories and checks
// they are writable. An intake directory that cannot be created is
// disabled with a warning.
func PrepareDirectories(c *Config) error {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(c.DataDir, "data"); err != nil {
		return fmt.Errorf("data directory error: %w", err)
	}
	if err := testWriteAccess(c.DataDir); err != nil {
		return fmt.Errorf("data directory is not writable: %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	if err := ensureDirectory(c.LibraryDir, "library"); err != nil {
		return fmt.Errorf("library directory error: %w", err)
	}
	if err := testWriteAccess(c.LibraryDir); err != nil {
		return fmt.Errorf("library directory is not writable: %w", err)
	}
	logging.Info("  [OK] Library directory is writable")

	if c.IntakeDir != "" && !setupOptionalDir(c.IntakeDir, "intake") {
		c.IntakeDir = ""
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Intake:      %s", enabledString(c.IntakeDir != ""))
	logging.Info("    Metrics:     %s", enabledString(c.MetricsEnabled))
	return nil
}

// splitList flattens comma-separated entries, as produced by
// GIFFER_EXTENSIONS=".gif,.webp".
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
