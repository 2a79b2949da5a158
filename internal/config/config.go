package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultAPIBaseURL     = "http://localhost:8000"
	defaultDBPath         = "vibetube.db"
	defaultLogPath        = "vibetube.log"
	defaultLogLevel       = "info"
	defaultPageSize       = 12
	defaultHTTPTimeoutSec = 10
	maxPageSize           = 50
)

const (
	configFolderName  = "vibetube"
	configFileName    = "config.toml"
	configPathEnvName = "XDG_CONFIG_HOME"
)

// Config holds runtime settings for the CLI app.
type Config struct {
	APIBaseURL  string
	DBPath      string
	PageSize    int
	HTTPTimeout time.Duration
	LogLevel    string
	LogPath     string
	// Source is the config file that was applied, if any.
	Source string
}

type fileConfig struct {
	APIBaseURL         *string `toml:"api_base_url"`
	DBPath             *string `toml:"db_path"`
	PageSize           *int    `toml:"page_size"`
	HTTPTimeoutSeconds *int    `toml:"http_timeout_seconds"`
	LogLevel           *string `toml:"log_level"`
	LogPath            *string `toml:"log_path"`
}

func defaults() Config {
	return Config{
		APIBaseURL:  defaultAPIBaseURL,
		DBPath:      defaultDBPath,
		PageSize:    defaultPageSize,
		HTTPTimeout: defaultHTTPTimeoutSec * time.Second,
		LogLevel:    defaultLogLevel,
		LogPath:     defaultLogPath,
	}
}

// LoadFromEnv applies defaults, then the user config file when one exists,
// then VIBETUBE_* environment overrides.
func LoadFromEnv() (Config, error) {
	path, ok, err := findConfigPath()
	if err != nil {
		return Config{}, err
	}
	if !ok {
		path = ""
	}
	return Load(path)
}

// Load is LoadFromEnv with an explicit config file. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		fileCfg, err := loadFileConfig(path)
		if err != nil {
			return Config{}, err
		}
		applyFileConfig(&cfg, fileCfg)
		cfg.Source = path
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("APIBaseURL is required")
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("APIBaseURL must be an http(s) URL: %s", c.APIBaseURL)
	}
	if c.DBPath == "" {
		return errors.New("DBPath is required")
	}
	if c.PageSize < 1 || c.PageSize > maxPageSize {
		return fmt.Errorf("PageSize must be between 1 and %d: %d", maxPageSize, c.PageSize)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTPTimeout must be positive: %s", c.HTTPTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("LogLevel must be debug, info, warn, error or off: %s", c.LogLevel)
	}
	return nil
}

func findConfigPath() (string, bool, error) {
	candidates := make([]string, 0, 2)
	if xdg := strings.TrimSpace(os.Getenv(configPathEnvName)); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, configFolderName, configFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", configFolderName, configFileName))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", false, fmt.Errorf("config path %q is a directory; expected a file", candidate)
			}
			return candidate, true, nil
		}
		if os.IsNotExist(err) {
			continue
		}
		return "", false, fmt.Errorf("read config path %q: %w", candidate, err)
	}
	return "", false, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid config file %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		unknown := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			unknown = append(unknown, key.String())
		}
		sort.Strings(unknown)
		return fileConfig{}, fmt.Errorf("invalid config file %q: unknown key(s): %s", path, strings.Join(unknown, ", "))
	}
	if cfg.DBPath != nil && strings.TrimSpace(*cfg.DBPath) == "" {
		return fileConfig{}, fmt.Errorf("invalid config file %q: db_path must be non-empty when provided", path)
	}
	return cfg, nil
}

func applyFileConfig(cfg *Config, fileCfg fileConfig) {
	if fileCfg.APIBaseURL != nil {
		cfg.APIBaseURL = *fileCfg.APIBaseURL
	}
	if fileCfg.DBPath != nil {
		cfg.DBPath = *fileCfg.DBPath
	}
	if fileCfg.PageSize != nil {
		cfg.PageSize = *fileCfg.PageSize
	}
	if fileCfg.HTTPTimeoutSeconds != nil {
		cfg.HTTPTimeout = time.Duration(*fileCfg.HTTPTimeoutSeconds) * time.Second
	}
	if fileCfg.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(*fileCfg.LogLevel)
	}
	if fileCfg.LogPath != nil {
		cfg.LogPath = *fileCfg.LogPath
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("VIBETUBE_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("VIBETUBE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("VIBETUBE_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VIBETUBE_PAGE_SIZE must be an integer: %s", v)
		}
		cfg.PageSize = n
	}
	if v := os.Getenv("VIBETUBE_HTTP_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VIBETUBE_HTTP_TIMEOUT_SECONDS must be an integer: %s", v)
		}
		cfg.HTTPTimeout = time.Duration(n) * time.Second
	}
	if v := os.Getenv("VIBETUBE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv("VIBETUBE_LOG_PATH"); ok {
		cfg.LogPath = v
	}
	return nil
}
