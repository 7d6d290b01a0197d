package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEventsURL   = "https://wiki.biligame.com/sr/活动一览"
	DefaultVersionsURL = "https://wiki.biligame.com/sr/版本新增内容"
)

// WikiConfig points at the two source pages and tunes extraction.
type WikiConfig struct {
	EventsURL   string `yaml:"events_url" json:"events_url"`
	VersionsURL string `yaml:"versions_url" json:"versions_url"`

	// ExcludeCategories are dropped in addition to the built-in special and
	// permanent event categories.
	ExcludeCategories []string `yaml:"exclude_categories" json:"exclude_categories"`

	// SkipMalformedRows logs and drops rows whose time range cannot be split
	// instead of failing the whole refresh.
	SkipMalformedRows bool `yaml:"skip_malformed_rows" json:"skip_malformed_rows"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string used to refresh the
	// cached snapshot in serve mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheTTLSeconds bounds how long an on-demand snapshot is reused.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`

	// CacheDir stores ETag/Last-Modified metadata and page bodies. Empty
	// disables the disk cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// CalendarDomain is appended to event ids to form iCalendar UIDs.
	CalendarDomain string `yaml:"calendar_domain" json:"calendar_domain"`

	Wiki WikiConfig `yaml:"wiki" json:"wiki"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		LogLevel:        "info",
		RefreshCron:     "0 * * * *",
		CacheTTLSeconds: 300,
		CacheDir:        "./cache/wiki",
		CalendarDomain:  "wikical.local",
		Wiki: WikiConfig{
			EventsURL:         DefaultEventsURL,
			VersionsURL:       DefaultVersionsURL,
			ExcludeCategories: []string{},
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = d.CacheTTLSeconds
	}
	if c.CalendarDomain == "" {
		c.CalendarDomain = d.CalendarDomain
	}
	if c.Wiki.EventsURL == "" {
		c.Wiki.EventsURL = d.Wiki.EventsURL
	}
	if c.Wiki.VersionsURL == "" {
		c.Wiki.VersionsURL = d.Wiki.VersionsURL
	}
	if c.Wiki.ExcludeCategories == nil {
		c.Wiki.ExcludeCategories = []string{}
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written there with 0600
// permissions and returned. Otherwise the file is unmarshaled and
// normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether an unwritable default is fatal.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, creating
// the parent directory (0700) and leaving the file at 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".wikical-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
