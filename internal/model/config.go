package model

import "time"

// Config holds all runtime configuration for lineage.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Wikidata WikidataConfig `yaml:"wikidata" mapstructure:"wikidata"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Tracker  TrackerConfig  `yaml:"tracker" mapstructure:"tracker"`
	Calendar CalendarConfig `yaml:"calendar" mapstructure:"calendar"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// HTTPConfig controls outbound HTTP behavior.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS  bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`

	// Proxy settings (empty = use environment)
	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// WikidataConfig controls the API session and edit behavior.
type WikidataConfig struct {
	APIURL string `yaml:"api_url" mapstructure:"api_url"`

	// Bot-password credentials; empty means read-only
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`

	// Requests per second against the API
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`

	// MaxLag passed on write requests; MaxLagSleep is the fixed backoff
	// when the servers report lag.
	MaxLag      int           `yaml:"max_lag" mapstructure:"max_lag"`
	MaxLagSleep time.Duration `yaml:"max_lag_sleep" mapstructure:"max_lag_sleep"`

	// DryRun logs edits without sending them
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
}

// CacheConfig controls entity and lookup caching.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir        string        `yaml:"dir" mapstructure:"dir"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MemoryOnly bool          `yaml:"memory_only" mapstructure:"memory_only"`
}

// TrackerConfig controls the done/error ledger.
type TrackerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CalendarConfig controls julian/gregorian resolution.
type CalendarConfig struct {
	// CountriesFile points at the cutover table; empty uses the
	// built-in table.
	CountriesFile string `yaml:"countries_file" mapstructure:"countries_file"`
}

// OutputConfig controls reporting.
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "lineage/1.0 (https://github.com/ppiankov/lineage)",
			MaxBodyBytes: 10 * 1024 * 1024,
		},
		Wikidata: WikidataConfig{
			APIURL:      "https://www.wikidata.org/w/api.php",
			RateLimit:   1.0,
			RateBurst:   2,
			MaxLag:      5,
			MaxLagSleep: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "~/.lineage/cache",
			TTL:     24 * time.Hour,
		},
		Tracker: TrackerConfig{
			Path: "~/.lineage/status.json",
		},
	}
}
