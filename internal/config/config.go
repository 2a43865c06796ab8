package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Endpoints EndpointsConfig `yaml:"endpoints" mapstructure:"endpoints"`
	RapidAPI  RapidAPIConfig  `yaml:"rapidapi" mapstructure:"rapidapi"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Qibla     QiblaConfig     `yaml:"qibla" mapstructure:"qibla"`
	Facts     FactsConfig     `yaml:"facts" mapstructure:"facts"`
	Hadith    HadithConfig    `yaml:"hadith" mapstructure:"hadith"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// EndpointsConfig holds the base URLs of every upstream source.
type EndpointsConfig struct {
	Quran      string `yaml:"quran" mapstructure:"quran"`
	MyIslam    string `yaml:"myislam" mapstructure:"myislam"`
	AllahNames string `yaml:"allah_names" mapstructure:"allah_names"`
	IslamCity  string `yaml:"islam_city" mapstructure:"islam_city"`
	Aladhan    string `yaml:"aladhan" mapstructure:"aladhan"`
	Hadith     string `yaml:"hadith" mapstructure:"hadith"`
	IslamFacts string `yaml:"islam_facts" mapstructure:"islam_facts"`
}

// RapidAPIConfig holds the surah API credentials.
type RapidAPIConfig struct {
	Key  string `yaml:"key" mapstructure:"key"`
	Host string `yaml:"host" mapstructure:"host"`
}

// Headers returns the RapidAPI request headers, or nil when no key is set.
func (c RapidAPIConfig) Headers() map[string]string {
	if c.Key == "" {
		return nil
	}
	return map[string]string{
		"X-RapidAPI-Key":  c.Key,
		"X-RapidAPI-Host": c.Host,
	}
}

// FetchConfig configures the shared HTTP fetcher.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxInFlight       int     `yaml:"max_in_flight" mapstructure:"max_in_flight"`
	DNSTTLSecs        int     `yaml:"dns_ttl_secs" mapstructure:"dns_ttl_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	VerifyTLS         bool    `yaml:"verify_tls" mapstructure:"verify_tls"`
	// BreakerThreshold is the consecutive transient failures that stop
	// calls to a host. Zero disables the breakers.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Timeout returns the whole-request timeout.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// BreakerCooldown returns how long an open host refuses requests.
func (c FetchConfig) BreakerCooldown() time.Duration {
	return time.Duration(c.BreakerCooldownSecs) * time.Second
}

// DNSTTL returns how long resolved addresses are reused.
func (c FetchConfig) DNSTTL() time.Duration {
	return time.Duration(c.DNSTTLSecs) * time.Second
}

// GeocodeConfig configures country geocoding.
type GeocodeConfig struct {
	GoogleKey         string  `yaml:"google_key" mapstructure:"google_key"`
	NominatimURL      string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	CacheTTLHours     int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	DefaultLatitude   float64 `yaml:"default_latitude" mapstructure:"default_latitude"`
	DefaultLongitude  float64 `yaml:"default_longitude" mapstructure:"default_longitude"`
}

// QiblaConfig configures the qibla extraction.
type QiblaConfig struct {
	PDFPath        string  `yaml:"pdf_path" mapstructure:"pdf_path"`
	PdfToTextPath  string  `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	DefaultBearing float64 `yaml:"default_bearing" mapstructure:"default_bearing"`
}

// FactsConfig bounds fact accumulation.
type FactsConfig struct {
	TargetSize    int `yaml:"target_size" mapstructure:"target_size"`
	MaxIdleRounds int `yaml:"max_idle_rounds" mapstructure:"max_idle_rounds"`
	BatchSize     int `yaml:"batch_size" mapstructure:"batch_size"`
}

// HadithConfig selects the collection language.
type HadithConfig struct {
	Language string `yaml:"language" mapstructure:"language"`
}

// PipelineConfig configures the worker pool.
type PipelineConfig struct {
	// Workers of 0 means half the logical CPUs.
	Workers        int `yaml:"workers" mapstructure:"workers"`
	RetryAttempts  int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// StoreConfig configures the record store and run ledger.
type StoreConfig struct {
	Root       string `yaml:"root" mapstructure:"root"`
	LedgerPath string `yaml:"ledger_path" mapstructure:"ledger_path"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const ledgerFile = "runs.db"

// Load reads configuration from ./config.yaml (optional) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. Unlike ./config.yaml, an
// explicit file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("ISLAMIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("endpoints.quran", "https://al-quran1.p.rapidapi.com")
	v.SetDefault("endpoints.myislam", "https://myislam.org")
	v.SetDefault("endpoints.allah_names", "https://www.islamicity.org/allah-names")
	v.SetDefault("endpoints.islam_city", "https://www.islamicity.org")
	v.SetDefault("endpoints.aladhan", "https://api.aladhan.com/v1")
	v.SetDefault("endpoints.hadith", "https://cdn.jsdelivr.net/gh/fawazahmed0/hadith-api@1/editions.json")
	v.SetDefault("endpoints.islam_facts", "https://fungenerators.com/random/facts/religion/islam")
	v.SetDefault("rapidapi.key", "")
	v.SetDefault("rapidapi.host", "al-quran1.p.rapidapi.com")
	v.SetDefault("fetch.user_agent", "islamic-data/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_in_flight", 16)
	v.SetDefault("fetch.dns_ttl_secs", 300)
	v.SetDefault("fetch.requests_per_second", 10)
	v.SetDefault("fetch.burst", 10)
	v.SetDefault("fetch.verify_tls", false)
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_cooldown_secs", 30)
	v.SetDefault("geocode.google_key", "")
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.requests_per_second", 1.0)
	v.SetDefault("geocode.cache_ttl_hours", 24)
	v.SetDefault("geocode.default_latitude", 25.4106386)
	v.SetDefault("geocode.default_longitude", 51.1846025)
	v.SetDefault("qibla.pdf_path", "assets/countries.pdf")
	v.SetDefault("qibla.pdftotext_path", "pdftotext")
	v.SetDefault("qibla.default_bearing", 68.92406695044804)
	v.SetDefault("facts.target_size", 18)
	v.SetDefault("facts.max_idle_rounds", 5)
	v.SetDefault("facts.batch_size", 1)
	v.SetDefault("hadith.language", "English")
	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.retry_attempts", 1)
	v.SetDefault("pipeline.retry_backoff_ms", 500)
	v.SetDefault("store.root", "islamic_data")
	v.SetDefault("store.ledger_path", filepath.Join("islamic_data", ledgerFile))
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// SetDataRoot moves the record store to root. A ledger left at its default
// location inside the old root moves with it.
func (c *Config) SetDataRoot(root string) {
	if c.Store.LedgerPath == filepath.Join(c.Store.Root, ledgerFile) {
		c.Store.LedgerPath = filepath.Join(root, ledgerFile)
	}
	c.Store.Root = root
}

// Validate checks the settings a command mode depends on. Modes are
// "surahs", "qibla", "facts", "serve" and "extract" (everything else the
// extract command runs).
func (c *Config) Validate(mode string) error {
	var errs []string
	if c.Pipeline.Workers < 0 {
		errs = append(errs, "pipeline.workers must be >= 0")
	}
	if c.Store.Root == "" {
		errs = append(errs, "store.root is required")
	}

	switch mode {
	case "surahs":
		if c.RapidAPI.Key == "" {
			errs = append(errs, "rapidapi.key is required")
		}
		if c.Endpoints.Quran == "" {
			errs = append(errs, "endpoints.quran is required")
		}
	case "qibla":
		if c.Qibla.PDFPath == "" {
			errs = append(errs, "qibla.pdf_path is required")
		}
		if c.Endpoints.Aladhan == "" {
			errs = append(errs, "endpoints.aladhan is required")
		}
	case "facts":
		if c.Facts.TargetSize < 1 {
			errs = append(errs, "facts.target_size must be > 0")
		}
		if c.Facts.MaxIdleRounds < 1 {
			errs = append(errs, "facts.max_idle_rounds must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "extract":
	default:
		errs = append(errs, "unknown mode "+mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
