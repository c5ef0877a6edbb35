package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Dashboard  DashboardConfig  `yaml:"dashboard" mapstructure:"dashboard"`
	MarketCap  MarketCapConfig  `yaml:"market_cap" mapstructure:"market_cap"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the PostgreSQL connection. Either DatabaseURL or the
// discrete Host/User/Password/Database settings must be present.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Host        string `yaml:"host" mapstructure:"host"`
	Port        int    `yaml:"port" mapstructure:"port"`
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
	Database    string `yaml:"database" mapstructure:"database"`
	SSLMode     string `yaml:"sslmode" mapstructure:"sslmode"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DashboardConfig configures dashboard assembly.
type DashboardConfig struct {
	// IntensityScale multiplies (scope1+scope2)/denominator.
	IntensityScale   float64 `yaml:"intensity_scale" mapstructure:"intensity_scale"`
	QueryTimeoutSecs int     `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
}

// MarketCapConfig configures market-capitalization enrichment.
type MarketCapConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	CompanyCodeCSV  string `yaml:"company_code_csv" mapstructure:"company_code_csv"`
	OverrideCSV     string `yaml:"override_csv" mapstructure:"override_csv"`
	WorkerCommand   string `yaml:"worker_command" mapstructure:"worker_command"`
	WorkerScript    string `yaml:"worker_script" mapstructure:"worker_script"`
	TimeoutMs       int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	CacheTTLMs      int64  `yaml:"cache_ttl_ms" mapstructure:"cache_ttl_ms"`
	ErrorCooldownMs int64  `yaml:"error_cooldown_ms" mapstructure:"error_cooldown_ms"`
	LookupLimit     int    `yaml:"lookup_limit" mapstructure:"lookup_limit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the background alert checker. Alerts are only
// delivered when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinLoads             int     `yaml:"min_loads" mapstructure:"min_loads"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the environment names the dashboard has
// always honored, in addition to the CARBON_ prefixed names.
var legacyEnv = map[string]string{
	"store.database_url":           "DATABASE_URL",
	"store.host":                   "PGHOST",
	"store.port":                   "PGPORT",
	"store.user":                   "PGUSER",
	"store.password":               "PGPASSWORD",
	"store.database":               "PGDATABASE",
	"store.sslmode":                "PGSSLMODE",
	"market_cap.enabled":           "MARKET_CAP_ENRICHMENT",
	"market_cap.company_code_csv":  "COMPANY_CODE_CSV_PATH",
	"market_cap.worker_command":    "MARKET_CAP_YFINANCE_PYTHON_BIN",
	"market_cap.worker_script":     "MARKET_CAP_YFINANCE_SCRIPT_PATH",
	"market_cap.timeout_ms":        "MARKET_CAP_YFINANCE_TIMEOUT_MS",
	"market_cap.cache_ttl_ms":      "MARKET_CAP_CACHE_TTL_MS",
	"market_cap.error_cooldown_ms": "MARKET_CAP_ERROR_COOLDOWN_MS",
	"market_cap.lookup_limit":      "MARKET_CAP_LOOKUP_LIMIT",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CARBON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := "CARBON_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", env)
		}
	}

	// Defaults
	v.SetDefault("store.port", 5432)
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("dashboard.intensity_scale", 1.0)
	v.SetDefault("dashboard.query_timeout_secs", 30)
	v.SetDefault("market_cap.enabled", true)
	v.SetDefault("market_cap.company_code_csv", "DB_company_code.csv")
	v.SetDefault("market_cap.worker_command", "python3")
	v.SetDefault("market_cap.worker_script", "scripts/market_cap_yfinance.py")
	v.SetDefault("market_cap.timeout_ms", 8000)
	v.SetDefault("market_cap.cache_ttl_ms", int64(24*60*60*1000))
	v.SetDefault("market_cap.error_cooldown_ms", int64(5*60*1000))
	v.SetDefault("market_cap.lookup_limit", 10000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.min_loads", 5)
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
	cfg.MarketCap.normalize()

	return &cfg, nil
}

// normalize clamps market-cap settings to usable values. Invalid numbers fall
// back to defaults rather than failing startup.
func (m *MarketCapConfig) normalize() {
	if m.TimeoutMs <= 0 {
		m.TimeoutMs = 8000
	}
	if m.TimeoutMs < 1000 {
		m.TimeoutMs = 1000
	}
	if m.CacheTTLMs < 0 {
		m.CacheTTLMs = 24 * 60 * 60 * 1000
	}
	if m.ErrorCooldownMs < 0 {
		m.ErrorCooldownMs = 5 * 60 * 1000
	}
	if m.LookupLimit < 1 {
		m.LookupLimit = 10000
	}
	m.WorkerCommand = strings.TrimSpace(m.WorkerCommand)
	if m.WorkerCommand == "" {
		m.WorkerCommand = "python3"
	}
	m.WorkerScript = strings.TrimSpace(m.WorkerScript)
	m.CompanyCodeCSV = strings.TrimSpace(m.CompanyCodeCSV)
	m.OverrideCSV = strings.TrimSpace(m.OverrideCSV)
}

// HasDatabase reports whether enough settings exist to open a connection.
func (s StoreConfig) HasDatabase() bool {
	if s.DatabaseURL != "" {
		return true
	}
	return s.Host != "" && s.User != "" && s.Password != "" && s.Database != ""
}

// Validate checks the settings a command needs before it starts.
func (c *Config) Validate(command string) error {
	var problems []string
	switch command {
	case "serve", "dashboard", "probe", "marketcap":
		if !c.Store.HasDatabase() {
			problems = append(problems, "store.database_url or store.host/user/password/database is required")
		}
	}
	if command == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Dashboard.IntensityScale <= 0 {
		problems = append(problems, "dashboard.intensity_scale must be positive")
	}
	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy with credentials masked, for display.
func (c Config) Redacted() Config {
	if c.Store.Password != "" {
		c.Store.Password = "****"
	}
	if c.Store.DatabaseURL != "" {
		c.Store.DatabaseURL = redactURL(c.Store.DatabaseURL)
	}
	if c.Monitoring.WebhookURL != "" {
		c.Monitoring.WebhookURL = "****"
	}
	return c
}

func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	creds := raw[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return raw[:scheme+3] + creds[:colon] + ":****" + raw[at:]
	}
	return raw
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
