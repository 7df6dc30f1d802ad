package config

// Config is the top-level configuration carrier.
type Config struct {
	App   AppConfig   `toml:"app"`
	Data  DataConfig  `toml:"data"`
	Probe ProbeConfig `toml:"probe"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
}

// DataConfig configures the market-data client.
type DataConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
	CacheEnabled   bool   `toml:"cache_enabled"`
}

// ProbeConfig configures probe runs.
type ProbeConfig struct {
	Risk      string `toml:"risk"`       // low | medium | high
	ATRColumn string `toml:"atr_column"` // indicator column used for ATR at entry
	ATRPeriod int    `toml:"atr_period"` // fallback ATR computation period
}

const (
	defaultAppEnv       = "dev"
	defaultAppLogLevel  = "info"
	defaultAppHTTPAddr  = ":9990"
	defaultDataBaseURL  = "http://localhost:8000"
	defaultDataTimeout  = 30
	defaultDataRetries  = 3
	defaultProbeRisk    = "medium"
	defaultProbeATRCol  = "atr_14"
	defaultProbeATRSpan = 14
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}
	if c.Data.BaseURL == "" {
		c.Data.BaseURL = defaultDataBaseURL
	}
	if c.Data.TimeoutSeconds <= 0 {
		c.Data.TimeoutSeconds = defaultDataTimeout
	}
	if c.Data.MaxRetries <= 0 {
		c.Data.MaxRetries = defaultDataRetries
	}
	if c.Probe.Risk == "" {
		c.Probe.Risk = defaultProbeRisk
	}
	if c.Probe.ATRColumn == "" {
		c.Probe.ATRColumn = defaultProbeATRCol
	}
	if c.Probe.ATRPeriod <= 0 {
		c.Probe.ATRPeriod = defaultProbeATRSpan
	}
}
