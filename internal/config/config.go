package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	MT5      MT5      `mapstructure:"mt5"`
	Notion   Notion   `mapstructure:"notion"`
	Sync     Sync     `mapstructure:"sync"`
	Crypto   Crypto   `mapstructure:"crypto"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// MT5 holds the configuration for the MT5 bridge API.
type MT5 struct {
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Notion holds the configuration for the Notion API sink.
// An empty DatabaseID means the sink is not configured: mirror calls
// return an empty page id and trades stay unmirrored.
type Notion struct {
	APIKey         string  `mapstructure:"api_key"`
	DatabaseID     string  `mapstructure:"database_id"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`

	// Property names of the target Notion database. An empty name
	// drops that property from the page payload.
	TitleProp       string `mapstructure:"title_prop"`
	DirectionProp   string `mapstructure:"prop_direction"`
	OpenTimeProp    string `mapstructure:"prop_open_time"`
	CloseTimeProp   string `mapstructure:"prop_close_time"`
	ProfitProp      string `mapstructure:"prop_profit"`
	CommissionProp  string `mapstructure:"prop_commission"`
	SwapProp        string `mapstructure:"prop_swap"`
	AccountProp     string `mapstructure:"prop_account"`
	WeekdayProp     string `mapstructure:"prop_weekday"`
	SessionProp     string `mapstructure:"prop_session"`
	DateProp        string `mapstructure:"prop_date"`
	ResultProp      string `mapstructure:"prop_result"`
	RiskRewardProp  string `mapstructure:"prop_risk_reward"`
	RiskPercentProp string `mapstructure:"prop_risk_percent"`
}

// Sync holds the classifier thresholds and account reference values.
type Sync struct {
	StartBalance        float64 `mapstructure:"start_balance"`
	BEThresholdPercent  float64 `mapstructure:"be_threshold_percent"`
	SLTolerancePercent  float64 `mapstructure:"sl_tolerance_percent"`
	ContractSize        float64 `mapstructure:"contract_size"`
	TimezoneOffsetHours int     `mapstructure:"timezone_offset_hours"`
	MirrorWorkers       int     `mapstructure:"mirror_workers"`
	AutoSyncMinutes     int     `mapstructure:"auto_sync_minutes"` // 0 disables the periodic sync loop
}

// Crypto holds the credential encryption settings.
type Crypto struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("mt5.base_url", "http://localhost:8000")
	viper.SetDefault("mt5.timeout_seconds", 60)
	viper.SetDefault("mt5.rate_limit", 5) // requests per second
	viper.SetDefault("mt5.rate_limit_burst", 2)
	viper.SetDefault("notion.rate_limit", 3) // Notion caps integrations at ~3 rps
	viper.SetDefault("notion.rate_limit_burst", 1)
	viper.SetDefault("notion.timeout_seconds", 30)
	viper.SetDefault("notion.title_prop", "Name")
	viper.SetDefault("sync.start_balance", 10000)
	viper.SetDefault("sync.be_threshold_percent", 0.15)
	viper.SetDefault("sync.sl_tolerance_percent", 10)
	viper.SetDefault("sync.contract_size", 100000)
	viper.SetDefault("sync.timezone_offset_hours", -2)
	viper.SetDefault("sync.mirror_workers", 4)
	viper.SetDefault("sync.auto_sync_minutes", 0)
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("database.dsn", "journal.db")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
