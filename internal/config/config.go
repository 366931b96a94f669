package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Pipeline   PipelineConfig   `yaml:"pipeline" envconfig:"PIPELINE"`
	EventStudy EventStudyConfig `yaml:"event_study" envconfig:"EVENT_STUDY"`
	MarketData MarketDataConfig `yaml:"market_data" envconfig:"MARKET_DATA"`
	Sheets     SheetsConfig     `yaml:"sheets" envconfig:"SHEETS"`
}

// ServerConfig contains HTTP server configuration for the results API
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"100"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	BaseDir string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	RunsDir string `yaml:"runs_dir" envconfig:"RUNS_DIR" default:"runs"`
	LogsDir string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// PipelineConfig controls pipeline-wide behavior
type PipelineConfig struct {
	MaxConcurrency        int           `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" default:"4" validate:"gte=1,lte=64"`
	StageTimeout          time.Duration `yaml:"stage_timeout" envconfig:"STAGE_TIMEOUT" default:"30m"`
	WinsorizeLower        float64       `yaml:"winsorize_lower" envconfig:"WINSORIZE_LOWER" default:"0.01" validate:"gte=0,lte=1"`
	WinsorizeUpper        float64       `yaml:"winsorize_upper" envconfig:"WINSORIZE_UPPER" default:"0.99" validate:"gte=0,lte=1"`
	TurnoverWindowDays    int           `yaml:"turnover_window_days" envconfig:"TURNOVER_WINDOW_DAYS" default:"365" validate:"gte=1"`
	EnforcementWindowDays int           `yaml:"enforcement_window_days" envconfig:"ENFORCEMENT_WINDOW_DAYS" default:"730" validate:"gte=1"`

	// ProgressURL, when set, is the results server base URL that stage
	// progress events are posted to for live WebSocket streaming.
	ProgressURL string `yaml:"progress_url" envconfig:"PROGRESS_URL"`
}

// EventStudyConfig holds market-model estimation parameters
type EventStudyConfig struct {
	EstimationDays int `yaml:"estimation_days" envconfig:"ESTIMATION_DAYS" default:"120" validate:"gte=30"`
	EstimationGap  int `yaml:"estimation_gap" envconfig:"ESTIMATION_GAP" default:"6" validate:"gte=0"`
	MinObs         int `yaml:"min_obs" envconfig:"MIN_OBS" default:"60" validate:"gte=10"`
}

// MarketDataConfig configures the daily quote fetcher
type MarketDataConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://data.example.com/v1"`
	APIKey         string        `yaml:"api_key" envconfig:"API_KEY"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"30s"`
	RatePerSecond  float64       `yaml:"rate_per_second" envconfig:"RATE_PER_SECOND" default:"5" validate:"gt=0"`
	RateBurst      int           `yaml:"rate_burst" envconfig:"RATE_BURST" default:"5" validate:"gte=1"`
}

// SheetsConfig configures the optional Google Sheets upload of headline tables
type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE" default:"credentials.json"`
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
}

// Load loads configuration from environment variables and an optional YAML file.
// Environment variables (BRS_ prefix) take precedence over file values.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("BRS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs overlays file values onto the env-processed config.
// Precedence is env var > file > struct-tag default: envconfig has already
// filled defaults for unset vars, so a file value applies whenever its env
// var was not explicitly set and the file actually provided the field.
func mergeConfigs(fileConfig, envConfig Config) Config {
	merged := envConfig

	overlayInt(&merged.Server.Port, fileConfig.Server.Port, "BRS_SERVER_PORT")
	overlayDuration(&merged.Server.ReadTimeout, fileConfig.Server.ReadTimeout, "BRS_SERVER_READ_TIMEOUT")
	overlayDuration(&merged.Server.WriteTimeout, fileConfig.Server.WriteTimeout, "BRS_SERVER_WRITE_TIMEOUT")
	overlayDuration(&merged.Server.IdleTimeout, fileConfig.Server.IdleTimeout, "BRS_SERVER_IDLE_TIMEOUT")
	overlayDuration(&merged.Server.ShutdownTimeout, fileConfig.Server.ShutdownTimeout, "BRS_SERVER_SHUTDOWN_TIMEOUT")
	overlayFloat(&merged.Server.RateLimitRPS, fileConfig.Server.RateLimitRPS, "BRS_SERVER_RATE_LIMIT_RPS")
	overlayInt(&merged.Server.RateLimitBurst, fileConfig.Server.RateLimitBurst, "BRS_SERVER_RATE_LIMIT_BURST")

	overlayString(&merged.Logging.Level, fileConfig.Logging.Level, "BRS_LOGGING_LEVEL")
	overlayString(&merged.Logging.Format, fileConfig.Logging.Format, "BRS_LOGGING_FORMAT")
	overlayString(&merged.Logging.Output, fileConfig.Logging.Output, "BRS_LOGGING_OUTPUT")
	overlayString(&merged.Logging.FilePath, fileConfig.Logging.FilePath, "BRS_LOGGING_FILE_PATH")

	overlayString(&merged.Paths.BaseDir, fileConfig.Paths.BaseDir, "BRS_PATHS_BASE_DIR")
	overlayString(&merged.Paths.DataDir, fileConfig.Paths.DataDir, "BRS_PATHS_DATA_DIR")
	overlayString(&merged.Paths.RunsDir, fileConfig.Paths.RunsDir, "BRS_PATHS_RUNS_DIR")
	overlayString(&merged.Paths.LogsDir, fileConfig.Paths.LogsDir, "BRS_PATHS_LOGS_DIR")

	overlayInt(&merged.Pipeline.MaxConcurrency, fileConfig.Pipeline.MaxConcurrency, "BRS_PIPELINE_MAX_CONCURRENCY")
	overlayDuration(&merged.Pipeline.StageTimeout, fileConfig.Pipeline.StageTimeout, "BRS_PIPELINE_STAGE_TIMEOUT")
	overlayFloat(&merged.Pipeline.WinsorizeLower, fileConfig.Pipeline.WinsorizeLower, "BRS_PIPELINE_WINSORIZE_LOWER")
	overlayFloat(&merged.Pipeline.WinsorizeUpper, fileConfig.Pipeline.WinsorizeUpper, "BRS_PIPELINE_WINSORIZE_UPPER")
	overlayInt(&merged.Pipeline.TurnoverWindowDays, fileConfig.Pipeline.TurnoverWindowDays, "BRS_PIPELINE_TURNOVER_WINDOW_DAYS")
	overlayInt(&merged.Pipeline.EnforcementWindowDays, fileConfig.Pipeline.EnforcementWindowDays, "BRS_PIPELINE_ENFORCEMENT_WINDOW_DAYS")
	overlayString(&merged.Pipeline.ProgressURL, fileConfig.Pipeline.ProgressURL, "BRS_PIPELINE_PROGRESS_URL")

	overlayInt(&merged.EventStudy.EstimationDays, fileConfig.EventStudy.EstimationDays, "BRS_EVENT_STUDY_ESTIMATION_DAYS")
	overlayInt(&merged.EventStudy.EstimationGap, fileConfig.EventStudy.EstimationGap, "BRS_EVENT_STUDY_ESTIMATION_GAP")
	overlayInt(&merged.EventStudy.MinObs, fileConfig.EventStudy.MinObs, "BRS_EVENT_STUDY_MIN_OBS")

	overlayString(&merged.MarketData.BaseURL, fileConfig.MarketData.BaseURL, "BRS_MARKET_DATA_BASE_URL")
	overlayString(&merged.MarketData.APIKey, fileConfig.MarketData.APIKey, "BRS_MARKET_DATA_API_KEY")
	overlayDuration(&merged.MarketData.RequestTimeout, fileConfig.MarketData.RequestTimeout, "BRS_MARKET_DATA_REQUEST_TIMEOUT")
	overlayFloat(&merged.MarketData.RatePerSecond, fileConfig.MarketData.RatePerSecond, "BRS_MARKET_DATA_RATE_PER_SECOND")
	overlayInt(&merged.MarketData.RateBurst, fileConfig.MarketData.RateBurst, "BRS_MARKET_DATA_RATE_BURST")

	if fileConfig.Sheets.Enabled && !envSet("BRS_SHEETS_ENABLED") {
		merged.Sheets.Enabled = true
	}
	overlayString(&merged.Sheets.CredentialsFile, fileConfig.Sheets.CredentialsFile, "BRS_SHEETS_CREDENTIALS_FILE")
	overlayString(&merged.Sheets.SpreadsheetID, fileConfig.Sheets.SpreadsheetID, "BRS_SHEETS_SPREADSHEET_ID")

	return merged
}

func envSet(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

func overlayString(dst *string, fileVal, envVar string) {
	if fileVal != "" && !envSet(envVar) {
		*dst = fileVal
	}
}

func overlayInt(dst *int, fileVal int, envVar string) {
	if fileVal != 0 && !envSet(envVar) {
		*dst = fileVal
	}
}

func overlayFloat(dst *float64, fileVal float64, envVar string) {
	if fileVal != 0 && !envSet(envVar) {
		*dst = fileVal
	}
}

func overlayDuration(dst *time.Duration, fileVal time.Duration, envVar string) {
	if fileVal != 0 && !envSet(envVar) {
		*dst = fileVal
	}
}

// getConfigFilePath returns the config file location, overridable via env
func getConfigFilePath() string {
	if path := os.Getenv("BRS_CONFIG_FILE"); path != "" {
		return path
	}
	return "config.yaml"
}

// Validate checks configuration consistency beyond struct tags
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	if c.Pipeline.WinsorizeLower >= c.Pipeline.WinsorizeUpper {
		return fmt.Errorf("winsorize bounds inverted: lower=%.3f upper=%.3f",
			c.Pipeline.WinsorizeLower, c.Pipeline.WinsorizeUpper)
	}
	if c.EventStudy.MinObs > c.EventStudy.EstimationDays {
		return fmt.Errorf("event study min_obs %d exceeds estimation window %d",
			c.EventStudy.MinObs, c.EventStudy.EstimationDays)
	}
	if c.Sheets.Enabled && c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("sheets upload enabled but spreadsheet_id is empty")
	}

	return nil
}
