package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/db"
	"github.com/rpattn/portfolio-ingest/internal/ingestion"
	"github.com/rpattn/portfolio-ingest/internal/kpi"
	"github.com/rpattn/portfolio-ingest/pkg/validator"

	"github.com/spf13/viper"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
	AllowedOrigins []string
}

// RedisConfig configures the optional KPI cache.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// IngestionConfig tunes workbook parsing and KPI aggregation.
type IngestionConfig struct {
	SheetNames     []string
	HeaderScanRows int
	MonthFirst     bool
	Priorities     []string
	MaxRows        int
	UnzipSizeLimit int64
	DueSoonDays    int
	TopDepartments int
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string
	Development bool
}

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig
	Database  db.Config
	Redis     RedisConfig
	Ingestion IngestionConfig
	Log       LogConfig
}

// ParserOptions converts the ingestion section into parser options.
func (c IngestionConfig) ParserOptions() ingestion.Options {
	return ingestion.Options{
		SheetNames:     c.SheetNames,
		HeaderScanRows: c.HeaderScanRows,
		MonthFirst:     c.MonthFirst,
		Priorities:     c.Priorities,
		MaxRows:        c.MaxRows,
		UnzipSizeLimit: c.UnzipSizeLimit,
		Validator:      validator.NewRecordValidator().RowValidator(),
	}
}

// KPIOptions converts the ingestion section into aggregation options.
func (c IngestionConfig) KPIOptions() kpi.Options {
	return kpi.Options{DueSoonDays: c.DueSoonDays, TopDepartments: c.TopDepartments}
}

// Load reads config.yaml from configPath (when present) and applies
// PMI_-prefixed environment overrides, e.g. PMI_DATABASE_HOST.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix("PMI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			MaxUploadBytes: v.GetInt64("server.max_upload_bytes"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
		Database: db.Config{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
			MaxConns: v.GetInt32("database.max_conns"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		Ingestion: IngestionConfig{
			SheetNames:     v.GetStringSlice("ingestion.sheet_names"),
			HeaderScanRows: v.GetInt("ingestion.header_scan_rows"),
			MonthFirst:     v.GetBool("ingestion.month_first"),
			Priorities:     v.GetStringSlice("ingestion.priorities"),
			MaxRows:        v.GetInt("ingestion.max_rows"),
			UnzipSizeLimit: v.GetInt64("ingestion.unzip_size_limit"),
			DueSoonDays:    v.GetInt("ingestion.due_soon_days"),
			TopDepartments: v.GetInt("ingestion.top_departments"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
	}

	if cfg.Server.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("server.max_upload_bytes must be positive, got %d", cfg.Server.MaxUploadBytes)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()
	parser := ingestion.DefaultOptions()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_bytes", 20<<20)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("ingestion.sheet_names", parser.SheetNames)
	v.SetDefault("ingestion.header_scan_rows", parser.HeaderScanRows)
	v.SetDefault("ingestion.month_first", parser.MonthFirst)
	v.SetDefault("ingestion.priorities", parser.Priorities)
	v.SetDefault("ingestion.max_rows", parser.MaxRows)
	v.SetDefault("ingestion.unzip_size_limit", 256<<20)
	v.SetDefault("ingestion.due_soon_days", kpi.DefaultDueSoonDays)
	v.SetDefault("ingestion.top_departments", kpi.DefaultTopDepartments)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
