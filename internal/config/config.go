package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	MinChunkSize = 1
	MaxChunkSize = 1000

	MinLookbackDays = 1
	MaxLookbackDays = 365
)

// SourceConfig holds the SQL Server connection parameters. Missing values
// are not validated upfront: a bad config surfaces as a connection failure,
// which is fatal anyway.
type SourceConfig struct {
	Server          string
	Database        string
	User            string
	Password        string
	Port            int
	ConnTimeout     time.Duration
	RequestTimeout  time.Duration
	PoolMax         int
	Encrypt         bool
	TrustServerCert bool
}

// TargetConfig holds the reporting MySQL connection parameters.
type TargetConfig struct {
	Host     string
	User     string
	Password string
	Database string
	Port     int
}

type Config struct {
	Source SourceConfig
	Target TargetConfig

	LogLevel  string
	LogFormat string

	// LookbackDays pads the checkpoint window to re-scan late-arriving events
	LookbackDays      int
	ChunkSize         int
	BackfillChunkSize int

	// DebugRefID enables the single-reference field-by-field trace when > 0
	DebugRefID int64

	// RunInterval > 0 switches cmd/etl from one-shot to loop mode
	RunInterval time.Duration

	PushgatewayURL string
}

func Load() *Config {
	_ = godotenv.Load()

	chunkSize := getEnvInt("CHUNK_SIZE", 1000)
	if chunkSize > MaxChunkSize {
		slog.Warn("CHUNK_SIZE exceeds safety limit. Clamping to maximum", "requested", chunkSize, "limit", MaxChunkSize)
		chunkSize = MaxChunkSize
	} else if chunkSize < MinChunkSize {
		chunkSize = MinChunkSize
	}

	lookback := getEnvInt("ACOLCHADO_DIAS", 50)
	if lookback > MaxLookbackDays {
		slog.Warn("ACOLCHADO_DIAS exceeds safety limit. Clamping to maximum", "requested", lookback, "limit", MaxLookbackDays)
		lookback = MaxLookbackDays
	} else if lookback < MinLookbackDays {
		lookback = MinLookbackDays
	}

	return &Config{
		Source: SourceConfig{
			Server:          getEnv("MSSQL_SERVER", "localhost"),
			Database:        getEnv("MSSQL_DB", ""),
			User:            getEnv("MSSQL_USER", ""),
			Password:        getEnv("MSSQL_PASS", ""),
			Port:            getEnvInt("MSSQL_PORT", 1433),
			ConnTimeout:     time.Duration(getEnvInt("MSSQL_CONN_TIMEOUT_MS", 30000)) * time.Millisecond,
			RequestTimeout:  time.Duration(getEnvInt("MSSQL_REQUEST_TIMEOUT_MS", 300000)) * time.Millisecond,
			PoolMax:         getEnvInt("MSSQL_POOL_MAX", 5),
			Encrypt:         getEnvBool("MSSQL_ENCRYPT", true),
			TrustServerCert: getEnvBool("MSSQL_TRUST_SERVER_CERT", true),
		},
		Target: TargetConfig{
			Host:     getEnv("MYSQL_HOST", "localhost"),
			User:     getEnv("MYSQL_USER", ""),
			Password: getEnv("MYSQL_PASS", ""),
			Database: getEnv("MYSQL_DB", ""),
			Port:     getEnvInt("MYSQL_PORT", 3306),
		},
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		LogFormat:         getEnv("LOG_FORMAT", "TEXT"),
		LookbackDays:      lookback,
		ChunkSize:         chunkSize,
		BackfillChunkSize: getEnvInt("BACKFILL_CHUNK_SIZE", 100),
		DebugRefID:        int64(getEnvInt("DEBUG_REF_ID", 0)),
		RunInterval:       time.Duration(getEnvInt("RUN_INTERVAL_MIN", 0)) * time.Minute,
		PushgatewayURL:    getEnv("PUSHGATEWAY_URL", ""),
	}
}

// DSN renders the go-mssqldb URL form of the source parameters.
func (c SourceConfig) DSN() string {
	query := url.Values{}
	query.Set("database", c.Database)
	query.Set("encrypt", strconv.FormatBool(c.Encrypt))
	query.Set("TrustServerCertificate", strconv.FormatBool(c.TrustServerCert))
	query.Set("dial timeout", strconv.Itoa(int(c.ConnTimeout.Seconds())))

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Server, c.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
