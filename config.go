package omnifolio

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment
// variables.
type Config struct {
	DatabaseURL     string
	TradesPath      string
	DividendsPath   string
	CostBasisMethod CostBasisMethod
	Buckets         string // "account" or "global"
	RevisionWindow  int
	LogLevel        slog.Level
}

// LoadConfig reads configuration from environment variables with sensible
// defaults.
func LoadConfig() Config {
	return Config{
		DatabaseURL:     envOrDefaultWarn("OMNIFOLIO_DATABASE_URL", ""),
		TradesPath:      envOrDefault("OMNIFOLIO_TRADES", "trades.csv"),
		DividendsPath:   envOrDefault("OMNIFOLIO_DIVIDENDS", "stock_dividends.csv"),
		CostBasisMethod: envOrDefaultMethod("OMNIFOLIO_COST_BASIS", AverageCost),
		Buckets:         envOrDefault("OMNIFOLIO_BUCKETS", "account"),
		RevisionWindow:  envOrDefaultInt("OMNIFOLIO_REVISION_WINDOW", 4),
		LogLevel:        envOrDefaultLevel("OMNIFOLIO_LOG_LEVEL", slog.LevelInfo),
	}
}

// Bucket returns the grouping function named by the configuration.
func (c Config) Bucket() BucketFunc {
	if strings.EqualFold(c.Buckets, "global") {
		return BucketGlobal
	}
	return BucketByAccount
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultMethod(key string, defaultVal CostBasisMethod) CostBasisMethod {
	if v := os.Getenv(key); v != "" {
		m, err := ParseCostBasisMethod(v)
		if err != nil {
			slog.Warn("invalid cost basis method env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return m
	}
	return defaultVal
}

func envOrDefaultLevel(key string, defaultVal slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			slog.Warn("invalid log level env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return level
	}
	return defaultVal
}
