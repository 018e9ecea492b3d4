package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr     string
	LogLevel string

	RedisAddr      string
	CacheEnabled   bool
	CacheTTL       time.Duration
	CacheOpTimeout time.Duration

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string

	Invalidation InvalidationCfg

	// Extent merge knobs.
	PointTolerance   float64
	RectangleEpsilon float64

	// Selection knobs.
	CompositeExts []string
	DefaultPolicy string
	DefaultSeed   int64

	MaxBodyBytes int64
}

func FromEnv() Config {
	return Config{
		Addr:     getenv("ADDR", ":8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		CacheEnabled:   getbool("CACHE_ENABLED", false),
		CacheTTL:       getduration("CACHE_TTL", 10*time.Minute),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "catalog-updates"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "extent-invalidator"),
		},

		PointTolerance:   getfloat("EXTENT_POINT_TOLERANCE", 1e-6),
		RectangleEpsilon: getfloat("EXTENT_RECT_EPSILON", 1e-10),

		CompositeExts: splitCSV(getenv("SELECT_COMPOSITE_EXTS", "shp,shx,dbf,prj,cpg,sbn,sbx")),
		DefaultPolicy: getenv("SELECT_POLICY", "ordered"),
		DefaultSeed:   getint64("SELECT_SEED", 42),

		MaxBodyBytes: getint64("MAX_BODY_BYTES", 16<<20),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
