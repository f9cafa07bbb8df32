// Package config loads the region cache service's configuration from
// the environment, in the teacher's getenv/getint/getduration idiom.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/civicgrid/regioncache/internal/regioncache"
)

// Config is the service-level configuration: HTTP listen address,
// logging, the remote dataset backend, Kafka invalidation, Redis-backed
// discovery, and the §4.4 region-cache option table (shared by the
// spatial and hash-map caches; they're still named independently for
// metrics/logging purposes).
type Config struct {
	Addr         string
	LogLevel     string
	SodaBaseURL  string
	RedisAddr    string
	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string
	Scenario     string

	Cache regioncache.Config
}

func FromEnv() Config {
	return Config{
		Addr:         getenv("ADDR", ":8090"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		SodaBaseURL:  getenv("SODA_BASE_URL", "https://data.example.gov"),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: getenv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:   getenv("KAFKA_TOPIC", "region-dataset-changed"),
		KafkaGroupID: getenv("KAFKA_GROUP_ID", "region-cache-invalidator"),
		Scenario:     getenv("SCENARIO", "baseline"),

		Cache: regioncache.Config{
			MaxEntries:           getint("CACHE_MAX_ENTRIES", 64),
			EnableDepressurize:   getbool("CACHE_ENABLE_DEPRESSURIZE", true),
			MinFreePercentage:    getint("CACHE_MIN_FREE_PERCENTAGE", 10),
			TargetFreePercentage: getint("CACHE_TARGET_FREE_PERCENTAGE", 20),
			IterationInterval:    getduration("CACHE_ITERATION_INTERVAL", 100*time.Millisecond),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
