package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr      string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	JWTSecret     string
	JWTIssuer     string

	GeocoderBaseURL string
	GeocoderTimeout time.Duration

	ProfileCacheTTL time.Duration
	QueryTimeout    time.Duration

	SnapshotRefreshEnabled  bool
	SnapshotRefreshInterval time.Duration
	SnapshotTTL             time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8084"),
		MongoURI:      getenv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase: getenv("MONGO_DATABASE", "flipapp"),
		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		JWTSecret:     getenv("JWT_SECRET", "dev-secret"),
		JWTIssuer:     getenv("JWT_ISSUER", "flipapp-auth"),

		GeocoderBaseURL: getenv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderTimeout: getenvDuration("GEOCODER_TIMEOUT", 5*time.Second),

		ProfileCacheTTL: getenvDuration("PROFILE_CACHE_TTL", 10*time.Minute),
		QueryTimeout:    getenvDuration("QUERY_TIMEOUT", 10*time.Second),

		SnapshotRefreshEnabled:  getenvBool("SNAPSHOT_REFRESH_ENABLED", false),
		SnapshotRefreshInterval: getenvDuration("SNAPSHOT_REFRESH_INTERVAL", time.Minute),
		SnapshotTTL:             getenvDuration("SNAPSHOT_TTL", 5*time.Minute),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
