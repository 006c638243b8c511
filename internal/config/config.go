package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	DatabaseURL string
	SeedData    bool

	JWTIssuer   string
	JWTSecret   string
	TokenTTLMin int

	LogLevel string
}

func Load() Config {
	return Config{
		AppEnv:   get("APP_ENV", "dev"),
		HTTPAddr: get("HTTP_ADDR", ":8080"),

		DatabaseURL: get("DATABASE_URL", "file:appwini.db?_pragma=foreign_keys(1)"),
		SeedData:    getBool("SEED_DATA", true),

		JWTIssuer:   get("JWT_ISSUER", "appwini"),
		JWTSecret:   get("JWT_SECRET", ""),
		TokenTTLMin: getInt("TOKEN_TTL_MIN", 60*24),

		LogLevel: get("LOG_LEVEL", "info"),
	}
}

func (c Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b
		}
	}
	return def
}
