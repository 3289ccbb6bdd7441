package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Env string

const (
	EnvLocal Env = "local"
	EnvProd  Env = "prod"
)

// devAuthSecret is the public fallback for AUTH_HMAC_SECRET; anyone can forge
// tokens with it, so Validate refuses it in production.
const devAuthSecret = "supersecret-dev-key"

type Config struct {
	Env       Env
	HTTPAddr  string
	PublicURL string // base for pagination links, e.g. https://api.example.com

	DBDriver string
	DBDSN    string

	BlobDriver   string // fs|minio
	BlobBasePath string // for fs
	S3           S3Config

	AuthSecret         string
	TokenTTL           time.Duration
	TokenSweepInterval time.Duration

	PhotoMaxMB int64

	LogLevel       string
	CORSOrigins    []string
	MetricsEnabled bool
}

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

func FromEnv() Config {
	env := Env(envOr("ENV", string(EnvLocal)))
	addr := envOr("HTTP_ADDR", ":3000")
	return Config{
		Env:          env,
		HTTPAddr:     addr,
		PublicURL:    strings.TrimSuffix(envOr("PUBLIC_URL", "http://localhost"+addr), "/"),
		DBDriver:     envOr("DB_DRIVER", "sqlite"),
		DBDSN:        envOr("DB_DSN", ""),
		BlobDriver:   envOr("BLOB_DRIVER", "fs"),
		BlobBasePath: envOr("BLOB_BASE_PATH", "./data"),
		S3: S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          envOr("S3_REGION", "us-east-1"),
			Bucket:          envOr("S3_BUCKET", "photos"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		AuthSecret:         envOr("AUTH_HMAC_SECRET", devAuthSecret),
		TokenTTL:           envDuration("TOKEN_TTL", 5*time.Minute),
		TokenSweepInterval: envDuration("TOKEN_SWEEP_INTERVAL", time.Minute),
		PhotoMaxMB:         int64(envInt("PHOTO_MAX_MB", 5)),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		CORSOrigins:        csvOr("CORS_ORIGINS", "http://localhost:3000"),
		MetricsEnabled:     envBool("METRICS_ENABLED", true),
	}
}

// Validate rejects settings that are only acceptable outside production.
func (c Config) Validate() error {
	if c.Env == EnvProd && c.AuthSecret == devAuthSecret {
		return errors.New("config: AUTH_HMAC_SECRET must be set in prod")
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// envDuration accepts Go durations ("5m") or plain seconds ("300").
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
