// Package config resolves service configuration from defaults, environment
// variables, an optional YAML file and command-line flags, in that order of
// increasing precedence.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Backend names for the revocation store and the rate-limit counters.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all service configuration.
type Config struct {
	Port        string `koanf:"port"`
	PostgresDSN string `koanf:"postgres-dsn"`
	AutoMigrate bool   `koanf:"auto-migrate"`

	MongoURI string `koanf:"mongo-uri"`
	MongoDB  string `koanf:"mongo-db"`

	RedisAddr     string `koanf:"redis-addr"`
	RedisPassword string `koanf:"redis-password"`

	MinioEndpoint  string `koanf:"minio-endpoint"`
	MinioAccessKey string `koanf:"minio-access-key"`
	MinioSecretKey string `koanf:"minio-secret-key"`
	MinioBucket    string `koanf:"minio-bucket"`
	MinioUseSSL    bool   `koanf:"minio-use-ssl"`

	AIServiceURL string `koanf:"ai-service-url"`
	AIAPIKey     string `koanf:"ai-api-key"`
	AIModel      string `koanf:"ai-model"`

	JWTSecret         string   `koanf:"jwt-secret"`
	UniformAuthStatus bool     `koanf:"uniform-auth-status"`
	RevocationBackend string   `koanf:"revocation-backend"`
	RateLimitBackend  string   `koanf:"ratelimit-backend"`
	CORSOrigins       []string `koanf:"cors-origins"`
	TrustProxyHeaders bool     `koanf:"trust-proxy-headers"`

	LogFormat string `koanf:"log-format"`
}

// Load returns the built-in defaults overlaid with environment variables.
func Load() *Config {
	return &Config{
		Port:              getenv("PORT", "8080"),
		PostgresDSN:       getenv("POSTGRES_DSN", ""),
		AutoMigrate:       getenv("AUTO_MIGRATE", "true") == "true",
		MongoURI:          getenv("MONGO_URI", ""),
		MongoDB:           getenv("MONGO_DB", "research_hub"),
		RedisAddr:         getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		MinioEndpoint:     getenv("MINIO_ENDPOINT", "minio:9000"),
		MinioAccessKey:    getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:    getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:       getenv("MINIO_BUCKET", "research-summaries"),
		MinioUseSSL:       getenv("MINIO_USE_SSL", "false") == "true",
		AIServiceURL:      getenv("AI_SERVICE_URL", "https://api.openai.com/v1"),
		AIAPIKey:          getenv("OPENAI_API_KEY", ""),
		AIModel:           getenv("AI_MODEL", "gpt-4o-mini"),
		JWTSecret:         getenv("JWT_SECRET", ""),
		UniformAuthStatus: getenv("UNIFORM_AUTH_STATUS", "false") == "true",
		RevocationBackend: getenv("REVOCATION_BACKEND", BackendMemory),
		RateLimitBackend:  getenv("RATELIMIT_BACKEND", BackendMemory),
		CORSOrigins:       splitList(getenv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		TrustProxyHeaders: getenv("TRUST_PROXY_HEADERS", "false") == "true",
		LogFormat:         getenv("LOG_FORMAT", "json"),
	}
}

// BindFlags registers one flag per setting on fs, using d for the defaults.
func BindFlags(fs *pflag.FlagSet, d *Config) {
	fs.String("port", d.Port, "HTTP listen port")
	fs.String("postgres-dsn", d.PostgresDSN, "PostgreSQL connection string")
	fs.Bool("auto-migrate", d.AutoMigrate, "apply pending schema migrations on startup")
	fs.String("mongo-uri", d.MongoURI, "MongoDB connection URI")
	fs.String("mongo-db", d.MongoDB, "MongoDB database name")
	fs.String("redis-addr", d.RedisAddr, "Redis address")
	fs.String("redis-password", d.RedisPassword, "Redis password")
	fs.String("minio-endpoint", d.MinioEndpoint, "MinIO endpoint")
	fs.String("minio-access-key", d.MinioAccessKey, "MinIO access key")
	fs.String("minio-secret-key", d.MinioSecretKey, "MinIO secret key")
	fs.String("minio-bucket", d.MinioBucket, "bucket for archived AI summaries")
	fs.Bool("minio-use-ssl", d.MinioUseSSL, "use TLS for MinIO")
	fs.String("ai-service-url", d.AIServiceURL, "base URL of the OpenAI-compatible API")
	fs.String("ai-api-key", d.AIAPIKey, "API key for the AI service")
	fs.String("ai-model", d.AIModel, "chat model used for summaries")
	fs.String("jwt-secret", d.JWTSecret, "HMAC secret for signing access tokens")
	fs.Bool("uniform-auth-status", d.UniformAuthStatus, "answer every auth failure with 401")
	fs.String("revocation-backend", d.RevocationBackend, "token revocation store: memory or redis")
	fs.String("ratelimit-backend", d.RateLimitBackend, "rate-limit counters: memory or redis")
	fs.StringSlice("cors-origins", d.CORSOrigins, "allowed CORS origins")
	fs.Bool("trust-proxy-headers", d.TrustProxyHeaders, "take the client address from X-Forwarded-For / X-Real-IP (only behind a trusted proxy)")
	fs.String("log-format", d.LogFormat, "log format: json or text")
}

// Resolve layers the YAML file at path (optional) and the flags in fs over
// the defaults the flags were bound with, then validates the result.
func Resolve(fs *pflag.FlagSet, path string) (*Config, error) {
	cfg, err := Decode(fs, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode is Resolve without validation, for commands that need only part
// of the configuration.
func Decode(fs *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	errb := oops.Code("CONFIG_INVALID")
	if c.JWTSecret == "" {
		return errb.Errorf("jwt-secret is required")
	}
	if c.PostgresDSN == "" {
		return errb.Errorf("postgres-dsn is required")
	}
	if c.MongoURI == "" {
		return errb.Errorf("mongo-uri is required")
	}
	if !validBackend(c.RevocationBackend) {
		return errb.With("value", c.RevocationBackend).Errorf("revocation-backend must be memory or redis")
	}
	if !validBackend(c.RateLimitBackend) {
		return errb.With("value", c.RateLimitBackend).Errorf("ratelimit-backend must be memory or redis")
	}
	if c.UsesRedis() && c.RedisAddr == "" {
		return errb.Errorf("redis-addr is required for the redis backend")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return errb.With("value", c.LogFormat).Errorf("log-format must be json or text")
	}
	return nil
}

// UsesRedis reports whether any component is configured to use Redis.
func (c *Config) UsesRedis() bool {
	return c.RevocationBackend == BackendRedis || c.RateLimitBackend == BackendRedis
}

func validBackend(name string) bool {
	return name == BackendMemory || name == BackendRedis
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
