package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	AppURL      string
	SwaggerHost string
	CORSOrigins []string

	DBDriver  string
	MySQLDSN  string
	SQLiteDSN string

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret string
	TokenTTL  time.Duration

	// AuthRateLimit is the per-IP budget of /register and /login per minute. 0 disables it.
	AuthRateLimit int

	StorageDriver  string
	StorageDir     string
	AWSS3Bucket    string
	AWSS3Region    string
	AWSAccessKey   string
	AWSSecretKey   string
	AWSS3PublicURL string

	FCMEnabled     bool
	FCMCredentials string

	// AdminOnlyListings restricts /foods/all and /foods/stats to admins.
	AdminOnlyListings bool

	ExpireAfter         time.Duration
	ExpirySweepInterval time.Duration

	LogLevel  string
	LogFormat string
}

// Load builds Config from environment with sensible defaults. A .env file in the
// working directory is read first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
		SwaggerHost: os.Getenv("SWAGGER_HOST"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		DBDriver:  getEnv("DB_DRIVER", "mysql"),
		MySQLDSN:  getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/rescue?charset=utf8mb4&parseTime=True&loc=Local"),
		SQLiteDSN: getEnv("SQLITE_DSN", "rescue.db"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		RedisPass: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 30*24*time.Hour),

		AuthRateLimit: getEnvInt("AUTH_RATE_LIMIT", 60),

		StorageDriver:  getEnv("STORAGE_DRIVER", "local"),
		StorageDir:     getEnv("STORAGE_DIR", "./storage/app/public"),
		AWSS3Bucket:    os.Getenv("AWS_S3_BUCKET"),
		AWSS3Region:    getEnv("AWS_S3_REGION", "ap-southeast-1"),
		AWSAccessKey:   os.Getenv("AWS_ACCESS_KEY"),
		AWSSecretKey:   os.Getenv("AWS_SECRET_KEY"),
		AWSS3PublicURL: os.Getenv("AWS_S3_PUBLIC_URL"),

		FCMEnabled:        getEnvBool("FCM_ENABLED", false),
		FCMCredentials:    os.Getenv("FCM_CREDENTIALS_FILE"),
		AdminOnlyListings: getEnvBool("ADMIN_ONLY_LISTINGS", false),

		ExpireAfter:         getEnvDuration("EXPIRE_AFTER", 0),
		ExpirySweepInterval: getEnvDuration("EXPIRY_SWEEP_INTERVAL", 10*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// StoragePublicURL is the base URL under which locally stored blobs are served.
func (c *Config) StoragePublicURL() string {
	return c.AppURL + "/storage"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
