package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSessionSecret 只用于本地开发，生产环境必须设置 SESSION_SECRET
const DefaultSessionSecret = "secret_key_change_me"

// ErrDefaultSessionSecret 生产环境仍在使用默认 session 密钥
var ErrDefaultSessionSecret = errors.New("SESSION_SECRET must be set in production")

type Config struct {
	Env           string
	Port          string
	SiteURL       string
	SessionSecret string
	CloudinaryURL string
	DB            DBConfig
	Redis         RedisConfig
	Google        GoogleConfig

	// DotEnvLoaded 为 false 时说明没有 .env 文件，全部来自系统环境变量
	DotEnvLoaded bool
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

// RedisConfig Addr 为空时使用进程内 LRU 缓存
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	loaded := godotenv.Load() == nil

	return Config{
		Env:           getString("ENV", "development"),
		Port:          getString("PORT", "8080"),
		SiteURL:       getString("SITE_URL", "http://localhost:8080"),
		SessionSecret: getString("SESSION_SECRET", DefaultSessionSecret),
		CloudinaryURL: os.Getenv("CLOUDINARY_URL"),
		DB: DBConfig{
			DSN:          getString("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=localeloop port=5432 sslmode=disable"),
			MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 30),
			MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 30),
			MaxIdleTime:  getDuration("DB_MAX_IDLE_TIME", 15*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
		DotEnvLoaded: loaded,
	}
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesDefaultSessionSecret 是否还在用默认 session 密钥
func (c Config) UsesDefaultSessionSecret() bool {
	return c.SessionSecret == DefaultSessionSecret
}

// Validate 检查生产环境不能接受的配置
func (c Config) Validate() error {
	if c.IsProduction() && c.UsesDefaultSessionSecret() {
		return ErrDefaultSessionSecret
	}
	return nil
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
