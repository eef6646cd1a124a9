package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultPath 默认配置文件路径，可通过 BOOKMARKER_CONFIG 覆盖
const DefaultPath = "configs/config.yaml"

// envPrefix 环境变量前缀
const envPrefix = "bookmarker"

// 主配置结构
type Config struct {
	App       App       `yaml:"app"`
	Server    Server    `yaml:"server"`
	Database  DB        `yaml:"database"`
	Cache     Cache     `yaml:"cache"`
	Auth      Auth      `yaml:"auth"`
	RateLimit Limit     `yaml:"rate_limit"`
	Log       Log       `yaml:"log"`
	Bookmarks Bookmarks `yaml:"bookmarks"`
}

// 应用配置
type App struct {
	Name    string `yaml:"name"`
	Mode    string `yaml:"mode"`
	Version string `yaml:"version"`
}

// 服务器配置
type Server struct {
	Port         int `yaml:"port"`
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

// 数据库配置，Driver 取值 mysql / postgres / sqlite
type DB struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

// 缓存配置（Redis），Host 为空时不启用
type Cache struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
	PoolSize   int    `yaml:"pool_size"`
	// 连接与 Ping 超时，单位秒
	DialTimeout int `yaml:"dial_timeout"`
}

// 认证配置
type Auth struct {
	Secret             string `yaml:"secret"`
	Issuer             string `yaml:"issuer"`
	ExpirationHours    int    `yaml:"expiration_hours"`
	RefreshExpireHours int    `yaml:"refresh_expiration_hours"`
}

// 限流配置
type Limit struct {
	Enabled   bool     `yaml:"enabled"`
	Requests  int64    `yaml:"requests_per_minute"`
	Burst     int64    `yaml:"burst"`
	SkipPaths []string `yaml:"skip_paths"`
}

// 日志配置
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// 书签相关配置
type Bookmarks struct {
	DefaultPerPage   int `yaml:"default_per_page"`
	MaxPerPage       int `yaml:"max_per_page"`
	CodeMaxAttempts  int `yaml:"code_max_attempts"`
	InsertMaxRetries int `yaml:"insert_max_retries"`
}

// Load 读取 .env（若存在）与 YAML 配置文件，补齐默认值后应用环境变量覆盖
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}
	if env.Config != nil && *env.Config != "" {
		path = *env.Config
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	env.apply(cfg)
	return cfg, nil
}

// Parse 解析 YAML 内容并补齐默认值
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "bookmarker"
	}
	if c.App.Mode == "" {
		c.App.Mode = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = 60
	}
	if c.Cache.PoolSize == 0 {
		c.Cache.PoolSize = 20
	}
	if c.Cache.DialTimeout == 0 {
		c.Cache.DialTimeout = 5
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = c.App.Name
	}
	if c.Auth.ExpirationHours == 0 {
		c.Auth.ExpirationHours = 1
	}
	if c.Auth.RefreshExpireHours == 0 {
		c.Auth.RefreshExpireHours = 24 * 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = "./logs/app.log"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 30
	}
	if c.Bookmarks.DefaultPerPage == 0 {
		c.Bookmarks.DefaultPerPage = 5
	}
	if c.Bookmarks.MaxPerPage == 0 {
		c.Bookmarks.MaxPerPage = 100
	}
	if c.Bookmarks.CodeMaxAttempts == 0 {
		c.Bookmarks.CodeMaxAttempts = 64
	}
	if c.Bookmarks.InsertMaxRetries == 0 {
		c.Bookmarks.InsertMaxRetries = 8
	}
}

// envOverrides 是允许通过 BOOKMARKER_* 环境变量覆盖的字段，未设置时为 nil
type envOverrides struct {
	Config        *string `envconfig:"CONFIG"`
	Mode          *string `envconfig:"APP_MODE"`
	Port          *int    `envconfig:"PORT"`
	DBDriver      *string `envconfig:"DB_DRIVER"`
	DBDSN         *string `envconfig:"DB_DSN"`
	DBPassword    *string `envconfig:"DB_PASSWORD"`
	RedisHost     *string `envconfig:"REDIS_HOST"`
	RedisPassword *string `envconfig:"REDIS_PASSWORD"`
	AuthSecret    *string `envconfig:"AUTH_SECRET"`
	LogLevel      *string `envconfig:"LOG_LEVEL"`
}

func (e envOverrides) apply(c *Config) {
	setString(&c.App.Mode, e.Mode)
	setString(&c.Database.Driver, e.DBDriver)
	setString(&c.Database.DSN, e.DBDSN)
	setString(&c.Database.Password, e.DBPassword)
	setString(&c.Cache.Host, e.RedisHost)
	setString(&c.Cache.Password, e.RedisPassword)
	setString(&c.Auth.Secret, e.AuthSecret)
	setString(&c.Log.Level, e.LogLevel)
	if e.Port != nil {
		c.Server.Port = *e.Port
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
