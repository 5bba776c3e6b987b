package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"madebuy/pkg/etsy"
)

// EnvPrefix 环境变量前缀，例如 MADEBUY_ETSY_API_KEY 对应 etsy.api_key
const EnvPrefix = "MADEBUY"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Etsy     EtsyConfig     `mapstructure:"etsy"`
	Token    TokenConfig    `mapstructure:"token"`
	State    StateConfig    `mapstructure:"state"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin: debug | release | test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type EtsyConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	RedirectURL     string        `mapstructure:"redirect_url"`
	Scopes          []string      `mapstructure:"scopes"`
	BaseURL         string        `mapstructure:"base_url"`
	AuthURL         string        `mapstructure:"auth_url"`
	TokenURL        string        `mapstructure:"token_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RPS             float64       `mapstructure:"rps"`
	Burst           int           `mapstructure:"burst"`
	SyncConcurrency int           `mapstructure:"sync_concurrency"`
}

// TokenConfig 后台 token 刷新
type TokenConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Spec        string        `mapstructure:"spec"`
	Window      time.Duration `mapstructure:"window"`
	Buffer      time.Duration `mapstructure:"buffer"`
	Concurrency int           `mapstructure:"concurrency"`
}

// StateConfig OAuth state 存储
type StateConfig struct {
	Store     string        `mapstructure:"store"` // memory | redis
	RedisURL  string        `mapstructure:"redis_url"`
	TTL       time.Duration `mapstructure:"ttl"`
	SweepSpec string        `mapstructure:"sweep_spec"`
}

// StorageConfig 图片来源，region 或 endpoint 为空时不启用 s3://
type StorageConfig struct {
	Region        string        `mapstructure:"region"`
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	UsePathStyle  bool          `mapstructure:"use_path_style"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "host=localhost user=madebuy password=madebuy dbname=madebuy port=5432 sslmode=disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("etsy.api_key", "")
	v.SetDefault("etsy.redirect_url", "http://localhost:8080/api/v1/etsy/callback")
	v.SetDefault("etsy.scopes", etsy.DefaultScopes)
	v.SetDefault("etsy.base_url", etsy.DefaultBaseURL)
	v.SetDefault("etsy.auth_url", etsy.AuthURL)
	v.SetDefault("etsy.token_url", etsy.TokenURL)
	v.SetDefault("etsy.request_timeout", etsy.DefaultTimeout)
	v.SetDefault("etsy.rps", float64(etsy.DefaultRPS))
	v.SetDefault("etsy.burst", etsy.DefaultBurst)
	v.SetDefault("etsy.sync_concurrency", 4)

	v.SetDefault("token.enabled", true)
	v.SetDefault("token.spec", "0 */10 * * * *")
	v.SetDefault("token.window", 15*time.Minute)
	v.SetDefault("token.buffer", 5*time.Minute)
	v.SetDefault("token.concurrency", 4)

	v.SetDefault("state.store", "memory")
	v.SetDefault("state.redis_url", "")
	v.SetDefault("state.ttl", 10*time.Minute)
	v.SetDefault("state.sweep_spec", "0 */5 * * * *")

	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_path_style", false)
	v.SetDefault("storage.timeout", 30*time.Second)
	v.SetDefault("storage.max_image_bytes", 20<<20)
}

// Load 读取配置：默认值 < 配置文件 < 环境变量
// path 为空时只使用默认值与环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Etsy.Scopes = splitScopes(cfg.Etsy.Scopes)
	return &cfg, nil
}

// splitScopes 环境变量中的 scopes 以空格或逗号分隔
func splitScopes(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })...)
	}
	return out
}

// Validate 校验 serve / sync 需要的配置，migrate 不调用
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Etsy.APIKey == "" {
		errs = append(errs, errors.New("etsy.api_key is required"))
	}
	if c.Etsy.SyncConcurrency <= 0 {
		errs = append(errs, errors.New("etsy.sync_concurrency must be positive"))
	}
	switch c.State.Store {
	case "memory":
	case "redis":
		if c.State.RedisURL == "" {
			errs = append(errs, errors.New("state.redis_url is required when state.store is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state.store %q", c.State.Store))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
