package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	State     StateConfig     `mapstructure:"state"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Token     TokenConfig     `mapstructure:"token"`
	Referral  ReferralConfig  `mapstructure:"referral"`
	WireGuard WireGuardConfig `mapstructure:"wireguard"`
	Admin     AdminConfig     `mapstructure:"admin"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	Mode                    string        `mapstructure:"mode"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              string        `mapstructure:"db"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// StateConfig selects where credentials and admin sessions live.
type StateConfig struct {
	Store   string `mapstructure:"store"`   // "postgres" | "memory"
	Backend string `mapstructure:"backend"` // "redis" | "memory"
}

// JWTConfig configures the bearer credentials that authorize redemption.
// SigningKey doubles as the X-ADMIN-SECRET value.
type JWTConfig struct {
	SigningKey string `mapstructure:"signing_key"`
	Issuer     string `mapstructure:"issuer"`
}

type TokenConfig struct {
	Lifetime   time.Duration `mapstructure:"lifetime"`
	DailyLimit int           `mapstructure:"daily_limit"`
	Bytes      int           `mapstructure:"bytes"`
}

type ReferralConfig struct {
	Reward int `mapstructure:"reward"`
}

type WireGuardConfig struct {
	HostPublicIP    string        `mapstructure:"host_public_ip"`
	ListenPort      int           `mapstructure:"listen_port"`
	ServerPublicKey string        `mapstructure:"server_public_key"`
	DNS             string        `mapstructure:"dns"`
	AddressBase     string        `mapstructure:"address_base"`
	ToolPath        string        `mapstructure:"tool_path"`
	KeygenTimeout   time.Duration `mapstructure:"keygen_timeout"`
}

type AdminConfig struct {
	UserIDs        []int64       `mapstructure:"user_ids"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var ErrMissingSigningKey = errors.New("jwt.signing_key is required")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.graceful_shutdown_timeout", 10*time.Second)

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.db", "keyhub")
	v.SetDefault("database.postgres.user", "keyhub")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.max_open_conns", 20)
	v.SetDefault("database.postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("database.postgres.auto_migrate", true)

	v.SetDefault("database.redis.host", "localhost")
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.redis.pool_size", 10)

	v.SetDefault("state.store", "postgres")
	v.SetDefault("state.backend", "memory")

	v.SetDefault("jwt.signing_key", "")
	v.SetDefault("jwt.issuer", "vpn_bot")

	v.SetDefault("token.lifetime", 24*time.Hour)
	v.SetDefault("token.daily_limit", 1)
	v.SetDefault("token.bytes", 16)

	v.SetDefault("referral.reward", 1)

	v.SetDefault("wireguard.host_public_ip", "vpn.example.com")
	v.SetDefault("wireguard.listen_port", 51820)
	v.SetDefault("wireguard.server_public_key", "")
	v.SetDefault("wireguard.dns", "1.1.1.1")
	v.SetDefault("wireguard.address_base", "10.66.66.0")
	v.SetDefault("wireguard.tool_path", "wg")
	v.SetDefault("wireguard.keygen_timeout", 3*time.Second)

	v.SetDefault("admin.user_ids", []int64{})
	v.SetDefault("admin.session_timeout", 5*time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type", "X-ADMIN-SECRET"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 12*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads the YAML config at path (optional when empty), overlays
// environment variables, and returns Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variable override: TOKEN_DAILY_LIMIT -> token.daily_limit
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.SigningKey) == "" {
		return ErrMissingSigningKey
	}
	if c.Token.Lifetime <= 0 {
		return fmt.Errorf("token.lifetime must be positive, got %s", c.Token.Lifetime)
	}
	if c.Token.DailyLimit < 0 {
		return fmt.Errorf("token.daily_limit must not be negative, got %d", c.Token.DailyLimit)
	}
	// 16 bytes is the 128-bit floor for an unguessable token.
	if c.Token.Bytes < 16 {
		return fmt.Errorf("token.bytes must be at least 16, got %d", c.Token.Bytes)
	}
	if c.Referral.Reward < 0 {
		return fmt.Errorf("referral.reward must not be negative, got %d", c.Referral.Reward)
	}
	switch c.State.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown state.store %q", c.State.Store)
	}
	switch c.State.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown state.backend %q", c.State.Backend)
	}
	return nil
}
