package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Events    EventsConfig    `mapstructure:"events"`
}

type ServerConfig struct {
	GRPCPort        int           `mapstructure:"grpc_port"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Upload limit for SCL documents in bytes
	MaxDocumentSize int64 `mapstructure:"max_document_size"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// Auth Configuration
type AuthConfig struct {
	JWTSecretEnv   string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`

	// Created on startup when the users table is empty
	BootstrapAdmin       string `mapstructure:"bootstrap_admin"`
	BootstrapPasswordEnv string `mapstructure:"bootstrap_password_env"`
}

type DocumentsConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
	Extensions  []string `mapstructure:"extensions"`
}

type EventsConfig struct {
	BroadcastBuffer int `mapstructure:"broadcast_buffer"`

	// Later binding ExtRefs are queried when true, fixed binding otherwise
	IncludeLaterBinding bool `mapstructure:"include_later_binding"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	// OSC_SERVER_HTTP_PORT etc.
	v.SetEnvPrefix("OSC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_document_size", 64<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	v.SetDefault("auth.access_token_ttl", "60m")
	v.SetDefault("auth.bootstrap_password_env", "OSC_ADMIN_PASSWORD")

	v.SetDefault("documents.search_paths", []string{"projects"})
	v.SetDefault("documents.extensions", []string{".scd", ".icd", ".cid", ".iid", ".ssd", ".sed"})

	v.SetDefault("events.broadcast_buffer", 256)
	v.SetDefault("events.include_later_binding", true)
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// JWT Secret aus Environment Variable laden
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET"
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		// Development fallback, see IsProductionReady
		return devJWTSecret
	}
	return secret
}

// BootstrapPassword returns the initial admin password, "" if unset.
func (a *AuthConfig) BootstrapPassword() string {
	if a.BootstrapPasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.BootstrapPasswordEnv)
}

const devJWTSecret = "dev-secret-change-in-production-min-32-chars"

func (a *AuthConfig) IsProductionReady() bool {
	secret := a.GetJWTSecret()
	return secret != devJWTSecret && len(secret) >= 32
}
