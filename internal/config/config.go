package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Mode string `yaml:"mode"`
		TLS  struct {
			Enabled  bool   `yaml:"enabled"`
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
		} `yaml:"tls"`
	} `yaml:"server"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"ssl_mode"`
	} `yaml:"database"`

	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	Elasticsearch struct {
		URL      string `yaml:"url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"elasticsearch"`

	EHR struct {
		BaseURL      string        `yaml:"base_url"`
		TokenURL     string        `yaml:"token_url"`
		ClientID     string        `yaml:"client_id"`
		ClientSecret string        `yaml:"client_secret"`
		CertFile     string        `yaml:"cert_file"`
		KeyFile      string        `yaml:"key_file"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"ehr"`

	Auth struct {
		JWTSecret          string        `yaml:"jwt_secret"`
		TokenExpiry        time.Duration `yaml:"token_expiry"`
		OperatorEmail      string        `yaml:"operator_email"`
		OperatorSecretHash string        `yaml:"operator_secret_hash"`
	} `yaml:"auth"`
}

// Load reads the yaml config from the first path that exists, then applies
// environment overrides for secrets. Missing EHR credentials are a fatal
// startup condition, never a per-request error.
func Load() (*Config, error) {
	configPaths := []string{
		"./configs/config.yaml",
		"../configs/config.yaml",
		"/etc/niv-onboarding/config.yaml",
	}

	var config Config
	loaded := false
	for _, path := range configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		configFile, err := os.ReadFile(absPath)
		if err != nil {
			continue
		}

		if err := yaml.Unmarshal(configFile, &config); err != nil {
			return nil, err
		}
		loaded = true
		break
	}
	if !loaded {
		return nil, fmt.Errorf("no configuration file found")
	}

	applyEnvOverrides(&config)

	if config.EHR.ClientID == "" || config.EHR.ClientSecret == "" {
		return nil, fmt.Errorf("EHR client credentials are required (EHR_CLIENT_ID / EHR_CLIENT_SECRET)")
	}
	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required (JWT_SECRET)")
	}

	return &config, nil
}

// applyEnvOverrides binds secret-bearing settings to environment variables so
// they never have to live in the yaml file.
func applyEnvOverrides(config *Config) {
	v := viper.New()
	v.AutomaticEnv()

	override := func(target *string, key string) {
		if value := v.GetString(key); value != "" {
			*target = value
		}
	}

	override(&config.EHR.ClientID, "EHR_CLIENT_ID")
	override(&config.EHR.ClientSecret, "EHR_CLIENT_SECRET")
	override(&config.EHR.CertFile, "EHR_CERT_FILE")
	override(&config.EHR.KeyFile, "EHR_KEY_FILE")
	override(&config.EHR.BaseURL, "EHR_BASE_URL")
	override(&config.EHR.TokenURL, "EHR_TOKEN_URL")
	override(&config.Auth.JWTSecret, "JWT_SECRET")
	override(&config.Auth.OperatorSecretHash, "OPERATOR_SECRET_HASH")
	override(&config.Database.Password, "POSTGRES_PASSWORD")
	override(&config.Mongo.URI, "MONGO_URI")
	override(&config.Elasticsearch.Password, "ELASTICSEARCH_PASSWORD")
}
