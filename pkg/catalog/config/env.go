package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig mirrors the environment variables understood by WithEnv.
// Unset variables leave the current configuration untouched.
type envConfig struct {
	Port           string   `env:"PORT" env-description:"HTTP listen port"`
	Environment    string   `env:"ENVIRONMENT" env-description:"development, production or testing"`
	MetadataURL    string   `env:"METADATA_URL" env-description:"memory, file:///path/files.json, sqlite:///path/catalog.db or postgres://..."`
	StorageURL     string   `env:"STORAGE_URL" env-description:"memory://, file:///path or s3://bucket?region=..&endpoint=..&path_style=true"`
	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES" env-description:"per-upload size limit in bytes"`
	KeyLayout      string   `env:"KEY_LAYOUT" env-description:"stored name layout: flat or sharded"`
	CORSOrigins    []string `env:"CORS_ORIGINS" env-separator:"," env-description:"allowed CORS origins"`
	EnableMetrics  string   `env:"ENABLE_METRICS" env-description:"expose Prometheus metrics"`

	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `env:"AWS_REGION"`
}

// WithEnv applies environment variable overrides.
//
//	PORT              server port (default "5000")
//	ENVIRONMENT       runtime environment (default "development")
//	METADATA_URL      record store (default "file://./data/files.json")
//	STORAGE_URL       blob store (default "file://./uploads")
//	MAX_UPLOAD_BYTES  per-upload limit (default 52428800)
//	KEY_LAYOUT        flat or sharded (default "flat")
//	CORS_ORIGINS      comma separated origins (default "http://localhost:5173")
//	ENABLE_METRICS    true or false (default true)
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_REGION for s3:// storage
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		if env.Port != "" {
			c.Port = env.Port
		}
		if env.Environment != "" {
			c.Environment = env.Environment
		}
		if env.MetadataURL != "" {
			c.MetadataURL = env.MetadataURL
		}
		if env.StorageURL != "" {
			c.StorageURL = env.StorageURL
		}
		if env.MaxUploadBytes != 0 {
			c.MaxUploadBytes = env.MaxUploadBytes
		}
		if env.KeyLayout != "" {
			c.KeyLayout = env.KeyLayout
		}
		if origins := cleanOrigins(env.CORSOrigins); len(origins) > 0 {
			c.CORSOrigins = origins
		}
		if env.EnableMetrics != "" {
			enabled, err := strconv.ParseBool(env.EnableMetrics)
			if err != nil {
				return fmt.Errorf("invalid ENABLE_METRICS value %q: %w", env.EnableMetrics, err)
			}
			c.EnableMetrics = enabled
		}

		if env.AWSAccessKeyID != "" {
			c.S3AccessKeyID = env.AWSAccessKeyID
		}
		if env.AWSSecretAccessKey != "" {
			c.S3SecretAccessKey = env.AWSSecretAccessKey
		}
		if env.AWSRegion != "" {
			c.S3Region = env.AWSRegion
		}

		return nil
	}
}

// EnvUsage describes the environment variables read by WithEnv
func EnvUsage() string {
	var env envConfig
	desc, err := cleanenv.GetDescription(&env, nil)
	if err != nil {
		return ""
	}
	return desc
}

func cleanOrigins(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
