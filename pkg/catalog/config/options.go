package config

import (
	"fmt"

	"github.com/tendant/simple-catalog/pkg/catalog/objectkey"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithMetadataURL selects the metadata store
func WithMetadataURL(url string) Option {
	return func(c *ServerConfig) error {
		c.MetadataURL = url
		return nil
	}
}

// WithStorageURL selects the blob store
func WithStorageURL(url string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = url
		return nil
	}
}

// WithMaxUploadSize sets the per-upload size limit in bytes
func WithMaxUploadSize(limit int64) Option {
	return func(c *ServerConfig) error {
		if limit <= 0 {
			return fmt.Errorf("max upload size must be positive, got: %d", limit)
		}
		c.MaxUploadBytes = limit
		return nil
	}
}

// WithKeyLayout sets the stored-name layout (flat or sharded)
func WithKeyLayout(layout string) Option {
	return func(c *ServerConfig) error {
		if _, err := objectkey.New(layout); err != nil {
			return err
		}
		c.KeyLayout = layout
		return nil
	}
}

// WithCORSOrigins sets the origins allowed by the HTTP server
func WithCORSOrigins(origins ...string) Option {
	return func(c *ServerConfig) error {
		c.CORSOrigins = origins
		return nil
	}
}

// WithMetrics toggles Prometheus metrics
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}

// WithS3Credentials sets static S3 credentials and region
func WithS3Credentials(accessKeyID, secretAccessKey, region string) Option {
	return func(c *ServerConfig) error {
		c.S3AccessKeyID = accessKeyID
		c.S3SecretAccessKey = secretAccessKey
		c.S3Region = region
		return nil
	}
}
