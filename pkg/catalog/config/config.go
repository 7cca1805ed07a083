package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/tendant/simple-catalog/pkg/catalog"
	"github.com/tendant/simple-catalog/pkg/catalog/metrics"
	"github.com/tendant/simple-catalog/pkg/catalog/objectkey"
	"github.com/tendant/simple-catalog/pkg/catalog/repo/jsonfile"
	"github.com/tendant/simple-catalog/pkg/catalog/repo/memory"
	repopg "github.com/tendant/simple-catalog/pkg/catalog/repo/postgres"
	"github.com/tendant/simple-catalog/pkg/catalog/repo/sqlite"
	fsstorage "github.com/tendant/simple-catalog/pkg/catalog/storage/fs"
	memorystorage "github.com/tendant/simple-catalog/pkg/catalog/storage/memory"
	s3storage "github.com/tendant/simple-catalog/pkg/catalog/storage/s3"
)

// Metadata backend kinds
const (
	MetadataMemory   = "memory"
	MetadataJSONFile = "jsonfile"
	MetadataSQLite   = "sqlite"
	MetadataPostgres = "postgres"
)

// Storage backend kinds
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:           "5000",
		Environment:    "development",
		MetadataURL:    "file://./data/files.json",
		StorageURL:     "file://./uploads",
		MaxUploadBytes: catalog.DefaultMaxUploadSize,
		KeyLayout:      objectkey.LayoutFlat,
		CORSOrigins:    []string{"http://localhost:5173"},
		EnableMetrics:  true,
	}
}

// ServerConfig represents configuration for the catalog service and server
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// MetadataURL selects the record store:
	// memory, file:///path/files.json, sqlite:///path/catalog.db, postgres://...
	MetadataURL string

	// StorageURL selects the blob store:
	// memory://, file:///path/to/uploads, s3://bucket?region=..&endpoint=..&path_style=true
	StorageURL string

	MaxUploadBytes int64
	KeyLayout      string // flat or sharded
	CORSOrigins    []string
	EnableMetrics  bool

	// S3 credentials; the default AWS credential chain is used when empty
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
}

// MetadataTarget is a parsed MetadataURL
type MetadataTarget struct {
	Kind     string
	Location string // file path or connection string
}

// StorageTarget is a parsed StorageURL
type StorageTarget struct {
	Kind         string
	Path         string
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max upload size must be positive")
	}
	if _, err := objectkey.New(c.KeyLayout); err != nil {
		return err
	}
	if _, err := c.Metadata(); err != nil {
		return err
	}
	if _, err := c.Storage(); err != nil {
		return err
	}
	return nil
}

// Metadata parses MetadataURL
func (c *ServerConfig) Metadata() (MetadataTarget, error) {
	raw := strings.TrimSpace(c.MetadataURL)
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return MetadataTarget{Kind: MetadataMemory}, nil
	case strings.HasPrefix(raw, "file://"):
		path := strings.TrimPrefix(raw, "file://")
		if path == "" {
			return MetadataTarget{}, errors.New("catalog file path cannot be empty in METADATA_URL")
		}
		return MetadataTarget{Kind: MetadataJSONFile, Location: path}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return MetadataTarget{}, errors.New("sqlite database path cannot be empty in METADATA_URL")
		}
		return MetadataTarget{Kind: MetadataSQLite, Location: path}, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return MetadataTarget{Kind: MetadataPostgres, Location: raw}, nil
	default:
		return MetadataTarget{}, fmt.Errorf("unsupported METADATA_URL format: %s (use 'memory', 'file://...', 'sqlite://...' or 'postgres://...')", raw)
	}
}

// Storage parses StorageURL
func (c *ServerConfig) Storage() (StorageTarget, error) {
	raw := strings.TrimSpace(c.StorageURL)
	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return StorageTarget{Kind: StorageMemory}, nil
	case strings.HasPrefix(raw, "file://"):
		path := strings.TrimPrefix(raw, "file://")
		if path == "" {
			return StorageTarget{}, errors.New("filesystem path cannot be empty in STORAGE_URL")
		}
		return StorageTarget{Kind: StorageFS, Path: path}, nil
	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return StorageTarget{}, fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
		if u.Host == "" {
			return StorageTarget{}, errors.New("S3 bucket name cannot be empty in STORAGE_URL")
		}
		q := u.Query()
		target := StorageTarget{
			Kind:     StorageS3,
			Bucket:   u.Host,
			Prefix:   strings.Trim(u.Path, "/"),
			Region:   q.Get("region"),
			Endpoint: q.Get("endpoint"),
		}
		if v := q.Get("path_style"); v != "" {
			if target.UsePathStyle, err = strconv.ParseBool(v); err != nil {
				return StorageTarget{}, fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
			}
		}
		if target.Region == "" {
			target.Region = c.S3Region
		}
		return target, nil
	default:
		return StorageTarget{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", raw)
	}
}

// BuildService creates a catalog Service from the configuration. Extra options
// are applied after the configured ones. Close the service to release the metadata store.
func (c *ServerConfig) BuildService(extra ...catalog.Option) (catalog.Service, error) {
	keys, err := objectkey.New(c.KeyLayout)
	if err != nil {
		return nil, err
	}

	blobs, err := c.buildBlobStore(keys)
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	store, err := c.buildMetadataStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata store: %w", err)
	}

	options := []catalog.Option{
		catalog.WithBlobStore(blobs),
		catalog.WithMetadataStore(store),
		catalog.WithMaxUploadSize(c.MaxUploadBytes),
	}

	if c.EnableMetrics {
		records, err := store.List(context.Background())
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to read catalog: %w", err)
		}
		metrics.SeedStoredBytes(records)
		options = append(options, catalog.WithEventSink(metrics.NewSink()))
	}

	svc, err := catalog.New(append(options, extra...)...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return svc, nil
}

func (c *ServerConfig) buildMetadataStore() (catalog.MetadataStore, error) {
	target, err := c.Metadata()
	if err != nil {
		return nil, err
	}

	switch target.Kind {
	case MetadataMemory:
		return memory.New(), nil
	case MetadataJSONFile:
		return jsonfile.New(target.Location, jsonfile.WithLogger(slog.Default()))
	case MetadataSQLite:
		return sqlite.Open(target.Location)
	case MetadataPostgres:
		return repopg.Connect(context.Background(), target.Location)
	default:
		return nil, fmt.Errorf("unsupported metadata store: %s", target.Kind)
	}
}

func (c *ServerConfig) buildBlobStore(keys objectkey.Generator) (catalog.BlobStore, error) {
	target, err := c.Storage()
	if err != nil {
		return nil, err
	}

	switch target.Kind {
	case StorageMemory:
		return memorystorage.New(memorystorage.WithKeyGenerator(keys)), nil
	case StorageFS:
		return fsstorage.New(fsstorage.Config{BaseDir: target.Path, KeyGenerator: keys})
	case StorageS3:
		return s3storage.New(s3storage.Config{
			Region:          target.Region,
			Bucket:          target.Bucket,
			Prefix:          target.Prefix,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
			Endpoint:        target.Endpoint,
			UsePathStyle:    target.UsePathStyle,
			KeyGenerator:    keys,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", target.Kind)
	}
}
