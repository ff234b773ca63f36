// Package config builds a configured vericloud.Service from declarative
// server configuration.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vericloud/vericloud/pkg/vericloud"
	fsrepo "github.com/vericloud/vericloud/pkg/vericloud/repo/fs"
	memoryrepo "github.com/vericloud/vericloud/pkg/vericloud/repo/memory"
	pgrepo "github.com/vericloud/vericloud/pkg/vericloud/repo/postgres"
	fsstorage "github.com/vericloud/vericloud/pkg/vericloud/storage/fs"
	memorystorage "github.com/vericloud/vericloud/pkg/vericloud/storage/memory"
	s3storage "github.com/vericloud/vericloud/pkg/vericloud/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
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
		Port:            "8000",
		Environment:     "development",
		MaxUploadSize:   vericloud.DefaultMaxUploadSize,
		MetadataBackend: "memory",
		StorageBackend:  "memory",
		UploadDir:       "uploads",
		MetadataDir:     "metadata",
	}
}

// ServerConfig represents server configuration for the vericloud service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Core options
	MaxUploadSize int64

	// Metadata configuration
	MetadataBackend string // "memory", "fs", "postgres"
	MetadataDir     string // fs backend only
	DatabaseURL     string // postgres backend only

	// Blob storage configuration
	StorageBackend string // "memory", "fs", "s3"
	UploadDir      string // fs backend only
	CompressBlobs  bool   // fs backend only

	// S3 backend options
	S3 S3Config
}

// S3Config holds S3 backend settings
type S3Config struct {
	Region                 string
	Bucket                 string
	AccessKeyID            string
	SecretAccessKey        string
	Endpoint               string
	UsePathStyle           bool
	CreateBucketIfNotExist bool
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("max upload size must be positive")
	}

	switch c.MetadataBackend {
	case "memory":
	case "fs":
		if c.MetadataDir == "" {
			return errors.New("metadata_dir is required for fs metadata backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required for postgres metadata backend")
		}
	default:
		return fmt.Errorf("unknown metadata backend %q", c.MetadataBackend)
	}

	switch c.StorageBackend {
	case "memory":
	case "fs":
		if c.UploadDir == "" {
			return errors.New("upload_dir is required for fs storage backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required for s3 storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	return nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService() (vericloud.Service, error) {
	repo, err := c.buildMetadataRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata repository: %w", err)
	}

	store, err := c.buildBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	return vericloud.New(
		vericloud.WithMetadataRepository(repo),
		vericloud.WithBlobStore(c.StorageBackend, store),
		vericloud.WithMaxUploadSize(c.MaxUploadSize),
	)
}

func (c *ServerConfig) buildMetadataRepository() (vericloud.MetadataRepository, error) {
	switch c.MetadataBackend {
	case "memory":
		return memoryrepo.New(), nil
	case "fs":
		return fsrepo.New(fsrepo.Config{BaseDir: c.MetadataDir})
	case "postgres":
		pool, err := pgxpool.New(context.Background(), c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return pgrepo.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", c.MetadataBackend)
	}
}

func (c *ServerConfig) buildBlobStore() (vericloud.BlobStore, error) {
	switch c.StorageBackend {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:  c.UploadDir,
			Compress: c.CompressBlobs,
		})
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}
