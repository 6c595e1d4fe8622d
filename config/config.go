// Package config holds the server configuration, populated from command
// line flags and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const (
	DefaultAddress       = ":3002"
	DefaultMaxUploadSize = 10 << 20
)

// Storage backends.
const (
	StorageMemory     = "memory"
	StorageFilesystem = "filesystem"
	StorageSQLite     = "sqlite"
	StorageS3         = "s3"
	StorageLocal      = "local"
)

type (
	Config struct {
		Address string

		StorageType      string
		LocalStoragePath string
		DataSourceName   string
		S3               S3Config

		StoreTimeout    time.Duration
		RetryMaxElapsed time.Duration

		MaxUploadSize int64
		PublicBaseURL string

		MirrorTTL      time.Duration
		MirrorSizeMB   int
		MirrorFallback bool

		// CollectionFields restricts the mutable fields of collections, each
		// entry of the form name=field1,field2.
		CollectionFields []string

		LogLevel  string
		LogFormat string
	}

	S3Config struct {
		BucketName string
		Endpoint   string
		Region     string
		PathStyle  bool
		PublicRead bool
	}
)

// NewFromFlags registers flags on the given flagset. Once the caller has
// parsed the flagset the returned config is populated.
func NewFromFlags(flags *pflag.FlagSet) *Config {
	cfg := Config{}
	flags.StringVar(&cfg.Address, "address", DefaultAddress, "Listening address")

	flags.StringVar(&cfg.StorageType, "storage-type", StorageMemory, "Storage backend: memory, filesystem, sqlite, s3 or local")
	flags.StringVar(&cfg.LocalStoragePath, "local-storage-path", "./data", "Base directory of the filesystem backend")
	flags.StringVar(&cfg.DataSourceName, "data-source-name", "./data/documents.db", "Database path of the sqlite backend")
	flags.StringVar(&cfg.S3.BucketName, "s3-bucket-name", "", "Bucket of the s3 backend")
	flags.StringVar(&cfg.S3.Endpoint, "s3-endpoint", "", "Custom endpoint for S3-compatible stores")
	flags.StringVar(&cfg.S3.Region, "s3-region", "", "Region of the s3 backend")
	flags.BoolVar(&cfg.S3.PathStyle, "s3-path-style", false, "Use path-style addressing for the s3 backend")
	flags.BoolVar(&cfg.S3.PublicRead, "s3-public-read", false, "Make objects written to the s3 backend publicly readable")

	flags.DurationVar(&cfg.StoreTimeout, "store-timeout", 10*time.Second, "Timeout of a single store call")
	flags.DurationVar(&cfg.RetryMaxElapsed, "retry-max-elapsed", 10*time.Second, "Give up retrying a conflicting write after this long")

	flags.Int64Var(&cfg.MaxUploadSize, "max-upload-size", DefaultMaxUploadSize, "Maximum upload size in bytes")
	flags.StringVar(&cfg.PublicBaseURL, "public-base-url", "/objects", "Base URL that uploaded object keys are appended to")

	flags.DurationVar(&cfg.MirrorTTL, "mirror-ttl", 24*time.Hour, "Lifetime of local mirror entries")
	flags.IntVar(&cfg.MirrorSizeMB, "mirror-size-mb", 64, "Maximum size of the local mirror in megabytes")
	flags.BoolVar(&cfg.MirrorFallback, "mirror-fallback", true, "Serve reads from the local mirror when the remote store is unreachable")

	flags.StringArrayVar(&cfg.CollectionFields, "collection-fields", nil, "Allowed fields of a collection, as name=field1,field2 (repeatable)")

	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Logging level")
	flags.StringVar(&cfg.LogFormat, "log-format", "text", "Logging format: text or json")
	return &cfg
}

// SetFlagsFromEnv sets flags from environment variables named after them,
// e.g. --storage-type from STORAGE_TYPE.
func SetFlagsFromEnv(flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		if val, present := os.LookupEnv(EnvName(f.Name)); present {
			if serr := flags.Set(f.Name, val); serr != nil {
				err = fmt.Errorf("setting %s from environment: %w", f.Name, serr)
			}
		}
	})
	return err
}

func EnvName(flag string) string {
	return strings.ReplaceAll(strings.ToUpper(flag), "-", "_")
}

func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageMemory, StorageLocal:
	case StorageFilesystem:
		if c.LocalStoragePath == "" {
			return fmt.Errorf("filesystem storage requires a local storage path")
		}
	case StorageSQLite:
		if c.DataSourceName == "" {
			return fmt.Errorf("sqlite storage requires a data source name")
		}
	case StorageS3:
		if c.S3.BucketName == "" {
			return fmt.Errorf("s3 storage requires a bucket name")
		}
	default:
		return fmt.Errorf("unknown storage type: %q", c.StorageType)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if _, err := c.Schemas(); err != nil {
		return err
	}
	return nil
}

// Remote reports whether the configured backend lives outside the process.
func (c *Config) Remote() bool {
	switch c.StorageType {
	case StorageFilesystem, StorageSQLite, StorageS3:
		return true
	}
	return false
}

// Schemas parses CollectionFields into collection name -> allowed fields.
func (c *Config) Schemas() (map[string][]string, error) {
	schemas := make(map[string][]string, len(c.CollectionFields))
	for _, entry := range c.CollectionFields {
		name, list, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid collection fields %q: expected name=field1,field2", entry)
		}
		var fields []string
		for _, f := range strings.Split(list, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
		schemas[name] = append(schemas[name], fields...)
	}
	return schemas, nil
}
