package stores

import (
	"context"
	"fmt"

	"campus-store/config"
	"campus-store/core"
	"campus-store/stores/aws"
	"campus-store/stores/filesystem"
	"campus-store/stores/memory"
	"campus-store/stores/mirror"
	"campus-store/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore builds the backend selected by cfg. Remote backends are wrapped
// with the mirror fallback when it is enabled.
func GetStore(ctx context.Context, cfg *config.Config, cache *mirror.Cache) (core.DocumentStore, error) {
	var (
		store core.DocumentStore
		err   error
	)
	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case config.StorageFilesystem:
		storageField["basePath"] = cfg.LocalStoragePath
		store, err = filesystem.NewDocumentStore(cfg.LocalStoragePath)
	case config.StorageSQLite:
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewDocumentStore(cfg.DataSourceName)
	case config.StorageS3:
		storageField["bucketName"] = cfg.S3.BucketName
		store, err = aws.NewDocumentStore(ctx, aws.Options{
			Bucket:     cfg.S3.BucketName,
			Region:     cfg.S3.Region,
			Endpoint:   cfg.S3.Endpoint,
			PathStyle:  cfg.S3.PathStyle,
			PublicRead: cfg.S3.PublicRead,
		})
	case config.StorageLocal:
		store = mirror.NewDocumentStore(cache)
	case config.StorageMemory:
		store = memory.NewDocumentStore()
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.StorageType)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s storage: %w", cfg.StorageType, err)
	}

	store = Instrument(store, cfg.StorageType, cfg.StoreTimeout)
	if cfg.Remote() && cfg.MirrorFallback {
		store = mirror.NewFallbackStore(store, cache)
		storageField["mirrorFallback"] = true
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}
