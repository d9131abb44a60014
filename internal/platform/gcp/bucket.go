package gcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/casevault/discovery-backend/internal/platform/logger"
)

// ArchiveService stores the original produced files. The database keeps only
// the storage key; bytes live here.
type ArchiveService interface {
	UploadOriginal(ctx context.Context, key string, file io.Reader) error
	DownloadOriginal(ctx context.Context, key string) (io.ReadCloser, error)
	OriginalAttrs(ctx context.Context, key string) (*ObjectAttrs, error)
	DeleteOriginal(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

type ObjectAttrs struct {
	Size        int64
	ContentType string
	Updated     time.Time
	ETag        string
}

type archiveService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucket        string
}

func NewArchiveService(log *logger.Logger) (ArchiveService, error) {
	storageCfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve object storage config: %w", err)
	}
	return NewArchiveServiceWithConfig(log, storageCfg)
}

func NewArchiveServiceWithConfig(log *logger.Logger, storageCfg ObjectStorageConfig) (ArchiveService, error) {
	if err := ValidateObjectStorageConfig(storageCfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}

	bucket := strings.TrimSpace(os.Getenv("PRODUCTION_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var PRODUCTION_GCS_BUCKET_NAME")
	}

	ctx := context.Background()
	stClient, err := newStorageClientForMode(ctx, storageCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog := log.With("service", "ArchiveService")
	serviceLog.Info("object storage initialized",
		"mode", storageCfg.Mode,
		"emulator_host", storageCfg.EmulatorHost,
		"bucket", bucket,
	)

	return &archiveService{
		log:           serviceLog,
		storageClient: stClient,
		bucket:        bucket,
	}, nil
}

func newStorageClientForMode(ctx context.Context, storageCfg ObjectStorageConfig) (*storage.Client, error) {
	switch storageCfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{
			Code: ObjectStorageConfigErrorInvalidMode,
			Mode: string(storageCfg.Mode),
		}
	}
}

// OriginalStorageKey builds the canonical archive key for a produced file.
func OriginalStorageKey(caseID uuid.UUID, productionBatch, fileName string) string {
	batch := strings.TrimSpace(productionBatch)
	if batch == "" {
		batch = "unbatched"
	}
	return fmt.Sprintf("cases/%s/productions/%s/%s",
		caseID.String(), sanitizeKeySegment(batch), sanitizeKeySegment(fileName))
}

func sanitizeKeySegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "unnamed"
	}
	return s
}

func (as *archiveService) UploadOriginal(ctx context.Context, key string, file io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := as.storageClient.Bucket(as.bucket).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (as *archiveService) DownloadOriginal(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := as.storageClient.Bucket(as.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %q: %w", key, err)
	}
	return r, nil
}

func (as *archiveService) OriginalAttrs(ctx context.Context, key string) (*ObjectAttrs, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	attrs, err := as.storageClient.Bucket(as.bucket).Object(key).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to stat GCS object %q: %w", key, err)
	}
	return &ObjectAttrs{
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated,
		ETag:        attrs.Etag,
	}, nil
}

func (as *archiveService) DeleteOriginal(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := as.storageClient.Bucket(as.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, as.bucket, err)
	}
	return nil
}

func (as *archiveService) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := as.storageClient.Bucket(as.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".tif"), strings.HasSuffix(s, ".tiff"):
		return "image/tiff"
	case strings.HasSuffix(s, ".txt"):
		return "text/plain"
	case strings.HasSuffix(s, ".eml"):
		return "message/rfc822"
	case strings.HasSuffix(s, ".msg"):
		return "application/vnd.ms-outlook"
	case strings.HasSuffix(s, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case strings.HasSuffix(s, ".xlsx"):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}
