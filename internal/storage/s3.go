package storage

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3 downloads products from S3-compatible mirrors. Empty keys mean
// anonymous access.
type S3 struct {
	client      *minio.Client
	ex          shell.Executor
	concurrency int
}

func NewS3(cfg S3Config, ex shell.Executor, concurrency int) (*S3, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("S3_ENDPOINT is required for s3:// products")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &S3{client: client, ex: ex, concurrency: concurrency}, nil
}

func (s *S3) Copy(ctx context.Context, src, dst string) error {
	loc, err := ParseURL(src)
	if err != nil {
		return err
	}
	return s.ex.Do(ctx, fmt.Sprintf("copy %s %s", src, dst), func(ctx context.Context) error {
		return s.download(ctx, loc, dst)
	})
}

func (s *S3) download(ctx context.Context, loc Location, dst string) error {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)

	found := 0
	for obj := range s.client.ListObjects(listCtx, loc.Bucket, minio.ListObjectsOptions{
		Prefix:    loc.Prefix + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			cancel()
			eg.Wait()
			return fmt.Errorf("failed to list s3://%s/%s: %w", loc.Bucket, loc.Prefix, obj.Err)
		}
		if skipKey(obj.Key) {
			continue
		}
		found++

		key := obj.Key
		target := loc.LocalPath(dst, key)
		eg.Go(func() error {
			// FGetObject writes a .part file and renames it on completion.
			if err := s.client.FGetObject(egCtx, loc.Bucket, key, target, minio.GetObjectOptions{}); err != nil {
				return fmt.Errorf("failed to download s3://%s/%s: %w", loc.Bucket, key, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if found == 0 {
		return fmt.Errorf("no objects under s3://%s/%s", loc.Bucket, loc.Prefix)
	}
	return nil
}
