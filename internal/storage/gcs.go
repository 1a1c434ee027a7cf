package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS downloads products with the Cloud Storage client.
type GCS struct {
	client      *storage.Client
	ex          shell.Executor
	concurrency int
}

// NewGCS uses the default Google credentials when present and anonymous
// access otherwise; the public Landsat and Sentinel-2 buckets allow both.
func NewGCS(ctx context.Context, ex shell.Executor, concurrency int) (*GCS, error) {
	opts := []option.ClientOption{option.WithoutAuthentication()}
	if creds, err := google.FindDefaultCredentials(ctx, storage.ScopeReadOnly); err == nil {
		opts = []option.ClientOption{option.WithCredentials(creds)}
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: client, ex: ex, concurrency: concurrency}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Copy(ctx context.Context, src, dst string) error {
	loc, err := ParseURL(src)
	if err != nil {
		return err
	}
	return g.ex.Do(ctx, fmt.Sprintf("copy %s %s", src, dst), func(ctx context.Context) error {
		return g.download(ctx, loc, dst)
	})
}

func (g *GCS) download(ctx context.Context, loc Location, dst string) error {
	bucket := g.client.Bucket(loc.Bucket)
	it := bucket.Objects(ctx, &storage.Query{Prefix: loc.Prefix + "/"})

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	found := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			eg.Wait()
			return fmt.Errorf("failed to list gs://%s/%s: %w", loc.Bucket, loc.Prefix, err)
		}
		if skipKey(attrs.Name) {
			continue
		}
		found++

		obj := bucket.Object(attrs.Name)
		target := loc.LocalPath(dst, attrs.Name)
		eg.Go(func() error {
			return fetchObject(ctx, obj, target)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if found == 0 {
		return fmt.Errorf("no objects under gs://%s/%s", loc.Bucket, loc.Prefix)
	}
	return nil
}

func fetchObject(ctx context.Context, obj *storage.ObjectHandle, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	r, err := obj.NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", obj.ObjectName(), err)
	}
	defer r.Close()

	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to download %s: %w", obj.ObjectName(), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}
