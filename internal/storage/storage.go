package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ModernizacionMuniCBA/imagenes-satelitales-cordoba/internal/shell"
)

// Copier copies every object under a remote product prefix into a local
// directory. Like "gsutil cp -r", the product lands in
// dst/<last element of src>/.
type Copier interface {
	Copy(ctx context.Context, src, dst string) error
}

// Location is a parsed object storage URL.
type Location struct {
	Scheme string
	Bucket string
	Prefix string
}

func ParseURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid object URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Location{}, fmt.Errorf("invalid object URL %q: expected scheme://bucket/prefix", raw)
	}
	return Location{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// LocalPath maps an object key below loc to its path under dst.
func (loc Location) LocalPath(dst, key string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(key, loc.Prefix), "/")
	return filepath.Join(dst, path.Base(loc.Prefix), filepath.FromSlash(rel))
}

// skipKey reports placeholder objects that only mark folders.
func skipKey(key string) bool {
	return strings.HasSuffix(key, "/") || strings.HasSuffix(key, "_$folder$")
}

// Gsutil copies with the gsutil command line tool.
type Gsutil struct {
	ex shell.Executor
}

func NewGsutil(ex shell.Executor) *Gsutil {
	return &Gsutil{ex: ex}
}

func (g *Gsutil) Copy(ctx context.Context, src, dst string) error {
	return g.ex.Run(ctx, shell.NewCommand("gsutil", "-m", "cp", "-r", src, dst))
}

// Mux dispatches on the URL scheme ("gs", "s3").
type Mux map[string]Copier

func (m Mux) Copy(ctx context.Context, src, dst string) error {
	loc, err := ParseURL(src)
	if err != nil {
		return err
	}
	c, ok := m[loc.Scheme]
	if !ok {
		return fmt.Errorf("no copier configured for %s:// URLs", loc.Scheme)
	}
	return c.Copy(ctx, src, dst)
}
