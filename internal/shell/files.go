package shell

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// TempPath returns a unique sibling of dst for a stage to write into before
// publishing. The extension is kept so tools can infer the format.
func TempPath(dst string) string {
	ext := filepath.Ext(dst)
	base := strings.TrimSuffix(dst, ext)
	return fmt.Sprintf("%s.%s.tmp%s", base, uuid.NewString()[:8], ext)
}

// Publish moves tmp into place at dst. On failure tmp is removed.
func Publish(ctx context.Context, ex Executor, tmp, dst string) error {
	return ex.Do(ctx, fmt.Sprintf("mv %s %s", quote(tmp), quote(dst)), func(context.Context) error {
		if err := os.Rename(tmp, dst); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("failed to publish %s: %w", dst, err)
		}
		return nil
	})
}

func MkdirAll(ctx context.Context, ex Executor, dir string) error {
	return ex.Do(ctx, "mkdir -p "+quote(dir), func(context.Context) error {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		return nil
	})
}

// RunTo runs cmd writing a temp sibling of dst, then publishes it at dst.
// build receives the temp path and returns the command that writes it.
func RunTo(ctx context.Context, ex Executor, dst string, build func(tmp string) Command) error {
	tmp := TempPath(dst)
	if err := ex.Run(ctx, build(tmp).Writes(tmp)); err != nil {
		return err
	}
	return Publish(ctx, ex, tmp, dst)
}
