package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/talkincode/shopadmin/internal/catalog"
	"go.uber.org/zap"
)

// CheckStorage verifies that the asset roots are separate, exist and are
// writable.
func (a *Application) CheckStorage() error {
	private, public := a.appConfig.Storage.PrivateDir, a.appConfig.Storage.PublicDir
	if private != "" && public != "" {
		if within(private, public) || within(public, private) {
			return fmt.Errorf("private and public storage roots must be separate directories")
		}
	}
	roots := map[string]string{
		"private": a.appConfig.Storage.PrivateDir,
		"public":  a.appConfig.Storage.PublicDir,
	}
	for name, dir := range roots {
		if dir == "" {
			return fmt.Errorf("storage %s root is not configured", name)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage %s root: %w", name, err)
		}
		probe, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return fmt.Errorf("storage %s root is not writable: %w", name, err)
		}
		_ = probe.Close()
		_ = os.Remove(probe.Name())
		zap.L().Info("storage root ready",
			zap.String("namespace", "app"),
			zap.String("root", name),
			zap.String("dir", filepath.Clean(dir)))
	}
	return nil
}

// within reports whether dir is base or lies below it.
func within(dir, base string) bool {
	d, err1 := filepath.Abs(dir)
	b, err2 := filepath.Abs(base)
	if err1 != nil || err2 != nil {
		return filepath.Clean(dir) == filepath.Clean(base)
	}
	rel, err := filepath.Rel(b, d)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ReportOrphans logs the size of the orphan ledger backlog.
func (a *Application) ReportOrphans(ctx context.Context) (int64, error) {
	n, err := catalog.NewGormOrphanRepository(a.gormDB).Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		zap.L().Warn("orphan assets waiting for removal",
			zap.String("namespace", "app"),
			zap.Int64("count", n))
	}
	return n, nil
}

// RunReconcile runs one orphan retry pass followed by a sweep.
func (a *Application) RunReconcile(ctx context.Context) (retry, sweep catalog.ReconcileReport, err error) {
	if retry, err = a.reconciler.RetryOrphans(ctx); err != nil {
		return retry, sweep, err
	}
	sweep, err = a.reconciler.Sweep(ctx)
	return retry, sweep, err
}
