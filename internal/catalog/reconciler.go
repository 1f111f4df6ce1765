package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/talkincode/shopadmin/internal/assetstore"
	"go.uber.org/zap"
)

// AssetSweeper is the part of the asset store the reconciler needs.
type AssetSweeper interface {
	Remove(ctx context.Context, root assetstore.Root, ref string) error
	Walk(root assetstore.Root, fn func(assetstore.Object) error) error
}

type ReconcilerOptions struct {
	MaxAttempts int
	Grace       time.Duration
	Workers     int
	BatchSize   int
}

func (o ReconcilerOptions) withDefaults() ReconcilerOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.Grace <= 0 {
		o.Grace = time.Hour
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 200
	}
	return o
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked int `json:"checked"`
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Reconciler removes asset files that no product references.
type Reconciler struct {
	repo    Repository
	orphans OrphanRepository
	assets  AssetSweeper
	opts    ReconcilerOptions
	now     func() time.Time
}

func NewReconciler(repo Repository, orphans OrphanRepository, assets AssetSweeper, opts ReconcilerOptions) *Reconciler {
	return &Reconciler{
		repo:    repo,
		orphans: orphans,
		assets:  assets,
		opts:    opts.withDefaults(),
		now:     time.Now,
	}
}

// RetryOrphans retries the removals queued in the orphan ledger. Rows that
// reach MaxAttempts stay in the ledger for an operator to inspect.
func (r *Reconciler) RetryOrphans(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	pending, err := r.orphans.Pending(ctx, r.opts.MaxAttempts, r.opts.BatchSize)
	if err != nil {
		return report, wrapStore("load orphan assets", err)
	}
	if len(pending) == 0 {
		return report, nil
	}
	files, images, err := r.repo.AssetRefs(ctx)
	if err != nil {
		return report, err
	}

	for _, o := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		root := assetstore.Root(o.Root)
		if isReferenced(root, o.Path, files, images) {
			// referenced again, the file must stay
			report.Skipped++
			_ = r.orphans.Resolve(ctx, o.ID)
			continue
		}
		err := r.assets.Remove(ctx, root, o.Path)
		if err == nil || errors.Is(err, assetstore.ErrNotFound) {
			report.Removed++
			if err := r.orphans.Resolve(ctx, o.ID); err != nil {
				zap.L().Error("resolve orphan asset failed", zap.String("namespace", "reconciler"), zap.Error(err))
			}
			continue
		}
		report.Failed++
		if err := r.orphans.MarkFailed(ctx, o.ID, err.Error()); err != nil {
			zap.L().Error("update orphan asset failed", zap.String("namespace", "reconciler"), zap.Error(err))
		}
		if o.Attempts+1 >= r.opts.MaxAttempts {
			zap.L().Error("orphan asset gave up",
				zap.String("namespace", "reconciler"),
				zap.String("root", o.Root),
				zap.String("ref", o.Path),
				zap.Error(err))
		}
	}

	zap.L().Info("orphan retry finished",
		zap.String("namespace", "reconciler"),
		zap.Int("checked", report.Checked),
		zap.Int("removed", report.Removed),
		zap.Int("failed", report.Failed))
	return report, nil
}

type sweepCandidate struct {
	root assetstore.Root
	ref  string
}

// Sweep walks both roots and removes files no product references,
// including temp files left by interrupted writes. Files younger than the
// grace period are left alone so an in-flight create, whose assets are
// written before its record, is never swept.
func (r *Reconciler) Sweep(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	files, images, err := r.repo.AssetRefs(ctx)
	if err != nil {
		return report, err
	}

	cutoff := r.now().Add(-r.opts.Grace)
	var candidates []sweepCandidate
	for _, root := range []assetstore.Root{assetstore.RootPrivate, assetstore.RootPublic} {
		err := r.assets.Walk(root, func(obj assetstore.Object) error {
			report.Checked++
			if !obj.Temp && isReferenced(root, obj.Ref, files, images) {
				return nil
			}
			if obj.ModTime.After(cutoff) {
				report.Skipped++
				return nil
			}
			candidates = append(candidates, sweepCandidate{root: root, ref: obj.Ref})
			return ctx.Err()
		})
		if err != nil {
			return report, wrapStore("walk "+string(root)+" assets", err)
		}
	}
	if len(candidates) == 0 {
		return report, nil
	}

	pool, err := ants.NewPool(r.opts.Workers)
	if err != nil {
		return report, err
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		removed int64
		failed  int64
	)
	for _, cand := range candidates {
		cand := cand
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := r.assets.Remove(ctx, cand.root, cand.ref); err != nil && !errors.Is(err, assetstore.ErrNotFound) {
				atomic.AddInt64(&failed, 1)
				zap.L().Warn("sweep remove failed",
					zap.String("namespace", "reconciler"),
					zap.String("root", string(cand.root)),
					zap.String("ref", cand.ref),
					zap.Error(err))
				return
			}
			atomic.AddInt64(&removed, 1)
		})
		if submitErr != nil {
			wg.Done()
			atomic.AddInt64(&failed, 1)
		}
	}
	wg.Wait()

	report.Removed = int(removed)
	report.Failed = int(failed)
	zap.L().Info("asset sweep finished",
		zap.String("namespace", "reconciler"),
		zap.Int("checked", report.Checked),
		zap.Int("removed", report.Removed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

func isReferenced(root assetstore.Root, ref string, files, images map[string]struct{}) bool {
	var ok bool
	if root == assetstore.RootPrivate {
		_, ok = files[ref]
	} else {
		_, ok = images[ref]
	}
	return ok
}
