package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/talkincode/shopadmin/internal/assetstore"
	"github.com/talkincode/shopadmin/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AssetStore is the blob storage the coordinator writes through.
type AssetStore interface {
	Store(ctx context.Context, root assetstore.Root, data []byte, suggestedName string) (string, error)
	Remove(ctx context.Context, root assetstore.Root, ref string) error
}

// Coordinator keeps a product record and its two asset files consistent.
//
// New assets are always written before the record points at them and old
// assets are removed only after the record stopped pointing at them, so a
// failure at any step leaves the record referencing files that exist. What
// can remain is an unreferenced file; those are queued in the orphan ledger
// or picked up by the reconciler's sweep.
type Coordinator struct {
	repo    Repository
	assets  AssetStore
	orphans OrphanRecorder
	events  EventPublisher
}

// NewCoordinator wires the coordinator. orphans and events may be nil.
func NewCoordinator(repo Repository, assets AssetStore, orphans OrphanRecorder, events EventPublisher) *Coordinator {
	if events == nil {
		events = noopPublisher{}
	}
	return &Coordinator{repo: repo, assets: assets, orphans: orphans, events: events}
}

// CreateProduct validates the input, stores both assets and creates the
// record. New products always start unavailable.
func (c *Coordinator) CreateProduct(ctx context.Context, in ProductInput, deliverable, image *Payload) (*domain.Product, error) {
	verr := &ValidationError{}
	checkInput(&in, verr)
	checkPayloads(deliverable, image, FormCreate, verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var fileRef, imageRef string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ref, err := c.assets.Store(gctx, assetstore.RootPrivate, deliverable.Data, deliverable.Filename)
		if err != nil {
			return err
		}
		fileRef = ref
		return nil
	})
	g.Go(func() error {
		ref, err := c.assets.Store(gctx, assetstore.RootPublic, image.Data, image.Filename)
		if err != nil {
			return err
		}
		imageRef = ref
		return nil
	})
	if err := g.Wait(); err != nil {
		cleanup := context.WithoutCancel(ctx)
		c.discard(cleanup, assetstore.RootPrivate, fileRef)
		c.discard(cleanup, assetstore.RootPublic, imageRef)
		return nil, wrapStore("store assets", err)
	}

	p := &domain.Product{
		Name:         in.Name,
		Description:  in.Description,
		PriceInCents: in.PriceInCents,
		IsAvailable:  false,
		FilePath:     fileRef,
		ImagePath:    imageRef,
	}
	if err := c.repo.Create(ctx, p); err != nil {
		cleanup := context.WithoutCancel(ctx)
		c.discard(cleanup, assetstore.RootPrivate, fileRef)
		c.discard(cleanup, assetstore.RootPublic, imageRef)
		return nil, err
	}

	zap.L().Info("product created",
		zap.String("namespace", "catalog"),
		zap.Int64("id", p.ID),
		zap.String("file", fileRef),
		zap.String("image", imageRef))
	c.publish(ctx, TopicProductCreated, p)
	return p, nil
}

// UpdateProduct replaces metadata and, when given non-empty payloads, the
// deliverable and/or image. A slot without a replacement keeps its
// reference untouched.
func (c *Coordinator) UpdateProduct(ctx context.Context, id int64, in ProductInput, deliverable, image *Payload) (*domain.Product, error) {
	verr := &ValidationError{}
	checkInput(&in, verr)
	checkPayloads(deliverable, image, FormUpdate, verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	current, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var newFile, newImage string
	if !deliverable.IsEmpty() {
		if newFile, err = c.assets.Store(ctx, assetstore.RootPrivate, deliverable.Data, deliverable.Filename); err != nil {
			return nil, wrapStore("store deliverable", err)
		}
	}
	if !image.IsEmpty() {
		if newImage, err = c.assets.Store(ctx, assetstore.RootPublic, image.Data, image.Filename); err != nil {
			c.discard(context.WithoutCancel(ctx), assetstore.RootPrivate, newFile)
			return nil, wrapStore("store image", err)
		}
	}

	patch := ProductPatch{
		Name:         &in.Name,
		Description:  &in.Description,
		PriceInCents: &in.PriceInCents,
	}
	if newFile != "" {
		patch.FilePath = &newFile
	}
	if newImage != "" {
		patch.ImagePath = &newImage
	}
	updated, err := c.repo.Update(ctx, id, patch)
	if err != nil {
		cleanup := context.WithoutCancel(ctx)
		c.discard(cleanup, assetstore.RootPrivate, newFile)
		c.discard(cleanup, assetstore.RootPublic, newImage)
		return nil, err
	}

	cleanup := context.WithoutCancel(ctx)
	if newFile != "" && current.FilePath != newFile {
		c.release(cleanup, assetstore.RootPrivate, current.FilePath, OrphanReasonReplaced)
	}
	if newImage != "" && current.ImagePath != newImage {
		c.release(cleanup, assetstore.RootPublic, current.ImagePath, OrphanReasonReplaced)
	}

	updated.OrderCount = current.OrderCount
	zap.L().Info("product updated",
		zap.String("namespace", "catalog"),
		zap.Int64("id", id),
		zap.Bool("file_replaced", newFile != ""),
		zap.Bool("image_replaced", newImage != ""))
	c.publish(ctx, TopicProductUpdated, updated)
	return updated, nil
}

// ToggleAvailability sets the availability flag. Setting the current value
// again is a no-op that still succeeds.
func (c *Coordinator) ToggleAvailability(ctx context.Context, id int64, available bool) (*domain.Product, error) {
	updated, err := c.repo.Update(ctx, id, ProductPatch{IsAvailable: &available})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, TopicProductAvailability, updated)
	return updated, nil
}

// DeleteProduct deletes the record and then both assets. Products with
// orders are refused with ErrProductHasOrders and nothing is touched.
func (c *Coordinator) DeleteProduct(ctx context.Context, id int64) (*domain.Product, error) {
	deleted, err := c.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	cleanup := context.WithoutCancel(ctx)
	c.release(cleanup, assetstore.RootPrivate, deleted.FilePath, OrphanReasonDeleted)
	c.release(cleanup, assetstore.RootPublic, deleted.ImagePath, OrphanReasonDeleted)

	zap.L().Info("product deleted",
		zap.String("namespace", "catalog"),
		zap.Int64("id", id))
	c.publish(ctx, TopicProductDeleted, deleted)
	return deleted, nil
}

// release removes an asset the record no longer references. A file that is
// already gone is fine; any other failure is queued for the reconciler.
func (c *Coordinator) release(ctx context.Context, root assetstore.Root, ref, reason string) {
	if ref == "" {
		return
	}
	err := c.assets.Remove(ctx, root, ref)
	switch {
	case err == nil:
		return
	case errors.Is(err, assetstore.ErrNotFound):
		zap.L().Info("asset already absent",
			zap.String("namespace", "catalog"),
			zap.String("root", string(root)),
			zap.String("ref", ref))
		return
	}
	c.queueOrphan(ctx, root, ref, reason, err)
}

// discard rolls back an asset stored for an operation that failed.
func (c *Coordinator) discard(ctx context.Context, root assetstore.Root, ref string) {
	if ref == "" {
		return
	}
	if err := c.assets.Remove(ctx, root, ref); err != nil && !errors.Is(err, assetstore.ErrNotFound) {
		c.queueOrphan(ctx, root, ref, OrphanReasonRollback, err)
	}
}

func (c *Coordinator) queueOrphan(ctx context.Context, root assetstore.Root, ref, reason string, cause error) {
	zap.L().Warn("orphan asset",
		zap.String("namespace", "catalog"),
		zap.String("root", string(root)),
		zap.String("ref", ref),
		zap.String("reason", reason),
		zap.Error(cause))
	if c.orphans == nil {
		return
	}
	if err := c.orphans.Record(ctx, root, ref, reason, cause); err != nil {
		zap.L().Error("record orphan asset failed",
			zap.String("namespace", "catalog"),
			zap.String("ref", ref),
			zap.Error(err))
	}
}

func (c *Coordinator) publish(ctx context.Context, topic string, p *domain.Product) {
	c.events.Publish(topic, ProductEvent{
		Topic:    topic,
		Product:  *p,
		Operator: OperatorFrom(ctx),
		At:       time.Now(),
	})
}
