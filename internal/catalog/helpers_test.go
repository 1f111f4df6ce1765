package catalog

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/shopadmin/internal/assetstore"
	"github.com/talkincode/shopadmin/internal/domain"
	"github.com/talkincode/shopadmin/pkg/common"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "catalog.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(domain.Tables...))
	return db
}

// faultyStore wraps a real store and fails chosen operations.
type faultyStore struct {
	inner *assetstore.Store

	mu          sync.Mutex
	failStore   map[assetstore.Root]error
	failRemove  map[assetstore.Root]error
	stores      int
	removeCalls []string
}

func newFaultyStore(t *testing.T) *faultyStore {
	t.Helper()
	base := t.TempDir()
	return &faultyStore{
		inner: assetstore.New(assetstore.Roots{
			Private: filepath.Join(base, "private"),
			Public:  filepath.Join(base, "public"),
		}),
		failStore:  map[assetstore.Root]error{},
		failRemove: map[assetstore.Root]error{},
	}
}

func (s *faultyStore) Store(ctx context.Context, root assetstore.Root, data []byte, name string) (string, error) {
	s.mu.Lock()
	s.stores++
	err := s.failStore[root]
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.inner.Store(ctx, root, data, name)
}

func (s *faultyStore) Remove(ctx context.Context, root assetstore.Root, ref string) error {
	s.mu.Lock()
	s.removeCalls = append(s.removeCalls, string(root)+":"+ref)
	err := s.failRemove[root]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Remove(ctx, root, ref)
}

func (s *faultyStore) Path(root assetstore.Root, ref string) (string, error) {
	return s.inner.Path(root, ref)
}

func (s *faultyStore) Exists(root assetstore.Root, ref string) (bool, error) {
	return s.inner.Exists(root, ref)
}

func (s *faultyStore) Walk(root assetstore.Root, fn func(assetstore.Object) error) error {
	return s.inner.Walk(root, fn)
}

func (s *faultyStore) storeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores
}

// files lists every committed asset under root.
func (s *faultyStore) files(t *testing.T, root assetstore.Root) []string {
	t.Helper()
	var refs []string
	require.NoError(t, s.Walk(root, func(o assetstore.Object) error {
		if !o.Temp {
			refs = append(refs, o.Ref)
		}
		return nil
	}))
	return refs
}

// failingRepo makes Create and Update fail while delegating everything else.
type failingRepo struct {
	Repository
	createErr error
	updateErr error
}

func (r *failingRepo) Create(ctx context.Context, p *domain.Product) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.Repository.Create(ctx, p)
}

func (r *failingRepo) Update(ctx context.Context, id int64, patch ProductPatch) (*domain.Product, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	return r.Repository.Update(ctx, id, patch)
}

type recordingBus struct {
	mu     sync.Mutex
	topics []string
	events []ProductEvent
}

func (b *recordingBus) Publish(topic string, args ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	if len(args) == 1 {
		if ev, ok := args[0].(ProductEvent); ok {
			b.events = append(b.events, ev)
		}
	}
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func buildForm(t *testing.T, fields map[string]string, files map[string]filePart) *multipart.Form {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, fp := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fp.name))
		if fp.contentType != "" {
			h.Set("Content-Type", fp.contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(fp.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form
}

func validInput() ProductInput {
	return ProductInput{Name: "Go Patterns", Description: "An ebook", PriceInCents: 1999}
}

func deliverablePayload() *Payload {
	return &Payload{Filename: "book.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 book")}
}

func imagePayload() *Payload {
	return &Payload{Filename: "cover.png", ContentType: "image/png", Data: pngBytes}
}

type fixture struct {
	db      *gorm.DB
	repo    *GormProductRepository
	orphans *GormOrphanRepository
	store   *faultyStore
	bus     *recordingBus
	coord   *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:      db,
		repo:    NewGormProductRepository(db),
		orphans: NewGormOrphanRepository(db),
		store:   newFaultyStore(t),
		bus:     &recordingBus{},
	}
	f.coord = NewCoordinator(f.repo, f.store, f.orphans, f.bus)
	return f
}

func (f *fixture) addOrder(t *testing.T, productID int64) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.Order{ID: common.UUIDint64(), ProductID: productID, PricePaidInCents: 100}).Error)
}
