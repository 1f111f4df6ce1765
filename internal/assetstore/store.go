package assetstore

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Root selects one of the two storage roots.
type Root string

const (
	// RootPrivate holds deliverables; never served directly.
	RootPrivate Root = "private"
	// RootPublic holds preview images served as static content.
	RootPublic Root = "public"
)

// Prefix is the directory, inside each root, that holds product assets.
// Asset references start with it, e.g. "products/<uuid>-manual.pdf".
const Prefix = "products"

var (
	ErrNotFound    = errors.New("asset not found")
	ErrInvalidRef  = errors.New("invalid asset reference")
	ErrUnknownRoot = errors.New("unknown asset root")
)

// Roots are the absolute directories backing each Root.
type Roots struct {
	Private string
	Public  string
}

// Store writes asset blobs under uniquely generated names. A reference is
// the path relative to its root, so the same string is stored on the
// product record and used to resolve the file later.
type Store struct {
	roots   map[Root]string
	newName func(suggested string) string
}

func New(roots Roots) *Store {
	return &Store{
		roots: map[Root]string{
			RootPrivate: roots.Private,
			RootPublic:  roots.Public,
		},
		newName: uniqueName,
	}
}

// Store persists data and returns its reference. Existing assets are never
// overwritten.
func (s *Store) Store(ctx context.Context, root Root, data []byte, suggestedName string) (string, error) {
	dir, err := s.rootDir(root)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := path.Join(Prefix, s.newName(suggestedName))
	target := filepath.Join(dir, filepath.FromSlash(ref))
	if err := atomicWriteFile(ctx, target, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "store %s asset", root)
	}
	return ref, nil
}

// Remove deletes the asset. A missing file is reported as ErrNotFound so
// callers can decide whether that matters.
func (s *Store) Remove(ctx context.Context, root Root, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.Path(root, ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "%s/%s", root, ref)
		}
		return errors.Wrapf(err, "remove %s asset", root)
	}
	return nil
}

// Path resolves a reference to an absolute file path.
func (s *Store) Path(root Root, ref string) (string, error) {
	dir, err := s.rootDir(root)
	if err != nil {
		return "", err
	}
	clean, err := cleanRef(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}

// Exists reports whether the referenced asset is present.
func (s *Store) Exists(root Root, ref string) (bool, error) {
	p, err := s.Path(root, ref)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return st.Mode().IsRegular(), nil
}

// Object describes a stored asset found by Walk. Temp is set for the
// temp file of a write that is in flight or was interrupted.
type Object struct {
	Ref     string
	Size    int64
	ModTime time.Time
	Temp    bool
}

// Walk visits every file under root, including leftover temp files.
func (s *Store) Walk(root Root, fn func(Object) error) error {
	dir, err := s.rootDir(root)
	if err != nil {
		return err
	}
	base := filepath.Join(dir, Prefix)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return fn(Object{
			Ref:     filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Temp:    strings.HasPrefix(d.Name(), tmpPrefix),
		})
	})
}

// DisplayName strips the unique token from a reference, giving back the
// name the asset was uploaded with.
func DisplayName(ref string) string {
	base := path.Base(ref)
	// uuid string form is 36 chars followed by "-"
	if len(base) > 37 && base[36] == '-' {
		if _, err := uuid.Parse(base[:36]); err == nil {
			return base[37:]
		}
	}
	return base
}

func (s *Store) rootDir(root Root) (string, error) {
	dir, ok := s.roots[root]
	if !ok || strings.TrimSpace(dir) == "" {
		return "", errors.Wrapf(ErrUnknownRoot, "%q", root)
	}
	return dir, nil
}

func cleanRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "\\") || path.IsAbs(ref) {
		return "", errors.Wrapf(ErrInvalidRef, "%q", ref)
	}
	clean := path.Clean(ref)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.Wrapf(ErrInvalidRef, "%q", ref)
	}
	return clean, nil
}

func uniqueName(suggested string) string {
	return uuid.NewString() + "-" + sanitizeName(suggested)
}

func sanitizeName(name string) string {
	name = strings.ToValidUTF8(name, "_")
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			continue
		case r == '/' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "asset"
	}
	if len(out) > maxNameLen {
		i := len(out) - maxNameLen
		for i < len(out) && !utf8.RuneStart(out[i]) {
			i++
		}
		out = out[i:]
	}
	return out
}

const (
	tmpPrefix  = ".tmp-"
	maxNameLen = 180
)

func atomicWriteFile(ctx context.Context, target string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	// Create temp file in same dir so os.Rename is atomic.
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Lstat(target); err == nil {
		return fs.ErrExist
	}
	return os.Rename(tmpName, target)
}
