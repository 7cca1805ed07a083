package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio"

	"github.com/tendant/simple-catalog/pkg/catalog"
	"github.com/tendant/simple-catalog/pkg/catalog/objectkey"
)

const backendName = "fs"

// Backend is a filesystem implementation of the catalog.BlobStore interface.
// Blobs become visible under their final name only once fully written.
type Backend struct {
	// mu orders in-flight writes against removal of empty shard directories
	mu      sync.RWMutex
	baseDir string
	keys    objectkey.Generator
}

// Config options for the filesystem backend
type Config struct {
	BaseDir      string              // Base directory for storing files
	KeyGenerator objectkey.Generator // Stored-name strategy, flat when nil
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	keys := config.KeyGenerator
	if keys == nil {
		keys = objectkey.NewFlatGenerator()
	}

	return &Backend{
		baseDir: filepath.Clean(config.BaseDir),
		keys:    keys,
	}, nil
}

// Store streams content to a temp file next to its destination and renames it into place
func (b *Backend) Store(ctx context.Context, req catalog.StoreRequest) (*catalog.BlobInfo, error) {
	name := b.keys.GenerateKey(req.ID, &objectkey.KeyMetadata{
		FieldName: req.FieldName,
		Extension: req.Extension,
	})
	filePath, err := b.resolve(name)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, b.wrap("store", name, err)
	}

	pending, err := renameio.TempFile(filepath.Dir(filePath), filePath)
	if err != nil {
		return nil, b.wrap("store", name, err)
	}
	defer pending.Cleanup()

	size, err := io.Copy(pending, catalog.LimitReader(req.Reader, req.SizeLimit))
	if err != nil {
		if errors.Is(err, catalog.ErrSizeLimitExceeded) {
			return nil, fmt.Errorf("%s: %w", name, catalog.ErrSizeLimitExceeded)
		}
		return nil, b.wrap("store", name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, b.wrap("store", name, err)
	}
	if err := pending.Chmod(0644); err != nil {
		return nil, b.wrap("store", name, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return nil, b.wrap("store", name, err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, b.wrap("store", name, err)
	}
	return &catalog.BlobInfo{Name: name, Size: size, ModTime: info.ModTime()}, nil
}

// Open opens the blob for reading
func (b *Backend) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	filePath, err := b.resolve(storedName)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", storedName, catalog.ErrBlobNotFound)
	} else if err != nil {
		return nil, b.wrap("open", storedName, err)
	}

	return file, nil
}

// Stat returns size and modification time of the blob
func (b *Backend) Stat(ctx context.Context, storedName string) (*catalog.BlobInfo, error) {
	filePath, err := b.resolve(storedName)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", storedName, catalog.ErrBlobNotFound)
	} else if err != nil {
		return nil, b.wrap("stat", storedName, err)
	}

	return &catalog.BlobInfo{Name: storedName, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Delete deletes the blob and prunes shard directories left empty
func (b *Backend) Delete(ctx context.Context, storedName string) error {
	filePath, err := b.resolve(storedName)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", storedName, catalog.ErrBlobNotFound)
		}
		return b.wrap("delete", storedName, err)
	}

	if dir := filepath.Dir(filePath); dir != b.baseDir {
		b.mu.Lock()
		b.cleanupEmptyDirectories(dir)
		b.mu.Unlock()
	}

	return nil
}

// List walks the base directory. Temp files of in-flight writes are skipped.
func (b *Backend) List(ctx context.Context) ([]catalog.BlobInfo, error) {
	var blobs []catalog.BlobInfo

	err := filepath.WalkDir(b.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		} else if err != nil {
			return err
		}

		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			return err
		}
		blobs = append(blobs, catalog.BlobInfo{
			Name:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, b.wrap("list", "", err)
	}

	return blobs, nil
}

// resolve maps a stored name onto a path inside the base directory
func (b *Backend) resolve(storedName string) (string, error) {
	native := filepath.FromSlash(storedName)
	if storedName == "" || !filepath.IsLocal(native) || strings.HasPrefix(filepath.Base(native), ".") {
		return "", catalog.ValidationError("invalid stored name %q", storedName)
	}
	return filepath.Join(b.baseDir, native), nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || !strings.HasPrefix(dir, b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

func (b *Backend) wrap(op, key string, err error) error {
	return &catalog.StorageError{Backend: backendName, Key: key, Op: op, Err: err}
}
