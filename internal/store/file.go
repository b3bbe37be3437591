package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Jabakyo/next-class/internal/lock"
)

// File keeps each document in <dir>/<name>.json.
//
// Writers are serialized twice: by an in-process per-document lock, and by an
// advisory flock on <name>.json.lock so several processes sharing the directory
// also take turns. Writes go to a temporary file in the same directory which is
// fsynced and renamed over the target, so a crash never leaves partial JSON.
type File struct {
	dir     string
	locks   *lock.Local
	timeout time.Duration
	log     *slog.Logger
}

// NewFile creates the data directory if needed and returns a file-backed Store.
func NewFile(dir string, timeout time.Duration, log *slog.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &File{
		dir:     dir,
		locks:   lock.NewLocal(timeout),
		timeout: timeout,
		log:     log,
	}, nil
}

// Path returns the file holding the named document.
func (f *File) Path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

func (f *File) Update(ctx context.Context, fn func(tx Tx) error, names ...string) error {
	names = normalize(names)

	for _, name := range names {
		unlock, err := f.locks.Lock(ctx, name)
		if err != nil {
			return err
		}
		defer unlock()

		release, err := flock(ctx, f.Path(name)+".lock", f.timeout)
		if err != nil {
			return err
		}
		defer release()
	}

	tx := f.newTx(names, false)
	if err := fn(tx); err != nil {
		return err
	}

	for _, name := range tx.dirtyNames() {
		if err := writeAtomic(f.Path(name), tx.dirty[name]); err != nil {
			f.log.Error("failed to write document", "document", name, "error", err)
			return err
		}
	}
	return nil
}

// View reads without locking: rename-based writes mean a reader always sees
// either the previous or the next complete document.
func (f *File) View(ctx context.Context, fn func(tx Tx) error, names ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(f.newTx(normalize(names), true))
}

func (f *File) Close() error { return nil }

func (f *File) newTx(names []string, readOnly bool) *docTx {
	tx := newDocTx(names, readOnly, f.read)
	tx.locate = f.Path
	return tx
}

func (f *File) read(name string) ([]byte, bool, error) {
	raw, err := os.ReadFile(f.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read document %q: %w", name, err)
	}
	return raw, true, nil
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
