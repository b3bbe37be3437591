package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Jabakyo/next-class/internal/lock"
	"go.etcd.io/bbolt"
)

var documentsBucket = []byte("Documents")

var errAbandoned = errors.New("bolt: update abandoned before it started")

// Bolt keeps every document as one key in a bbolt bucket. A Store.Update is a
// single bbolt write transaction, so multi-document updates commit atomically.
// bbolt holds an exclusive file lock, so only one process opens the database.
type Bolt struct {
	db          *bbolt.DB
	lockTimeout time.Duration
}

// OpenBolt opens (or creates) the database at path.
func OpenBolt(path string, timeout time.Duration) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Bolt{db: db, lockTimeout: timeout}, nil
}

// Update waits at most the lock timeout (or until ctx ends) for bbolt's single
// writer slot. A transaction that has not started by then is abandoned and
// never runs fn; one that has started is always waited for.
func (b *Bolt) Update(ctx context.Context, fn func(tx Tx) error, names ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names = normalize(names)

	var (
		mu        sync.Mutex
		started   bool
		abandoned bool
		begun     = make(chan struct{})
		done      = make(chan error, 1)
	)
	go func() {
		done <- b.db.Update(func(btx *bbolt.Tx) error {
			mu.Lock()
			if abandoned {
				mu.Unlock()
				return errAbandoned
			}
			started = true
			mu.Unlock()
			close(begun)
			return b.apply(btx, fn, names)
		})
	}()

	var expired <-chan time.Time
	if b.lockTimeout > 0 {
		timer := time.NewTimer(b.lockTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-done:
		return err
	case <-begun:
		return <-done
	case <-expired:
	case <-ctx.Done():
	}

	mu.Lock()
	if started {
		mu.Unlock()
		return <-done
	}
	abandoned = true
	mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return lock.ErrTimeout.WithDetail(fmt.Sprintf("timed out after %s waiting for the bolt writer", b.lockTimeout))
}

// apply runs on the writer goroutine, so a panic in fn is returned as an error
// and the transaction rolls back.
func (b *Bolt) apply(btx *bbolt.Tx, fn func(tx Tx) error, names []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bolt update panicked: %v", r)
		}
	}()

	bucket := btx.Bucket(documentsBucket)
	tx := newDocTx(names, false, boltLoader(bucket))
	if err := fn(tx); err != nil {
		return err
	}
	for _, name := range tx.dirtyNames() {
		if err := bucket.Put([]byte(name), tx.dirty[name]); err != nil {
			return fmt.Errorf("put document %q: %w", name, err)
		}
	}
	return nil
}

func (b *Bolt) View(ctx context.Context, fn func(tx Tx) error, names ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(btx *bbolt.Tx) error {
		return fn(newDocTx(normalize(names), true, boltLoader(btx.Bucket(documentsBucket))))
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

// boltLoader copies values out, since bbolt memory is only valid inside the transaction.
func boltLoader(bucket *bbolt.Bucket) func(string) ([]byte, bool, error) {
	return func(name string) ([]byte, bool, error) {
		v := bucket.Get([]byte(name))
		if v == nil {
			return nil, false, nil
		}
		return bytes.Clone(v), true, nil
	}
}
