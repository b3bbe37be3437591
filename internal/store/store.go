// Package store persists JSON documents (one document per logical collection) and
// serializes read-modify-write cycles against them.
//
// Every backend honours the same contract: writers touching the same document are
// serialized, a missing document reads as the caller's default, and a document
// that no longer decodes surfaces as *CorruptError and is never repaired.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Document names used by the application.
const (
	Users                   = "users"
	VerificationRequests    = "verification-requests"
	EmailVerificationTokens = "email-verification-tokens"
	ResetTokens             = "reset-tokens"
	NotificationDeadLetters = "notification-dead-letters"
)

var (
	// ErrUndeclared is returned when a transaction touches a document it did not declare.
	ErrUndeclared = errors.New("document not declared in transaction")

	// ErrReadOnly is returned by Put inside View.
	ErrReadOnly = errors.New("transaction is read-only")
)

// CorruptError reports a document that exists but cannot be decoded.
type CorruptError struct {
	Name string
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("store: document %q at %s is corrupt: %v", e.Name, e.Path, e.Err)
	}
	return fmt.Sprintf("store: document %q is corrupt: %v", e.Name, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Tx gives access to the documents declared when the transaction was opened.
type Tx interface {
	// Get decodes the named document into dst. It reports false, leaving dst
	// untouched, when the document does not exist yet.
	Get(name string, dst any) (bool, error)

	// Put replaces the named document. Writes become visible on commit.
	Put(name string, v any) error
}

// Store runs transactions over named documents.
type Store interface {
	// Update runs fn with exclusive access to names. Documents are locked in
	// sorted order and written back only if fn returns nil.
	Update(ctx context.Context, fn func(tx Tx) error, names ...string) error

	// View runs fn against a consistent read of names.
	View(ctx context.Context, fn func(tx Tx) error, names ...string) error

	Close() error
}

// Read returns the named document, or def when it does not exist.
func Read[T any](ctx context.Context, s Store, name string, def T) (T, error) {
	out := def
	err := s.View(ctx, func(tx Tx) error {
		var v T
		found, err := tx.Get(name, &v)
		if err != nil {
			return err
		}
		if found {
			out = v
		}
		return nil
	}, name)
	return out, err
}

// Write replaces the named document.
func Write[T any](ctx context.Context, s Store, name string, v T) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.Put(name, v)
	}, name)
}

// Update reads the named document (def when missing), applies mutate and writes
// the result back under the document's lock. A mutate error aborts the write.
func Update[T any](ctx context.Context, s Store, name string, def T, mutate func(T) (T, error)) (T, error) {
	var out T
	err := s.Update(ctx, func(tx Tx) error {
		cur := def
		var v T
		found, err := tx.Get(name, &v)
		if err != nil {
			return err
		}
		if found {
			cur = v
		}
		next, err := mutate(cur)
		if err != nil {
			return err
		}
		out = next
		return tx.Put(name, next)
	}, name)
	return out, err
}

// Load decodes a collection document as a slice of records; a missing document is empty.
func Load[T any](tx Tx, name string) ([]T, error) {
	var records []T
	if _, err := tx.Get(name, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// docTx is the backend-independent part of a transaction: declared-document
// checks, lazy loading, decoding and buffering of writes.
type docTx struct {
	declared map[string]bool
	readOnly bool
	load     func(name string) ([]byte, bool, error)
	locate   func(name string) string
	dirty    map[string][]byte
}

func newDocTx(names []string, readOnly bool, load func(string) ([]byte, bool, error)) *docTx {
	declared := make(map[string]bool, len(names))
	for _, n := range names {
		declared[n] = true
	}
	return &docTx{
		declared: declared,
		readOnly: readOnly,
		load:     load,
		dirty:    make(map[string][]byte),
	}
}

func (t *docTx) Get(name string, dst any) (bool, error) {
	if !t.declared[name] {
		return false, fmt.Errorf("%w: %s", ErrUndeclared, name)
	}
	raw, ok := t.dirty[name]
	if !ok {
		var (
			found bool
			err   error
		)
		raw, found, err = t.load(name)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		cerr := &CorruptError{Name: name, Err: err}
		if t.locate != nil {
			cerr.Path = t.locate(name)
		}
		return false, cerr
	}
	return true, nil
}

func (t *docTx) Put(name string, v any) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if !t.declared[name] {
		return fmt.Errorf("%w: %s", ErrUndeclared, name)
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document %q: %w", name, err)
	}
	t.dirty[name] = raw
	return nil
}

// dirtyNames returns written documents in sorted order.
func (t *docTx) dirtyNames() []string {
	names := make([]string, 0, len(t.dirty))
	for n := range t.dirty {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// normalize sorts and de-duplicates document names so locks are always taken
// in the same order.
func normalize(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
