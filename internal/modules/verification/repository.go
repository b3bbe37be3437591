package verification

import (
	"cmp"
	"context"
	"slices"

	"github.com/Jabakyo/next-class/internal/store"
)

// Repository reads the verification request log. Writes happen through Log
// inside a transaction opened by the user repository, so a request and its
// user always change together.
type Repository interface {
	List(ctx context.Context) ([]Request, error)
	FindByID(ctx context.Context, id string) (*Request, error)
}

type repository struct {
	store store.Store
}

// NewRepository creates a new verification repository.
func NewRepository(s store.Store) Repository {
	return &repository{store: s}
}

func (r *repository) List(ctx context.Context) ([]Request, error) {
	var out []Request
	err := r.store.View(ctx, func(tx store.Tx) error {
		log, err := LoadLog(tx)
		if err != nil {
			return err
		}
		out = log.items
		return nil
	}, store.VerificationRequests)
	return out, err
}

func (r *repository) FindByID(ctx context.Context, id string) (*Request, error) {
	requests, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range requests {
		if requests[i].ID == id {
			return &requests[i], nil
		}
	}
	return nil, ErrRequestNotFound
}

// Log is the verification-requests document loaded inside a transaction.
type Log struct {
	items   []Request
	changed bool
}

// LoadLog reads the request log from tx.
func LoadLog(tx store.Tx) (*Log, error) {
	items, err := store.Load[Request](tx, store.VerificationRequests)
	if err != nil {
		return nil, err
	}
	return &Log{items: items}, nil
}

// Save writes the log back if it changed.
func (l *Log) Save(tx store.Tx) error {
	if !l.changed {
		return nil
	}
	return tx.Put(store.VerificationRequests, l.items)
}

// ByID returns a copy of the request with id.
func (l *Log) ByID(id string) (Request, bool) {
	i := slices.IndexFunc(l.items, func(r Request) bool { return r.ID == id })
	if i < 0 {
		return Request{}, false
	}
	return l.items[i], true
}

// PendingFor returns the user's pending request, if any.
func (l *Log) PendingFor(userID string) (Request, bool) {
	i := slices.IndexFunc(l.items, func(r Request) bool {
		return r.UserID == userID && r.Status == RequestPending
	})
	if i < 0 {
		return Request{}, false
	}
	return l.items[i], true
}

// Add appends r.
func (l *Log) Add(r Request) {
	l.items = append(l.items, r)
	l.changed = true
}

// Replace overwrites the request with the same ID.
func (l *Log) Replace(r Request) error {
	i := slices.IndexFunc(l.items, func(x Request) bool { return x.ID == r.ID })
	if i < 0 {
		return ErrRequestNotFound
	}
	l.items[i] = r
	l.changed = true
	return nil
}

// RemoveForUser drops every request of userID and returns them.
func (l *Log) RemoveForUser(userID string) []Request {
	var removed []Request
	kept := l.items[:0]
	for _, r := range l.items {
		if r.UserID == userID {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	if len(removed) > 0 {
		l.items = kept
		l.changed = true
	}
	return removed
}

// newestFirst sorts by submission time, most recent first.
func newestFirst(requests []Request) {
	slices.SortStableFunc(requests, func(a, b Request) int {
		return cmp.Compare(b.SubmittedAt.UnixNano(), a.SubmittedAt.UnixNano())
	})
}
