// Package token implements a single-use, time-boxed credential ledger backed by
// one store document. Only SHA-256 hashes of issued tokens are persisted.
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/Jabakyo/next-class/internal/domainerr"
	"github.com/Jabakyo/next-class/internal/store"
)

var (
	ErrNotFound         = domainerr.New("token", "ErrTokenNotFound", http.StatusBadRequest, "token is invalid or has already been used")
	ErrExpired          = domainerr.New("token", "ErrTokenExpired", http.StatusBadRequest, "token has expired")
	ErrDuplicatePending = domainerr.New("token", "ErrDuplicatePending", http.StatusConflict, "a pending token already exists for this address")
)

// Record is one issued token. P is the payload carried until redemption.
type Record[P any] struct {
	Hash      string     `json:"tokenHash"`
	Subject   string     `json:"subject"`
	UserID    string     `json:"userId,omitempty"`
	Payload   P          `json:"payload"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Redeemable reports whether the record may still be claimed at now.
func (r Record[P]) Redeemable(now time.Time) bool {
	return !r.Used && r.ExpiresAt.After(now)
}

// IssueOptions tune Issue.
type IssueOptions struct {
	// RejectPending fails with ErrDuplicatePending when the subject already
	// holds a redeemable token.
	RejectPending bool
	// ReplaceExisting drops every other token of the same user (or subject).
	ReplaceExisting bool
	// TTL overrides the ledger default.
	TTL time.Duration
}

// Ledger issues and redeems tokens stored in one document.
type Ledger[P any] struct {
	store store.Store
	doc   string
	ttl   time.Duration
	now   func() time.Time
}

// New returns a ledger over the named document.
func New[P any](s store.Store, doc string, ttl time.Duration) *Ledger[P] {
	return &Ledger[P]{store: s, doc: doc, ttl: ttl, now: time.Now}
}

// Document is the store document holding this ledger's records.
func (l *Ledger[P]) Document() string { return l.doc }

// Issue stores a new token for subject and returns the raw token string. The
// raw value is never persisted.
func (l *Ledger[P]) Issue(ctx context.Context, subject, userID string, payload P, opts IssueOptions) (string, error) {
	raw, err := Generate()
	if err != nil {
		return "", err
	}

	ttl := l.ttl
	if opts.TTL != 0 {
		ttl = opts.TTL
	}

	err = l.store.Update(ctx, func(tx store.Tx) error {
		records, err := store.Load[Record[P]](tx, l.doc)
		if err != nil {
			return err
		}
		now := l.now()

		kept := records[:0]
		for _, r := range records {
			sameOwner := r.Subject == subject || (userID != "" && r.UserID == userID)
			if sameOwner && opts.RejectPending && r.Redeemable(now) {
				return ErrDuplicatePending
			}
			if sameOwner && (opts.ReplaceExisting || !r.Redeemable(now)) {
				continue
			}
			kept = append(kept, r)
		}

		kept = append(kept, Record[P]{
			Hash:      Hash(raw),
			Subject:   subject,
			UserID:    userID,
			Payload:   payload,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		})
		return tx.Put(l.doc, kept)
	}, l.doc)
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Redeem claims token exactly once and returns its record.
func (l *Ledger[P]) Redeem(ctx context.Context, token string) (Record[P], error) {
	var out Record[P]
	err := l.store.Update(ctx, func(tx store.Tx) error {
		r, err := l.RedeemIn(tx, token, l.now())
		out = r
		return err
	}, l.doc)
	return out, err
}

// RedeemIn claims token inside a caller-owned transaction which must declare
// Document(). The flip to used is only persisted if the transaction commits,
// so callers can create or modify other records atomically with redemption.
func (l *Ledger[P]) RedeemIn(tx store.Tx, token string, now time.Time) (Record[P], error) {
	records, err := store.Load[Record[P]](tx, l.doc)
	if err != nil {
		return Record[P]{}, err
	}

	hash := Hash(token)
	for i := range records {
		if records[i].Hash != hash {
			continue
		}
		if records[i].Used {
			return Record[P]{}, ErrNotFound
		}
		if !records[i].ExpiresAt.After(now) {
			return Record[P]{}, ErrExpired
		}
		records[i].Used = true
		usedAt := now
		records[i].UsedAt = &usedAt
		if err := tx.Put(l.doc, records); err != nil {
			return Record[P]{}, err
		}
		return records[i], nil
	}
	return Record[P]{}, ErrNotFound
}

// Purge removes records that expired or were used more than one TTL ago.
func (l *Ledger[P]) Purge(ctx context.Context) (int, error) {
	removed := 0
	err := l.store.Update(ctx, func(tx store.Tx) error {
		records, err := store.Load[Record[P]](tx, l.doc)
		if err != nil {
			return err
		}
		cutoff := l.now().Add(-l.ttl)
		kept := records[:0]
		for _, r := range records {
			stale := r.ExpiresAt.Before(cutoff) || (r.UsedAt != nil && r.UsedAt.Before(cutoff))
			if stale {
				continue
			}
			kept = append(kept, r)
		}
		removed = len(records) - len(kept)
		if removed == 0 {
			return nil
		}
		return tx.Put(l.doc, kept)
	}, l.doc)
	return removed, err
}

// DeleteForUser drops every record owned by userID or addressed to subject.
func (l *Ledger[P]) DeleteForUser(tx store.Tx, userID, subject string) error {
	records, err := store.Load[Record[P]](tx, l.doc)
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, r := range records {
		if (userID != "" && r.UserID == userID) || (subject != "" && r.Subject == subject) {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == len(records) {
		return nil
	}
	return tx.Put(l.doc, kept)
}

// Generate returns 32 bytes of crypto/rand entropy, hex encoded.
func Generate() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash is the persisted form of a token.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
