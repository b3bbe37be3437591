package user

import (
	"context"
	"slices"
	"strings"

	"github.com/Jabakyo/next-class/internal/store"
)

// Repository defines the persistence operations for the user module.
// Users live in the users document of the Store; every write is a whole-record
// read-modify-write inside one store transaction.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)

	// Update applies fn to the user inside a transaction that also declares
	// docs, so related documents change atomically with the user. The user is
	// written back only if fn returns nil.
	Update(ctx context.Context, id string, fn func(tx store.Tx, u *User) error, docs ...string) (*User, error)

	// Transact runs fn over the whole collection plus docs.
	Transact(ctx context.Context, fn func(tx store.Tx, users *Collection) error, docs ...string) error
}

// Collection is the users document loaded inside a transaction.
type Collection struct {
	items   []User
	changed bool
}

// ByID returns a copy of the user with id.
func (c *Collection) ByID(id string) (User, bool) {
	i := c.index(id)
	if i < 0 {
		return User{}, false
	}
	return c.items[i], true
}

// ByEmail returns a copy of the user with email (case-insensitive).
func (c *Collection) ByEmail(email string) (User, bool) {
	for _, u := range c.items {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return User{}, false
}

// Add appends u. Emails are unique.
func (c *Collection) Add(u User) error {
	if _, exists := c.ByEmail(u.Email); exists {
		return ErrEmailExists
	}
	c.items = append(c.items, u)
	c.changed = true
	return nil
}

// Replace overwrites the stored user with the same ID.
func (c *Collection) Replace(u User) error {
	i := c.index(u.ID)
	if i < 0 {
		return ErrNotFound
	}
	c.items[i] = u
	c.changed = true
	return nil
}

// Remove deletes the user with id and returns it.
func (c *Collection) Remove(id string) (User, bool) {
	i := c.index(id)
	if i < 0 {
		return User{}, false
	}
	u := c.items[i]
	c.items = slices.Delete(c.items, i, i+1)
	c.changed = true
	return u, true
}

// All returns the users in storage order.
func (c *Collection) All() []User {
	return slices.Clone(c.items)
}

func (c *Collection) index(id string) int {
	return slices.IndexFunc(c.items, func(u User) bool { return u.ID == id })
}

// repository implements the Repository interface on top of a store.Store.
type repository struct {
	store store.Store
}

// NewRepository creates a new user repository.
func NewRepository(s store.Store) Repository {
	return &repository{store: s}
}

func (r *repository) List(ctx context.Context) ([]User, error) {
	var users []User
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		users, err = store.Load[User](tx, store.Users)
		return err
	}, store.Users)
	return users, err
}

// FindByID retrieves a user by their unique ID.
// It returns ErrNotFound if no user is found.
func (r *repository) FindByID(ctx context.Context, id string) (*User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

// FindByEmail retrieves a user by their email address.
// It returns ErrNotFound if no user is found.
func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

func (r *repository) Transact(ctx context.Context, fn func(tx store.Tx, users *Collection) error, docs ...string) error {
	names := append([]string{store.Users}, docs...)
	return r.store.Update(ctx, func(tx store.Tx) error {
		items, err := store.Load[User](tx, store.Users)
		if err != nil {
			return err
		}
		users := &Collection{items: items}
		if err := fn(tx, users); err != nil {
			return err
		}
		if !users.changed {
			return nil
		}
		return tx.Put(store.Users, users.items)
	}, names...)
}

func (r *repository) Update(ctx context.Context, id string, fn func(tx store.Tx, u *User) error, docs ...string) (*User, error) {
	var out User
	err := r.Transact(ctx, func(tx store.Tx, users *Collection) error {
		u, ok := users.ByID(id)
		if !ok {
			return ErrNotFound
		}
		if err := fn(tx, &u); err != nil {
			return err
		}
		out = u
		return users.Replace(u)
	}, docs...)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
