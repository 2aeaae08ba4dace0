// Package badgerdb contains a BadgerDB-backed user store for single-node
// deployments that do not want an SQL database.
//
// Key layout:
//
//	user:<uuid>      -> JSON encoded userRecord
//	username:<name>  -> raw 16 byte user id
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/homedisk/internal/errs"
	"github.com/and161185/homedisk/internal/model"
)

const (
	prefixUser     = "user:"
	prefixUsername = "username:"
)

func keyUser(id uuid.UUID) []byte    { return []byte(prefixUser + id.String()) }
func keyUsername(name string) []byte { return []byte(prefixUsername + name) }

type userRecord struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Open opens (or creates) a database in dir. An empty dir opens an in-memory store.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", dir, err)
	}
	return db, nil
}

// UserRepo implements UserRepository on a badger key-value store.
type UserRepo struct {
	db  *badger.DB
	now func() time.Time
}

// NewUserRepo constructs a user repository.
func NewUserRepo(db *badger.DB) *UserRepo {
	return &UserRepo{db: db, now: time.Now}
}

// Create stores the user and its username index in one transaction.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now().UTC()
	}
	data, err := json.Marshal(userRecord(*u))
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		for _, k := range [][]byte{keyUser(u.ID), keyUsername(u.Username)} {
			_, err := txn.Get(k)
			if err == nil {
				return errs.ErrAlreadyExists
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		if err := txn.Set(keyUser(u.ID), data); err != nil {
			return err
		}
		return txn.Set(keyUsername(u.Username), u.ID.Bytes())
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent transaction wrote one of the same keys.
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID loads a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var u *model.User
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		u, err = getUser(txn, id)
		return err
	})
	return u, err
}

// GetByUsername resolves the username index and loads the user.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var u *model.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyUsername(username))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errs.ErrNotFound
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return fmt.Errorf("username index for %s: %w", username, err)
		}
		u, err = getUser(txn, id)
		return err
	})
	return u, err
}

func getUser(txn *badger.Txn, id uuid.UUID) (*model.User, error) {
	item, err := txn.Get(keyUser(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec userRecord
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	u := model.User(rec)
	return &u, nil
}
