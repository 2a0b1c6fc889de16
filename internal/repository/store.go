// Package repository is the MySQL implementation of the persistence layer.
// The circulation tables are reached through Store, which hands callers a
// transactional view satisfying service.Tx; auth-related tables keep their
// own small repos (UserRepo, TokenRepo) since the handlers use them
// directly outside the lending engine.
package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/library-lending/internal/service"
)

// Store wraps the database handle and implements service.Store.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store bound to the given database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for callers that manage their own
// statements (auth repos share the pool).
func (s *Store) DB() *sql.DB { return s.db }

// WithinTx starts a read-write transaction, runs fn against it and commits
// when fn returns nil.  Any error from fn rolls the transaction back and is
// returned unchanged so domain errors survive the trip.
func (s *Store) WithinTx(ctx context.Context, fn func(tx service.Tx) error) error {
	return s.run(ctx, nil, fn)
}

// ReadOnly is WithinTx with a read-only transaction, giving aggregation
// queries one consistent snapshot.
func (s *Store) ReadOnly(ctx context.Context, fn func(tx service.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, fn func(tx service.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	if err := fn(&storeTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// storeTx carries one *sql.Tx and implements service.Tx.  Its methods are
// spread across the entity files in this package.
type storeTx struct {
	tx *sql.Tx
}

// placeholders returns "?,?,...,?" with n markers for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// idArgs widens a slice of IDs into query arguments.
func idArgs(ids []uint64) []interface{} {
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
