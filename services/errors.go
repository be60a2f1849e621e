package services

import "errors"

// Reconciliation error taxonomy. Handlers map these onto HTTP status codes
// and the merger reports them per group; nothing below ever carries the
// underlying driver error text to a client.
var (
	// ErrMissingCredential means no bearer credential was presented at all.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidCredential means the identity authority rejected the credential.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrSchemaMismatch means no known display-name column exists in the
	// users table, so the upsert cannot be expressed.
	ErrSchemaMismatch = errors.New("users schema mismatch: no known display-name column")

	// ErrStoreUnavailable means the relational store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConflictUnresolved means a duplicate row still owns data that was
	// not re-parented and therefore must not be deleted.
	ErrConflictUnresolved = errors.New("duplicate row still owns data")
)
