// Package repository provides data access interfaces and implementations
// for the Syllabus Review Service.
//
// # Repository Interfaces
//
//   - SyllabusRepository: syllabus versions, their content and lifecycle stamps
//   - WorkflowItemRepository: reviewer tasks attached to in-flight versions
//   - DocumentRepository: uploaded documents and their persisted AI job pointers
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrAlreadyExists: Unique constraint violation
//   - domain.ErrInFlight: A second version of a root entered review
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Transactions
//
// Repositories accept a DBTX so the same implementation serves both the pool
// and a pgx.Tx. Multi-repository units of work go through a Transactor:
//
//	err := tx.WithinTx(ctx, func(repos repository.Repositories) error {
//	    v, err := repos.Syllabi.GetForUpdate(ctx, id)
//	    ...
//	    return repos.WorkflowItems.Create(ctx, item)
//	})
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/syllabus-review-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
//
//	txRepo := repository.NewPgSyllabusRepository(tx)
type DBTX = database.DBTX

// txBeginner is implemented by *database.DB, *pgxpool.Pool and pgxmock pools.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// Constraint names referenced when mapping violations to domain errors.
const (
	constraintOneInFlight     = "syllabus_versions_one_in_flight_idx"
	constraintOnePendingItem  = "workflow_items_one_pending_idx"
	constraintRootVersionUniq = "syllabus_versions_root_version_uniq"
)

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// Repositories groups the repositories bound to one DBTX.
type Repositories struct {
	Syllabi       SyllabusRepository
	WorkflowItems WorkflowItemRepository
	Documents     DocumentRepository
}

// NewPgRepositories binds all PostgreSQL repositories to db.
func NewPgRepositories(db DBTX) Repositories {
	return Repositories{
		Syllabi:       NewPgSyllabusRepository(db),
		WorkflowItems: NewPgWorkflowItemRepository(db),
		Documents:     NewPgDocumentRepository(db),
	}
}

// Transactor runs a function against repositories sharing one transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

// PgTransactor is a Transactor over a PostgreSQL pool.
type PgTransactor struct {
	db txBeginner
}

var _ Transactor = (*PgTransactor)(nil)

// NewPgTransactor creates a transactor over db.
func NewPgTransactor(db txBeginner) *PgTransactor {
	return &PgTransactor{db: db}
}

// WithinTx implements Transactor.
func (t *PgTransactor) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewPgRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// pgErrorCode returns the SQLSTATE and constraint name of err, if it is a PgError.
func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	code, _ := pgErrorCode(err)
	return code == pgUniqueViolation
}

// isPgForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isPgForeignKeyViolation(err error) bool {
	code, _ := pgErrorCode(err)
	return code == pgForeignKeyViolation
}

// nullString returns a pointer to the string if non-empty, otherwise nil.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// derefString returns the pointed-to string or "".
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
