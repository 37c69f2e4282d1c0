// Package storage persists statements, their transactions and the
// processing log. The pipeline depends only on the Repository interface;
// implementations back it with SQLite or process memory. Deleting a
// statement cascades to its transactions and log entries.
package storage

import (
	"context"

	"github.com/google/uuid"

	"bank-statement-processor/internal/models"
)

// Repository is the persistence contract consumed by the pipeline and
// the API layer. Identifiers are opaque UUIDs.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Statements
	CreateStatement(ctx context.Context, stmt *models.Statement) error
	GetStatement(ctx context.Context, id uuid.UUID) (*models.Statement, error)
	ListStatements(ctx context.Context, userID uuid.UUID) ([]*models.Statement, error)
	UpdateStatement(ctx context.Context, stmt *models.Statement) error

	// ClaimForProcessing atomically moves a pending statement to
	// processing. It is the compare-and-set that guarantees at most one
	// worker processes a statement: exactly one concurrent caller
	// observes claimed=true, every other observes false with no error.
	ClaimForProcessing(ctx context.Context, id uuid.UUID) (claimed bool, err error)

	// ResetStatement explicitly returns a completed or failed statement
	// to pending so it may be processed again. Resetting a statement in
	// any other state is a conflict.
	ResetStatement(ctx context.Context, id uuid.UUID) error

	// DeleteStatement removes the statement and cascades to its
	// transactions and log entries.
	DeleteStatement(ctx context.Context, id uuid.UUID) error

	// Transactions
	CreateTransactions(ctx context.Context, txs []*models.Transaction) error
	ListTransactions(ctx context.Context, statementID uuid.UUID) ([]*models.Transaction, error)

	// Processing log (append-only)
	AppendLog(ctx context.Context, entry *models.ProcessingLogEntry) error
	ListLogs(ctx context.Context, statementID uuid.UUID) ([]*models.ProcessingLogEntry, error)
}
