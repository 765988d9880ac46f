// Package repository provides data access for the literature assistant's
// delivery audit log.
//
// Repositories follow the DBTX constructor pattern: implementations accept
// the database.DBTX interface, so the same repository works against a
// connection pool, a transaction, or a mock in tests. All implementations
// are safe for concurrent use; the underlying pgxpool handles connection
// pooling and synchronization. Methods return domain errors wrapped with
// fmt.Errorf and %w.
package repository

import (
	"github.com/helixir/literature-assistant/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX
