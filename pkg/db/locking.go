package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Locking helpers make the row-lock mode explicit at call sites instead of
// hiding it behind ORM defaults. SQLite (used by tests) has a single writer
// and rejects FOR UPDATE syntax, so the clause is applied on Postgres only.

// LockForUpdate takes an exclusive row lock that blocks until granted.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockSkipLocked takes exclusive row locks but skips rows already locked by a
// concurrent transaction, so contending allocators never block each other.
func LockSkipLocked(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}
