package db

import (
	"database/sql"

	"gorm.io/gorm"
)

// ForUpdate returns the row lock suffix supported by the connection dialect.
func ForUpdate(conn *gorm.DB) string {
	if IsSQLite(conn) {
		return ""
	}
	return " FOR UPDATE"
}

// SnapshotTxOptions returns options for a consistent read-only snapshot.
// SQLite transactions are already serializable.
func SnapshotTxOptions(conn *gorm.DB) *sql.TxOptions {
	if IsSQLite(conn) {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}
