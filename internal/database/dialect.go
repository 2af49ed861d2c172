package database

import (
	"fmt"
	"strings"
)

// Dialect covers the DDL and locking differences between sqlite and postgres.
type Dialect interface {
	AutoIncrementPK() string
	TimestampType() string
	BoolType() string
	BoolTrue() string
	BoolFalse() string
	// ClaimLock is appended to the row selection of a claim.
	ClaimLock() string
}

type sqliteDialect struct{}

func (sqliteDialect) AutoIncrementPK() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }
func (sqliteDialect) TimestampType() string   { return "DATETIME" }
func (sqliteDialect) BoolType() string        { return "BOOLEAN" }
func (sqliteDialect) BoolTrue() string        { return "1" }
func (sqliteDialect) BoolFalse() string       { return "0" }
func (sqliteDialect) ClaimLock() string       { return "" }

type postgresDialect struct{}

func (postgresDialect) AutoIncrementPK() string { return "BIGSERIAL PRIMARY KEY" }
func (postgresDialect) TimestampType() string   { return "TIMESTAMPTZ" }
func (postgresDialect) BoolType() string        { return "BOOLEAN" }
func (postgresDialect) BoolTrue() string        { return "TRUE" }
func (postgresDialect) BoolFalse() string       { return "FALSE" }
func (postgresDialect) ClaimLock() string       { return " FOR UPDATE SKIP LOCKED" }

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	n := 0
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
