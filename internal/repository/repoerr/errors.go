// Package repoerr defines the sentinel errors shared by the persistence
// layer and its callers.  Services match on these values without
// inspecting driver errors.
package repoerr

import (
    "database/sql"
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key.
var ErrDuplicate = errors.New("duplicate")

// ErrNoCopies is returned when a guarded decrement finds no copy left.
var ErrNoCopies = errors.New("no copies available")

// ErrConflict is returned when an update lost a race with another writer,
// such as settling a transaction that was settled concurrently.
var ErrConflict = errors.New("conflict")

const (
    mysqlDuplicateEntry = 1062
    mysqlNoReferenced   = 1452
)

// Translate maps driver errors onto the package sentinels.
func Translate(err error) error {
    if err == nil {
        return nil
    }
    if errors.Is(err, sql.ErrNoRows) {
        return ErrNotFound
    }
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        switch me.Number {
        case mysqlDuplicateEntry:
            return ErrDuplicate
        case mysqlNoReferenced:
            return ErrNotFound
        }
    }
    return err
}
