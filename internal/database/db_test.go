package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"app:secret@tcp(db:3306)/library?charset=utf8mb4&parseTime=true&loc=UTC",
		DSN("app", "secret", "db", "3306", "library"))
	assert.Equal(t,
		"root@tcp(localhost:3306)/library?charset=utf8mb4&parseTime=true&loc=UTC",
		DSN("root", "", "localhost", "3306", "library"))
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (id INT);\n\n  CREATE TABLE b (id INT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, got)
}

func TestEmbeddedMigrationCreatesEveryTable(t *testing.T) {
	body, err := migrations.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)

	stmts := splitStatements(string(body))
	require.Len(t, stmts, 7)
	for _, table := range []string{"users", "refresh_tokens", "books", "transactions", "reviews", "notifications", "book_requests"} {
		found := false
		for _, s := range stmts {
			if strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS "+table+" (") {
				found = true
			}
		}
		assert.True(t, found, "missing table %s", table)
	}
}
