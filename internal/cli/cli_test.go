package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("DATABASE_LOG_LEVEL", "silent")
	t.Setenv("AUTH_BCRYPT_COST", "4")
	t.Setenv("AUDIT_RETENTION_DAYS", "30")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("1.0.0", "abc123")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "version")
	assert.Equal(t, "locallibrary 1.0.0 (abc123)\n", out)
}

func TestUserManagement(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "createuser", "--username", "librarian", "--password", "correct-horse-battery")
	assert.Contains(t, out, "Created user librarian")

	_, err := run(t, "createuser", "--username", "librarian", "--password", "correct-horse-battery")
	assert.Error(t, err, "usernames are unique")

	out = mustRun(t, "grant", "librarian", "can_mark_returned", "add_book")
	assert.Contains(t, out, "can_mark_returned")
	assert.Contains(t, out, "add_book")

	_, err = run(t, "grant", "librarian", "fly")
	assert.Error(t, err, "unknown codenames are rejected")

	out = mustRun(t, "revoke", "librarian", "add_book")
	assert.Contains(t, out, "can_mark_returned")
	assert.NotContains(t, out, "add_book")

	_, err = run(t, "grant", "nobody", "add_book")
	assert.Error(t, err)

	out = mustRun(t, "deleteuser", "librarian")
	assert.Contains(t, out, "Deleted user librarian")

	_, err = run(t, "deleteuser", "librarian")
	assert.Error(t, err)
}

func TestGenreCommands(t *testing.T) {
	setupEnv(t)

	out := mustRun(t, "genre", "add", "Fantasy")
	assert.Equal(t, "Created genre 1\n", out)

	_, err := run(t, "genre", "add", "fantasy")
	assert.Error(t, err, "names are unique regardless of case")

	mustRun(t, "genre", "rename", "1", "High Fantasy")
	mustRun(t, "language", "add", "English")

	out = mustRun(t, "genre", "list")
	assert.Contains(t, out, "High Fantasy")
	assert.NotContains(t, out, "English")

	_, err = run(t, "genre", "rename", "abc", "Poetry")
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	setupEnv(t)

	assert.Equal(t, "Seeded 4 books\n", mustRun(t, "seed"))
	assert.Equal(t, "Catalog already has books, nothing to do\n", mustRun(t, "seed"))

	out := mustRun(t, "genre", "list")
	assert.Contains(t, out, "Science Fiction")
}

var copyIDPattern = regexp.MustCompile(`Created copy ([0-9a-f-]{36})`)

func TestLoanCommands(t *testing.T) {
	setupEnv(t)
	mustRun(t, "seed")
	mustRun(t, "createuser", "--username", "reader", "--password", "correct-horse-battery")

	out := mustRun(t, "copy", "add", "--book", "1", "--imprint", "Gollancz, 2008", "--status", "a")
	match := copyIDPattern.FindStringSubmatch(out)
	require.Len(t, match, 2, out)
	copyID := match[1]
	assert.Contains(t, out, "(Available)")

	_, err := run(t, "copy", "add", "--book", "999", "--imprint", "Nowhere")
	assert.Error(t, err, "the book must exist")

	out = mustRun(t, "lend", copyID, "reader")
	assert.Contains(t, out, "Lent "+copyID+" to reader until ")

	_, err = run(t, "lend", copyID, "reader", "--due", "2000-01-01")
	assert.Error(t, err, "due dates in the past are rejected")

	_, err = run(t, "lend", "not-a-uuid", "reader")
	assert.Error(t, err)

	out = mustRun(t, "return", copyID)
	assert.Equal(t, "Returned "+copyID+"\n", out)

	out = mustRun(t, "audit", "list", "--type", "loan")
	assert.Contains(t, out, "Marked returned")
	assert.Contains(t, out, "Lent to reader")
	assert.Contains(t, out, "2 of 2 events")
}

func TestAuditPrune(t *testing.T) {
	setupEnv(t)
	mustRun(t, "genre", "add", "Poetry")

	out := mustRun(t, "audit", "prune")
	assert.Equal(t, "Deleted 0 events older than 30 days\n", out)

	out = mustRun(t, "audit", "list")
	assert.Contains(t, out, "1 of 1 events")
}
