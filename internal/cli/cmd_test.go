package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/p-n-ai/academy/internal/account"
	"github.com/p-n-ai/academy/internal/platform/config"
	"github.com/p-n-ai/academy/internal/progress"
)

// testApp uses the file back end in a temp dir so state survives between
// commands, and a sqlite file next to it as a second back end.
func testApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	return &App{
		Config: &config.Config{
			Storage: config.StorageConfig{
				Backend:    config.BackendFile,
				DataDir:    filepath.Join(dir, "data"),
				SQLitePath: filepath.Join(dir, "academy.db"),
			},
			Auth:        config.AuthConfig{AdminUsers: []string{"admin"}},
			ContentPath: filepath.Join("..", "content", "testdata"),
		},
		BcryptCost: bcrypt.MinCost,
	}
}

func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(app)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInitDB(t *testing.T) {
	app := testApp(t)
	out, err := execute(t, app, "init-db", "--backend", config.BackendSQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "Storage sqlite is ready.")
	assert.FileExists(t, app.Config.Storage.SQLitePath)
}

func TestCreateUser(t *testing.T) {
	app := testApp(t)

	out, err := execute(t, app, "create-user", "--username", "admin", "--password", "secret-pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user admin")
	assert.Contains(t, out, "The user is an admin.")

	_, err = execute(t, app, "create-user", "--username", "ADMIN", "--password", "secret-pw")
	assert.ErrorIs(t, err, account.ErrUsernameTaken)

	_, err = execute(t, app, "create-user", "--username", "bob")
	assert.Error(t, err, "password flag is required")
}

func TestExport(t *testing.T) {
	app := testApp(t)
	_, err := execute(t, app, "create-user", "--username", "alice", "--password", "secret-pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.xlsx")
	out, err := execute(t, app, "export", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 users")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Courses")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[1][0])
}

func TestMigrate_FileToSQLite(t *testing.T) {
	app := testApp(t)
	_, err := execute(t, app, "create-user", "--username", "alice", "--password", "secret-pw")
	require.NoError(t, err)

	out, err := execute(t, app, "migrate", "--from", config.BackendFile, "--to", config.BackendSQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "Copied 1 users")

	out, err = execute(t, app, "migrate", "--from", config.BackendFile, "--to", config.BackendSQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "1 skipped")

	_, err = execute(t, app, "migrate", "--from", config.BackendFile, "--to", config.BackendFile)
	assert.Error(t, err)
}

func TestCopyUsers(t *testing.T) {
	ctx := context.Background()
	src := account.NewMemoryStore()
	dst := account.NewMemoryStore()

	done := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := progress.Completion{}
	k := progress.LessonKey("py-basics", "hello")
	c[k] = progress.Record{Key: k, CompletedAt: done}
	require.NoError(t, src.Create(ctx, &account.User{ID: "legacy-1", Username: "old", PasswordHash: "pw", CreatedAt: done, Progress: c}))
	keep := uuid.NewString()
	require.NoError(t, src.Create(ctx, &account.User{ID: keep, Username: "new", PasswordHash: "pw", CreatedAt: done.Add(time.Hour)}))

	res, err := copyUsers(ctx, src, dst, true)
	require.NoError(t, err)
	assert.Equal(t, migrateResult{Copied: 2, Renamed: 1}, res)

	old, err := dst.GetByUsername(ctx, "old")
	require.NoError(t, err)
	_, err = uuid.Parse(old.ID)
	assert.NoError(t, err)
	assert.True(t, old.Progress.Has(k))

	kept, err := dst.GetByUsername(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, keep, kept.ID)

	res, err = copyUsers(ctx, src, dst, false)
	require.NoError(t, err)
	assert.Equal(t, migrateResult{Skipped: 2}, res)

	orig, err := src.GetByUsername(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "legacy-1", orig.ID, "source is untouched")
}

func TestValidateContent(t *testing.T) {
	app := testApp(t)

	out, err := execute(t, app, "validate-content")
	require.Error(t, err)
	assert.Contains(t, out, "broken.yaml")
	assert.Contains(t, err.Error(), "2 content problems")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "about.yaml"), []byte("title: About\n"), 0o644))
	out, err = execute(t, app, "validate-content", "--path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}
