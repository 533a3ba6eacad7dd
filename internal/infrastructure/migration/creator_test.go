package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add invoice notes", "add_invoice_notes"},
		{"Add-Invoice-Notes", "add_invoice_notes"},
		{"ADD_INVOICE_NOTES", "add_invoice_notes"},
		{"add__payment__fee", "add_payment_fee"},
		{"Add Index 123", "add_index_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "add invoice notes", "Free text notes on invoices", testNow)
	require.NoError(t, err)

	assert.Equal(t, "20260314103000", mf.Version)
	assert.Equal(t, filepath.Join(dir, "20260314103000_add_invoice_notes.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "20260314103000_add_invoice_notes.down.sql"), mf.DownPath)

	upContent, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(upContent), "add invoice notes")
	assert.Contains(t, string(upContent), "Free text notes on invoices")

	downContent, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(downContent), "Rollback")
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "sql")

	_, err := CreateMigration(nestedPath, "test", "", testNow)
	require.NoError(t, err)

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "", testNow)
	assert.Error(t, err)
}

func TestCreateMigration_KeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	first, err := CreateMigration(dir, "add fee", "", testNow)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(first.UpPath, []byte("ALTER TABLE invoices ADD fee int;"), 0o644))

	_, err = CreateMigration(dir, "add fee", "", testNow)
	require.Error(t, err)

	content, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "ALTER TABLE")
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000002_add_fee.up.sql":     {Data: []byte("--")},
		"sql/000002_add_fee.down.sql":   {Data: []byte("--")},
		"sql/000001_init.up.sql":        {Data: []byte("--")},
		"sql/000001_init.down.sql":      {Data: []byte("--")},
		"sql/README.md":                 {Data: []byte("docs")},
		"sql/nested.up.sql/ignored.sql": {Data: []byte("--")},
	}

	migrations, err := ListMigrations(fsys, "sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init", "000002_add_fee"}, migrations)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	migrations, err := ListMigrations(fstest.MapFS{}, "missing")
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListEmbedded(t *testing.T) {
	migrations, err := ListEmbedded()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.True(t, strings.HasSuffix(migrations[0], "_create_billing_tables"))

	for _, name := range migrations {
		_, err := Embedded.ReadFile("sql/" + name + ".down.sql")
		assert.NoError(t, err, "missing down migration for %s", name)
	}
}
