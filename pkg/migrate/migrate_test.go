package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hydromart/marketplace-backend/pkg/config"
)

func TestEmbeddedMigrationsApplyOnSQLite(t *testing.T) {
	dsn := "file:migrate_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, Run(ctx, sqlDB, DialectSQLite, "up"))
	version, err := Version(ctx, sqlDB, DialectSQLite)
	require.NoError(t, err)
	require.Equal(t, int64(20260301120400), version)

	for _, table := range []string{"vendors", "products", "promo_codes", "orders", "order_items", "promo_redemptions", "vendor_ledger_entries", "outbox_events"} {
		require.True(t, conn.Migrator().HasTable(table), table)
	}

	// stock can never go negative at the storage level
	err = conn.Exec(`INSERT INTO products (id, name, stock) VALUES (?, 'Jug', -1)`, uuid.NewString()).Error
	require.Error(t, err)

	require.NoError(t, MigrateToVersion(ctx, sqlDB, DialectSQLite, "20260301120100"))
	require.False(t, conn.Migrator().HasTable("orders"))
	require.True(t, conn.Migrator().HasTable("promo_codes"))

	require.Error(t, MigrateToVersion(ctx, sqlDB, DialectSQLite, "latest"))
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
	require.NoError(t, ValidateFS(FS(), "migrations"))

	data, err := os.ReadFile(filepath.Join("migrations", "20260301120300_create_vendor_ledger_entries.sql"))
	require.NoError(t, err)
	require.Contains(t, string(data), "uniq_vendor_ledger_item_type ON vendor_ledger_entries (order_item_id, type)")
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.ErrorContains(t, ValidateDir(dir), "invalid migration filename")

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_x.sql"), []byte("-- +goose Up\n"), 0o644))
	require.ErrorContains(t, ValidateDir(dir), "Down")

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), []byte("-- +goose Down\n-- +goose Up\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_b.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.sql"), []byte(""), 0o644))
	err := ValidateDir(dir)
	require.ErrorContains(t, err, "must come after")
	require.ErrorContains(t, err, "duplicate migration version 20260101000000")
	require.ErrorContains(t, err, "invalid migration filename \"broken.sql\"")

	require.Error(t, ValidateDir(filepath.Join(dir, "missing")))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Payout Index!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_payout_index.sql"))
	require.Equal(t, dir, filepath.Dir(path))
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(body), "-- +goose Up")
	require.Contains(t, string(body), "-- +goose Down")
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	cfg := &config.Config{}
	require.Equal(t, DialectPostgres, DialectFor(cfg))
	cfg.FeatureFlags.UseSQLite = true
	require.Equal(t, DialectSQLite, DialectFor(cfg))
}
