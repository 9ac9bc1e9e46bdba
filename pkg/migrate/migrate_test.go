package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocery-backend/pkg/config"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunUpCreatesSchema(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, db, config.DBDriverSQLite, "up"))

	for _, table := range []string{"products", "users", "cart_items", "orders", "order_items"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoErrorf(t, err, "table %s missing", table)
	}
}

func TestOrdersSessionIDIsNullableUnique(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Run(context.Background(), db, config.DBDriverSQLite, "up"))

	insert := `INSERT INTO orders (order_number, payment_method, payment_status, total_amount, payment_session_id, customer_name, customer_phone)
		VALUES (?, 'card', 'pending', 100, ?, 'Ana', '555')`

	_, err := db.Exec(insert, "ORD-1", nil)
	require.NoError(t, err)
	_, err = db.Exec(insert, "ORD-2", nil)
	require.NoError(t, err, "null session ids must not collide")

	_, err = db.Exec(insert, "ORD-3", "cs_test_1")
	require.NoError(t, err)
	_, err = db.Exec(insert, "ORD-4", "cs_test_1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "UNIQUE constraint failed")
}

func TestOrderItemsRejectInconsistentTotals(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Run(context.Background(), db, config.DBDriverSQLite, "up"))

	res, err := db.Exec(`INSERT INTO orders (order_number, payment_method, payment_status, total_amount, customer_name, customer_phone)
		VALUES ('ORD-9', 'cash', 'completed', 2000, 'Ana', '555')`)
	require.NoError(t, err)
	orderID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price) VALUES (?, 7, 2, 1000, 1999)`, orderID)
	require.Error(t, err)
	_, err = db.Exec(`INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price) VALUES (?, 7, 2, 1000, 2000)`, orderID)
	require.NoError(t, err)
}

func TestMigrateToVersionDownToZero(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, Run(ctx, db, config.DBDriverSQLite, "up"))
	require.NoError(t, MigrateToVersion(ctx, db, config.DBDriverSQLite, "0"))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'orders'`).Scan(&count))
	require.Zero(t, count)
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateEmbedded(config.DBDriverSQLite))
	require.NoError(t, ValidateEmbedded(config.DBDriverPostgres))

	_, err := Dir("mysql")
	require.Error(t, err)
}

func TestCreateSQLMigrationWritesEveryDialect(t *testing.T) {
	root := t.TempDir()

	files, err := CreateSQLMigration(root, "Add Coupons!")
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		require.True(t, strings.HasSuffix(f, "_add_coupons.sql"), f)
	}

	require.NoError(t, ValidateDir(root+"/"+config.DBDriverSQLite))
	require.NoError(t, ValidateDir(root+"/"+config.DBDriverPostgres))

	_, err = CreateSQLMigration(root, "!!!")
	require.Error(t, err)
}
