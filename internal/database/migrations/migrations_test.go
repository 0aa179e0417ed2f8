package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/models"
	"ms-watchmarket/internal/order/db"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := files.ReadDir("sql")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_init.up.sql")
	assert.Contains(t, names, "000001_init.down.sql")
}

func TestRun_Disabled(t *testing.T) {
	r := NewRunner(nil, Options{AutoMigrate: false}, logger.Discard())
	assert.NoError(t, r.Run())
	assert.NoError(t, r.Close())
}

// TestMigrations_Postgres applies the schema to a real Postgres and checks
// the order models round-trip through it.
func TestMigrations_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}

	ctx := context.Background()
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "watch",
				"POSTGRES_PASSWORD": "watch",
				"POSTGRES_DB":       "watchmarket",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Postgres container unavailable: %v", err)
	}
	defer pg.Terminate(ctx)

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://watch:watch@%s:%s/watchmarket?sslmode=disable", host, port.Port())
	sqldb, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer sqldb.Close()

	runner := NewRunner(sqldb, DefaultOptions(), logger.Discard())
	require.NoError(t, runner.Run())
	// second run is a no-op
	require.NoError(t, runner.Run())

	orderDB := &db.DB{Bun: bun.NewDB(sqldb, pgdialect.New())}
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, orderDB.CreateUser(ctx, &models.User{ID: "u-1", Email: "a@example.com", FullName: "A", CreatedAt: now}))

	order := &models.Order{
		ID: "order-pg", ListingID: "listing-1", BuyerID: "u-1", SellerID: "u-2",
		Title: "Submariner", FinalPrice: 12000, Currency: "usd",
		Status: models.StatusPendingPayment, PaymentStatus: models.PaymentPending, ShippingStatus: models.ShippingPending,
		ShippingCost: 87, VerificationCost: 100, TotalCost: 12187,
		Version: 1, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, orderDB.CreateOrder(ctx, order))

	next := *order
	next.PaymentStatus = models.PaymentProcessing
	require.NoError(t, orderDB.SaveOrder(ctx, &next, 1))
	assert.ErrorIs(t, orderDB.SaveOrder(ctx, order, 1), models.ErrConcurrentUpdate)

	got, err := orderDB.GetOrderByID(ctx, "order-pg")
	require.NoError(t, err)
	assert.Equal(t, 12187.0, got.TotalCost)
	assert.Equal(t, int64(2), got.Version)

	_, err = sqldb.ExecContext(ctx, `INSERT INTO orders (order_id, listing_id, buyer_id, seller_id, title, final_price, currency,
		status, payment_status, shipping_status, created_at, updated_at)
		VALUES ('bad', 'l', 'same', 'same', 't', 10, 'usd', 'pending_payment', 'pending', 'pending', now(), now())`)
	assert.Error(t, err, "buyer and seller must differ")

	require.NoError(t, runner.MigrateDown())
	require.NoError(t, runner.Close())
}
