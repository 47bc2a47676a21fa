package mongorepo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kirinyoku/tix-ledger/internal/mongo"
	"github.com/kirinyoku/tix-ledger/internal/repository"
	"github.com/kirinyoku/tix-ledger/internal/repository/repotest"
)

// TEST_MONGO_URI must point at a replica set; the test is skipped when it
// is unset or unreachable.
func TestStoreContract(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.New(ctx, mongo.Config{URI: uri})
	if err != nil {
		t.Skipf("mongo unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	repotest.Run(t, func(t *testing.T) repository.Store {
		ctx := context.Background()
		if err := client.Database("tixledger_test").Drop(ctx); err != nil {
			t.Fatalf("drop: %v", err)
		}
		s, err := Open(ctx, client, "tixledger_test", 100)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		return s
	})
}
