package postgres_test

import (
	"os"
	"testing"

	"github.com/speleodb/speleodb/pkg/kv/kvtest"
	"github.com/speleodb/speleodb/pkg/kv/postgres"
)

func TestPostgresKV(t *testing.T) {
	dsn := os.Getenv("SPELEODB_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SPELEODB_TEST_PG_DSN not set")
	}
	kvtest.TestDriver(t, postgres.DriverName, dsn)
}
