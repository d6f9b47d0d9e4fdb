// Package storagetest starts an in-process redis for tests of the ledger store
// and everything built on it.
package storagetest

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/storage"
)

// Run starts a miniredis that is closed with the test and returns options
// pointing at it.
func Run(t testing.TB) (*miniredis.Miniredis, *config.RedisOptions) {
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatal(err)
	}

	return mr, &config.RedisOptions{
		Host:       mr.Host(),
		Port:       port,
		Namespace:  "test",
		OpTimeout:  5000,
		MaxRetries: 50,
	}
}

// New returns a connected store together with the server behind it, so tests
// can compare raw server state with Dump.
func New(t testing.TB) (*storage.DB, *miniredis.Miniredis) {
	mr, options := Run(t)

	db, err := storage.NewStorage(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db, mr
}

func NewDB(t testing.TB) *storage.DB {
	db, _ := New(t)
	return db
}
