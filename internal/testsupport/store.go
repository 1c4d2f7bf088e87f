package testsupport

import (
	"testing"

	"memeshop/internal/config"
	"memeshop/internal/journal"
	"memeshop/internal/queue"
)

// MustOpenJournal opens the run journal for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Journal {
	t.Helper()

	j, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		j.Close()
	})
	return j
}

// SeedStore writes records to the store, failing the test on error.
func SeedStore(t testing.TB, store *queue.Store, records ...*queue.Record) {
	t.Helper()

	if err := store.Save(records); err != nil {
		t.Fatalf("seed %s: %v", store.Path(), err)
	}
}

// MustLoad reads every record from the store.
func MustLoad(t testing.TB, store *queue.Store) []*queue.Record {
	t.Helper()

	records, err := store.Load()
	if err != nil {
		t.Fatalf("load %s: %v", store.Path(), err)
	}
	return records
}
