package maintenance_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"memeshop/internal/logging"
	"memeshop/internal/maintenance"
	"memeshop/internal/queue"
	"memeshop/internal/services"
)

type fakeShop struct {
	sales      map[string]int
	salesErr   error
	salesCalls map[string]int
	deleted    []string
	deleteErr  map[string]error
}

func (f *fakeShop) CountSales(_ context.Context, productID string, daysBack int) (int, error) {
	if f.salesCalls == nil {
		f.salesCalls = map[string]int{}
	}
	f.salesCalls[productID]++
	if daysBack != 60 {
		return 0, errors.New("unexpected sales window")
	}
	if f.salesErr != nil {
		return 0, f.salesErr
	}
	return f.sales[productID], nil
}

func (f *fakeShop) DeleteProduct(_ context.Context, productID string) error {
	if err := f.deleteErr[productID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, productID)
	return nil
}

var now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func listed(id int64, listing, storefront, created string) *queue.Record {
	rec := &queue.Record{ID: id, PostID: listing, Title: "meme " + listing, ListingID: queue.StringPtr(listing)}
	if storefront != "" {
		rec.StorefrontID = queue.StringPtr(storefront)
	}
	if created != "" {
		rec.CreatedAt = queue.StringPtr(created)
	}
	return rec
}

func newPruner(t *testing.T, shop *fakeShop, store *queue.Store, dryRun bool) *maintenance.Pruner {
	t.Helper()
	p, err := maintenance.New(shop, shop, store, maintenance.Options{
		MinSales:        3,
		MaxAgeDays:      20,
		SalesWindowDays: 60,
		CacheSize:       8,
		DryRun:          dryRun,
		Now:             func() time.Time { return now },
	}, maintenance.Hooks{}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestPruneDeletesOldUnsoldListings(t *testing.T) {
	store := queue.NewStore(filepath.Join(t.TempDir(), "printify_upload.jsonl"))
	records := []*queue.Record{
		listed(1, "old-unsold", "gid://shopify/Product/1", "2024-05-01"),
		listed(2, "old-sold", "gid://shopify/Product/2", "2024-05-01"),
		listed(3, "young", "gid://shopify/Product/3", "2024-05-25"),
		listed(4, "no-storefront", "", "2024-04-01"),
		listed(5, "no-date", "gid://shopify/Product/5", ""),
		listed(6, "boundary", "gid://shopify/Product/6", "2024-05-12"),
	}
	if err := store.Save(records); err != nil {
		t.Fatalf("Save: %v", err)
	}
	shop := &fakeShop{sales: map[string]int{"gid://shopify/Product/2": 3, "gid://shopify/Product/1": 2}}

	result, err := newPruner(t, shop, store, false).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Checked != 3 || result.Pruned != 2 || result.Kept != 1 || result.Young != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(shop.deleted) != 2 || shop.deleted[0] != "old-unsold" || shop.deleted[1] != "boundary" {
		t.Fatalf("unexpected deletions %v", shop.deleted)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != len(records) {
		t.Fatalf("pruned records must stay in the store, got %d", len(loaded))
	}
	pruned, _ := queue.Find(loaded, 1)
	if pruned.PrunedAt == nil || *pruned.PrunedAt != "2024-06-01T09:00:00Z" {
		t.Fatalf("unexpected pruned_at %v", pruned.PrunedAt)
	}
	sold, _ := queue.Find(loaded, 2)
	if sold.IsPruned() {
		t.Fatal("listing with enough sales must be kept")
	}
}

func TestPruneKeepsRecordWhenDeleteFails(t *testing.T) {
	store := queue.NewStore(filepath.Join(t.TempDir(), "printify_upload.jsonl"))
	if err := store.Save([]*queue.Record{
		listed(1, "a", "gid://shopify/Product/1", "2024-01-01"),
		listed(2, "b", "gid://shopify/Product/2", "2024-01-01"),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	shop := &fakeShop{deleteErr: map[string]error{
		"a": services.Wrap(services.ErrTransient, "printify", "delete product", "502", nil),
		"b": services.Wrap(services.ErrNotFound, "printify", "delete product", "gone", nil),
	}}

	result, err := newPruner(t, shop, store, false).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 || result.Pruned != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a, _ := queue.Find(loaded, 1); a.IsPruned() {
		t.Fatal("failed deletion must leave the record untouched")
	}
	if b, _ := queue.Find(loaded, 2); !b.IsPruned() {
		t.Fatal("already-deleted listing should be marked pruned")
	}
}

func TestPruneCachesSalesPerProduct(t *testing.T) {
	store := queue.NewStore(filepath.Join(t.TempDir(), "printify_upload.jsonl"))
	if err := store.Save([]*queue.Record{
		listed(1, "a", "gid://shopify/Product/9", "2024-01-01"),
		listed(2, "b", "gid://shopify/Product/9", "2024-01-01"),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	shop := &fakeShop{sales: map[string]int{"gid://shopify/Product/9": 10}}

	if _, err := newPruner(t, shop, store, false).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if shop.salesCalls["gid://shopify/Product/9"] != 1 {
		t.Fatalf("expected one sales lookup, got %d", shop.salesCalls["gid://shopify/Product/9"])
	}
}

func TestPruneSalesFailureKeepsListing(t *testing.T) {
	store := queue.NewStore(filepath.Join(t.TempDir(), "printify_upload.jsonl"))
	if err := store.Save([]*queue.Record{listed(1, "a", "gid://shopify/Product/1", "2024-01-01")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	shop := &fakeShop{salesErr: errors.New("shopify down")}

	result, err := newPruner(t, shop, store, false).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 || len(shop.deleted) != 0 {
		t.Fatalf("unexpected result %+v deleted %v", result, shop.deleted)
	}
}

func TestPruneDryRunDeletesNothing(t *testing.T) {
	store := queue.NewStore(filepath.Join(t.TempDir(), "printify_upload.jsonl"))
	if err := store.Save([]*queue.Record{listed(1, "a", "gid://shopify/Product/1", "2024-01-01")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	shop := &fakeShop{}

	result, err := newPruner(t, shop, store, true).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Pruned != 1 || len(shop.deleted) != 0 {
		t.Fatalf("dry run must only report, result %+v deleted %v", result, shop.deleted)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded[0].IsPruned() {
		t.Fatal("dry run must not mark records")
	}
}
