package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

// fakeStore is an in-memory remote.Store covering the live collection
// and archive buckets.
type fakeStore struct {
	mu        sync.Mutex
	live      map[string]string      // id -> raw record JSON
	archived  map[string]interface{} // full path -> stored value
	putCount  map[string]int
	failPut   map[string]error // path -> error to return
	failDel   map[string]error // id -> error to return
	deletions []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		live:     make(map[string]string),
		archived: make(map[string]interface{}),
		putCount: make(map[string]int),
		failPut:  make(map[string]error),
		failDel:  make(map[string]error),
	}
}

func (f *fakeStore) FetchAll(ctx context.Context) (map[string]gjson.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]gjson.Result, len(f.live))
	for id, raw := range f.live {
		out[id] = gjson.Parse(raw)
	}
	return out, nil
}

func (f *fakeStore) Patch(ctx context.Context, id string, fields map[string]interface{}) error {
	return nil
}

func (f *fakeStore) Put(ctx context.Context, path string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failPut[path]; err != nil {
		return err
	}
	f.archived[path] = value
	f.putCount[path]++
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := path[len("orders/"):]
	if err := f.failDel[id]; err != nil {
		return err
	}
	delete(f.live, id)
	f.deletions = append(f.deletions, path)
	return nil
}

func (f *fakeStore) Exists(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.archived[path]
	return ok, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 12, 0, 0, 0, time.Local)
}

func staleOrder(orderID string) string {
	// Three days before fixedNow.
	return fmt.Sprintf(`{"Order ID": %q, "Order Items": "Sandwich", "Order Date": "2026-08-28T10:00:00"}`, orderID)
}

func todayOrder(orderID string) string {
	return fmt.Sprintf(`{"Order ID": %q, "Order Items": "Sandwich", "Order Date": "2026-08-31T10:00:00"}`, orderID)
}

func newMigrator(store *fakeStore) *Migrator {
	return &Migrator{Remote: store, Now: fixedNow}
}

func TestSweepArchivesStaleEntries(t *testing.T) {
	store := newFakeStore()
	store.live["old1"] = staleOrder("1")
	store.live["today1"] = todayOrder("2")

	res, err := newMigrator(store).Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Archived != 1 || res.Kept != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	stored, ok := store.archived["archive/2026-08-28/old1"]
	if !ok {
		t.Fatal("stale entry missing from its date bucket")
	}
	record := stored.(map[string]interface{})
	if record["Archived"] != true {
		t.Fatal("archived copy must carry the Archived marker")
	}
	if record["Order Items"] != "Sandwich" {
		t.Fatal("archived copy must preserve original fields")
	}
	if _, live := store.live["old1"]; live {
		t.Fatal("original must be deleted from the live collection")
	}
	if _, live := store.live["today1"]; !live {
		t.Fatal("today's order must stay live")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.live["old1"] = staleOrder("1")
	m := newMigrator(store)
	ctx := context.Background()

	if _, err := m.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	// Simulate the delete having failed half-way: the entry is archived
	// but still live. A second sweep must not write a second copy.
	store.mu.Lock()
	store.live["old1"] = staleOrder("1")
	store.mu.Unlock()

	if _, err := m.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if got := store.putCount["archive/2026-08-28/old1"]; got != 1 {
		t.Fatalf("expected exactly 1 archive write, got %d", got)
	}
	if _, live := store.live["old1"]; live {
		t.Fatal("second sweep should still delete the live duplicate")
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	store.live["bad"] = staleOrder("1")
	store.live["good"] = staleOrder("2")
	store.failPut["archive/2026-08-28/bad"] = errors.New("permission denied")

	res, err := newMigrator(store).Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Archived != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 collected error, got %d", len(res.Errors))
	}
	if _, ok := store.archived["archive/2026-08-28/good"]; !ok {
		t.Fatal("the healthy entry must still migrate")
	}
	if _, live := store.live["bad"]; !live {
		t.Fatal("a failed copy must not delete the live original")
	}
}

func TestSweepSkipsUndatedAndMalformed(t *testing.T) {
	store := newFakeStore()
	store.live["undated"] = `{"Order ID": "9", "Order Items": "Soup", "Order Date": "whenever"}`
	store.live["junk"] = `{"nothing": "here"}`

	res, err := newMigrator(store).Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Archived != 0 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(store.archived) != 0 {
		t.Fatal("nothing should have been archived")
	}
	if len(store.live) != 2 {
		t.Fatal("undated and malformed records must stay untouched")
	}
}

func TestMessagesArchiveToo(t *testing.T) {
	store := newFakeStore()
	store.live["m1"] = `{"Caller Name": "Sam", "Reason": "Hours?", "Message Date": "2026-08-28T09:00:00"}`

	res, err := newMigrator(store).Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Archived != 1 {
		t.Fatalf("stale message should archive, got %+v", res)
	}
	if _, ok := store.archived["archive/2026-08-28/m1"]; !ok {
		t.Fatal("message missing from its date bucket")
	}
}
