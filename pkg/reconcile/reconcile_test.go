package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/quickserve/expo/pkg/acks"
	"github.com/quickserve/expo/pkg/entry"
)

// fakeStore is an in-memory remote.Store.
type fakeStore struct {
	mu       sync.Mutex
	records  map[string]string // id -> raw record JSON
	patches  map[string]map[string]interface{}
	fetchErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]string),
		patches: make(map[string]map[string]interface{}),
	}
}

func (f *fakeStore) FetchAll(ctx context.Context) (map[string]gjson.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make(map[string]gjson.Result, len(f.records))
	for id, raw := range f.records {
		out[id] = gjson.Parse(raw)
	}
	return out, nil
}

func (f *fakeStore) Patch(ctx context.Context, id string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	merged := f.patches[id]
	if merged == nil {
		merged = make(map[string]interface{})
	}
	for k, v := range fields {
		merged[k] = v
	}
	f.patches[id] = merged
	return nil
}

func (f *fakeStore) Put(ctx context.Context, path string, value interface{}) error { return nil }
func (f *fakeStore) Delete(ctx context.Context, path string) error                 { return nil }
func (f *fakeStore) Exists(ctx context.Context, path string) (bool, error)         { return false, nil }

func (f *fakeStore) patched(id string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches[id]
}

// recordingAlerter tracks alarm state transitions without timers.
type recordingAlerter struct {
	mu      sync.Mutex
	running map[entry.Category]bool
	fires   map[entry.Category]int
}

func newRecordingAlerter() *recordingAlerter {
	return &recordingAlerter{
		running: make(map[entry.Category]bool),
		fires:   make(map[entry.Category]int),
	}
}

func (a *recordingAlerter) EnsureRunning(cat entry.Category) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running[cat] = true
}

func (a *recordingAlerter) FireOnce(cat entry.Category) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fires[cat]++
}

func (a *recordingAlerter) Stop(cat entry.Category) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running[cat] = false
}

func (a *recordingAlerter) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for cat := range a.running {
		a.running[cat] = false
	}
}

func (a *recordingAlerter) isRunning(cat entry.Category) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running[cat]
}

func (a *recordingAlerter) fireCount(cat entry.Category) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fires[cat]
}

func newTestSession(t *testing.T, store *fakeStore, alerter Alerter) (*Session, *acks.Store) {
	t.Helper()
	ackStore, err := acks.Open(filepath.Join(t.TempDir(), "acks.sqlite"))
	if err != nil {
		t.Fatalf("acks.Open: %v", err)
	}
	t.Cleanup(func() { ackStore.Close() })

	sess := New(Config{
		Remote: store,
		Acks:   ackStore,
		Alarms: alerter,
		Now:    func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.Local) },
	})
	return sess, ackStore
}

func orderRecord(orderID, placedAt string) string {
	return fmt.Sprintf(`{"Order ID": %q, "Customer Name": "Pat", "Order Items": "Sandwich, Fries", "Order Date": %q}`, orderID, placedAt)
}

func TestNewOrderStartsAlarmOnce(t *testing.T) {
	store := newFakeStore()
	store.records["o1"] = orderRecord("1042", "2026-08-31T11:45:00")
	alerter := newRecordingAlerter()
	sess, ackStore := newTestSession(t, store, alerter)
	ctx := context.Background()

	// First poll: the order is new, the alarm comes up.
	if err := sess.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if !alerter.isRunning(entry.CategoryOrder) {
		t.Fatal("order alarm should be running after first poll")
	}
	if !ackStore.Has(acks.SlotSeenOrders, "o1") {
		t.Fatal("order should be marked seen")
	}

	// Second poll with no change: still running, still exactly one seen mark.
	if err := sess.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if !alerter.isRunning(entry.CategoryOrder) {
		t.Fatal("order alarm should stay running while unaccepted")
	}
	if got := len(ackStore.Sets().SeenOrders); got != 1 {
		t.Fatalf("expected 1 seen order, got %d", got)
	}
}

func TestAcceptOrderStopsAlarmAndWritesThrough(t *testing.T) {
	store := newFakeStore()
	store.records["o1"] = orderRecord("1042", "2026-08-31T11:45:00")
	alerter := newRecordingAlerter()
	sess, _ := newTestSession(t, store, alerter)
	ctx := context.Background()

	if err := sess.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sess.AcceptOrder(ctx, "o1"); err != nil {
		t.Fatal(err)
	}

	fields := store.patched("o1")
	if fields == nil || fields["Accepted At"] == nil {
		t.Fatal("accept must write Accepted At to the remote record")
	}
	if sess.HasUnacceptedOrders() {
		t.Fatal("no unaccepted orders should remain")
	}

	// Next poll finds nothing qualifying and stops the timer.
	if err := sess.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if alerter.isRunning(entry.CategoryOrder) {
		t.Fatal("order alarm should stop once everything is accepted")
	}
}

func TestMessageAlertsOncePerID(t *testing.T) {
	store := newFakeStore()
	store.records["m1"] = `{"Caller_Name": "Jane", "Message_Reason": "Catering inquiry"}`
	alerter := newRecordingAlerter()
	sess, _ := newTestSession(t, store, alerter)
	ctx := context.Background()

	if err := sess.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if got := alerter.fireCount(entry.CategoryMessage); got != 1 {
		t.Fatalf("expected 1 message alert, got %d", got)
	}
	if alerter.isRunning(entry.CategoryMessage) {
		t.Fatal("messages must not start a repeating timer")
	}

	// Same ID on a later poll: no re-alert.
	if err := sess.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if got := alerter.fireCount(entry.CategoryMessage); got != 1 {
		t.Fatalf("expected still 1 message alert, got %d", got)
	}
}

func TestAcceptedOrderNeverAlertsAsNew(t *testing.T) {
	store := newFakeStore()
	store.records["o1"] = orderRecord("1042", "2026-08-31T11:45:00")
	alerter := newRecordingAlerter()
	sess, ackStore := newTestSession(t, store, alerter)
	ctx := context.Background()

	// Accepted in a previous session, before the first poll here.
	if err := ackStore.MarkAccepted(ctx, "o1"); err != nil {
		t.Fatal(err)
	}
	if err := sess.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if len(ackStore.Sets().SeenOrders) != 0 {
		t.Fatal("an already-accepted order must not be marked seen as new")
	}
	if alerter.isRunning(entry.CategoryOrder) {
		t.Fatal("no alarm for a fully-accepted collection")
	}
}

func TestFetchErrorSkipsTickAndKeepsSnapshot(t *testing.T) {
	store := newFakeStore()
	store.records["o1"] = orderRecord("1042", "2026-08-31T11:45:00")
	alerter := newRecordingAlerter()
	sess, _ := newTestSession(t, store, alerter)
	ctx := context.Background()

	if err := sess.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	store.fetchErr = errors.New("connection reset")
	store.mu.Unlock()

	if err := sess.Tick(ctx); err == nil {
		t.Fatal("expected the fetch error to surface")
	}
	if got := len(sess.Snapshot().Orders); got != 1 {
		t.Fatalf("failed tick must not clobber the snapshot, got %d orders", got)
	}
}

func TestMalformedRecordsAreInvisible(t *testing.T) {
	store := newFakeStore()
	store.records["junk"] = `{"Total Price": "$9.99"}`
	alerter := newRecordingAlerter()
	sess, _ := newTestSession(t, store, alerter)

	if err := sess.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := sess.Snapshot()
	if len(snap.Orders) != 0 || len(snap.Messages) != 0 {
		t.Fatal("malformed records must not reach the snapshot")
	}
	if alerter.isRunning(entry.CategoryOrder) || alerter.fireCount(entry.CategoryMessage) != 0 {
		t.Fatal("malformed records must not trigger alerts")
	}
}

func TestSnapshotHelpers(t *testing.T) {
	store := newFakeStore()
	store.records["o1"] = orderRecord("1", "2026-08-31T11:00:00")
	store.records["o2"] = orderRecord("2", "2026-08-30T11:00:00")
	alerter := newRecordingAlerter()
	sess, _ := newTestSession(t, store, alerter)
	ctx := context.Background()

	if err := sess.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sess.AcceptOrder(ctx, "o2"); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.Local)
	snap := sess.Snapshot()

	if got := snap.OrdersToday(now); got != 1 {
		t.Fatalf("OrdersToday = %d, want 1", got)
	}
	unaccepted := snap.Unaccepted()
	if len(unaccepted) != 1 || unaccepted[0].ID != "o1" {
		t.Fatalf("unexpected unaccepted set: %+v", unaccepted)
	}
	recent := snap.RecentAccepted(now)
	if len(recent) != 1 || recent[0].ID != "o2" {
		t.Fatalf("yesterday's accepted order should show: %+v", recent)
	}
	if got := Elapsed(unaccepted[0], now); got != "60m 0s ago" {
		t.Fatalf("Elapsed = %q", got)
	}
}
