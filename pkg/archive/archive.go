// Package archive migrates entries not placed today out of the live
// collection into date-keyed archive buckets, so the live view stays
// small. The sweep is idempotent: re-running it never duplicates or
// corrupts a bucket.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/quickserve/expo/pkg/entry"
	"github.com/quickserve/expo/pkg/remote"
)

// Logger abstracts logging so callers can use logrus or any compatible
// logger.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Migrator sweeps the live collection once per session start.
type Migrator struct {
	Remote      remote.Store
	Log         Logger
	Concurrency int              // defaults to 4 if <= 0
	Now         func() time.Time // optional, for tests

	// Collection and ArchiveRoot name the remote paths. They default to
	// "orders" and "archive" to match remote.Client's defaults.
	Collection  string
	ArchiveRoot string
}

// Result summarizes one sweep.
type Result struct {
	Archived int
	Kept     int
	Failed   int
	Errors   []error
}

// Sweep fetches the live collection and migrates every dated entry not
// placed today: copy to archive/{YYYY-MM-DD}/{id} with an Archived
// marker (skipping the copy when the bucket already has it), then
// delete the original. Per-entry failures are logged and collected;
// the sweep always finishes the remaining entries.
func (m *Migrator) Sweep(ctx context.Context) (*Result, error) {
	log := m.Log
	if log == nil {
		log = nopLogger{}
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	concurrency := m.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	collection := m.Collection
	if collection == "" {
		collection = "orders"
	}
	archiveRoot := m.ArchiveRoot
	if archiveRoot == "" {
		archiveRoot = "archive"
	}

	records, err := m.Remote.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive sweep: %w", err)
	}

	orders, messages := entry.ClassifyAll(records)
	candidates := make([]entry.Entry, 0, len(orders)+len(messages))
	today := now()
	for _, e := range append(orders, messages...) {
		if !e.Dated || entry.SameDay(e.PlacedAt, today) {
			continue
		}
		candidates = append(candidates, e)
	}

	result := &Result{Kept: len(orders) + len(messages) - len(candidates)}
	if len(candidates) == 0 {
		return result, nil
	}
	log.Infof("archiving %d stale entries", len(candidates))

	entryChan := make(chan entry.Entry, len(candidates))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range entryChan {
				err := m.migrateOne(ctx, collection, archiveRoot, e)
				mu.Lock()
				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors, err)
					log.Warnf("archive: %v", err)
				} else {
					result.Archived++
				}
				mu.Unlock()
			}
		}()
	}
	for _, e := range candidates {
		entryChan <- e
	}
	close(entryChan)
	wg.Wait()

	return result, nil
}

// migrateOne copies a single entry into its date bucket and removes the
// live original. The existence check makes the copy idempotent; the
// delete runs even when the copy already existed so an interrupted
// earlier sweep still converges.
func (m *Migrator) migrateOne(ctx context.Context, collection, archiveRoot string, e entry.Entry) error {
	bucketPath := archiveRoot + "/" + entry.DayKey(e.PlacedAt) + "/" + e.ID

	exists, err := m.Remote.Exists(ctx, bucketPath)
	if err != nil {
		return fmt.Errorf("checking %s: %w", bucketPath, err)
	}
	if !exists {
		snapshot, err := archivedCopy(e.Raw)
		if err != nil {
			return fmt.Errorf("preparing copy of %s: %w", e.ID, err)
		}
		if err := m.Remote.Put(ctx, bucketPath, snapshot); err != nil {
			return fmt.Errorf("writing %s: %w", bucketPath, err)
		}
	}
	if err := m.Remote.Delete(ctx, collection+"/"+e.ID); err != nil {
		return fmt.Errorf("deleting live entry %s: %w", e.ID, err)
	}
	return nil
}

// archivedCopy decodes the original raw record and adds the Archived
// marker, preserving every original field.
func archivedCopy(raw string) (map[string]interface{}, error) {
	var record map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	record["Archived"] = true
	return record, nil
}
