// Package acks is the durable local acknowledgment store: four named
// slots, each holding the JSON array of entry IDs staff (or the
// reconciliation loop) has acknowledged. Slots only grow; archived
// entries simply stop matching anything live.
package acks

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

const (
	SlotAccepted     = "accepted_orders"
	SlotSeenOrders   = "seen_orders"
	SlotSeenMessages = "seen_messages"
	SlotReadMessages = "read_messages"
)

var slotNames = []string{SlotAccepted, SlotSeenOrders, SlotSeenMessages, SlotReadMessages}

type Store struct {
	sql *sql.DB

	mu    sync.Mutex
	slots map[string]map[string]struct{}
}

// Open opens (creating if needed) the acknowledgment database at path
// and loads all four slots. A missing or unparseable slot loads as an
// empty set.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS ack_slots (
  name       TEXT PRIMARY KEY,
  ids        TEXT NOT NULL DEFAULT '[]',
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
	`); err != nil {
		return nil, err
	}

	s := &Store{
		sql:   db,
		slots: make(map[string]map[string]struct{}, len(slotNames)),
	}
	for _, name := range slotNames {
		s.slots[name] = make(map[string]struct{})
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

func (s *Store) load() error {
	rows, err := s.sql.Query("SELECT name, ids FROM ack_slots")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return err
		}
		set, known := s.slots[name]
		if !known {
			continue
		}
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			// First run or a corrupt slot: start empty rather than fail.
			continue
		}
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}
	return rows.Err()
}

// mark adds id to the named slot and persists the whole slot
// synchronously. Adding an already-present ID rewrites the same array.
func (s *Store) mark(ctx context.Context, slot, id string) error {
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[slot][id] = struct{}{}
	return s.persistLocked(ctx, slot)
}

func (s *Store) persistLocked(ctx context.Context, slot string) error {
	ids := make([]string, 0, len(s.slots[slot]))
	for id := range s.slots[slot] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	_, err = s.sql.ExecContext(ctx, `
INSERT INTO ack_slots(name, ids, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(name) DO UPDATE SET ids = excluded.ids, updated_at = CURRENT_TIMESTAMP
	`, slot, string(raw))
	return err
}

// MarkAccepted records that staff accepted the order.
func (s *Store) MarkAccepted(ctx context.Context, id string) error {
	return s.mark(ctx, SlotAccepted, id)
}

// MarkSeenOrder records that the new-order alarm fired for this order,
// so a later poll never re-alerts it as new.
func (s *Store) MarkSeenOrder(ctx context.Context, id string) error {
	return s.mark(ctx, SlotSeenOrders, id)
}

// MarkSeenMessage records that the message alert fired for this message.
func (s *Store) MarkSeenMessage(ctx context.Context, id string) error {
	return s.mark(ctx, SlotSeenMessages, id)
}

// MarkRead records that staff explicitly marked the message read.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	return s.mark(ctx, SlotReadMessages, id)
}

// Sets is a point-in-time copy of all four acknowledgment sets.
type Sets struct {
	Accepted     map[string]struct{}
	SeenOrders   map[string]struct{}
	SeenMessages map[string]struct{}
	ReadMessages map[string]struct{}
}

func (s *Store) Sets() Sets {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Sets{
		Accepted:     copySet(s.slots[SlotAccepted]),
		SeenOrders:   copySet(s.slots[SlotSeenOrders]),
		SeenMessages: copySet(s.slots[SlotSeenMessages]),
		ReadMessages: copySet(s.slots[SlotReadMessages]),
	}
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for id := range in {
		out[id] = struct{}{}
	}
	return out
}

// Has reports membership in a set without copying.
func (s *Store) Has(slot, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[slot][id]
	return ok
}
