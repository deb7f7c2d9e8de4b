package reconcile

import (
	"fmt"
	"time"

	"github.com/quickserve/expo/pkg/acks"
	"github.com/quickserve/expo/pkg/entry"
)

// Snapshot is the read-only view the UI layer renders from: the sorted
// lists from the latest successful poll plus current acknowledgment
// membership.
type Snapshot struct {
	Orders    []entry.Entry `json:"orders"`
	Messages  []entry.Entry `json:"messages"`
	Acks      acks.Sets     `json:"-"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Snapshot returns a copy of the current state. Acknowledgment sets are
// read live so a just-accepted order shows as accepted before the next
// poll lands.
func (s *Session) Snapshot() Snapshot {
	sets := s.acks.Sets()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Orders:    append([]entry.Entry(nil), s.orders...),
		Messages:  append([]entry.Entry(nil), s.messages...),
		Acks:      sets,
		FetchedAt: s.fetchedAt,
	}
}

// Unaccepted returns orders staff has not accepted yet, newest first.
func (snap Snapshot) Unaccepted() []entry.Entry {
	var out []entry.Entry
	for _, o := range snap.Orders {
		if _, ok := snap.Acks.Accepted[o.ID]; !ok {
			out = append(out, o)
		}
	}
	return out
}

// RecentAccepted returns accepted orders placed today or yesterday,
// mirroring the dashboard's "view accepted" filter.
func (snap Snapshot) RecentAccepted(now time.Time) []entry.Entry {
	yesterday := now.AddDate(0, 0, -1)
	var out []entry.Entry
	for _, o := range snap.Orders {
		if _, ok := snap.Acks.Accepted[o.ID]; !ok {
			continue
		}
		if !o.Dated {
			continue
		}
		if entry.SameDay(o.PlacedAt, now) || entry.SameDay(o.PlacedAt, yesterday) {
			out = append(out, o)
		}
	}
	return out
}

// UnreadMessages returns messages staff has not marked read.
func (snap Snapshot) UnreadMessages() []entry.Entry {
	var out []entry.Entry
	for _, m := range snap.Messages {
		if _, ok := snap.Acks.ReadMessages[m.ID]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// OrdersToday counts orders placed on the current calendar day.
func (snap Snapshot) OrdersToday(now time.Time) int {
	n := 0
	for _, o := range snap.Orders {
		if o.Dated && entry.SameDay(o.PlacedAt, now) {
			n++
		}
	}
	return n
}

// Elapsed formats how long ago an entry was placed, e.g. "12m 34s ago".
// Undated entries yield an empty string.
func Elapsed(e entry.Entry, now time.Time) string {
	if !e.Dated {
		return ""
	}
	d := now.Sub(e.PlacedAt)
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%dm %ds ago", int(d.Minutes()), int(d.Seconds())%60)
}
