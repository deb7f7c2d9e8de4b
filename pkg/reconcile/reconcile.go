// Package reconcile runs the poll-diff-react cycle: fetch the remote
// collection, classify it, diff against the acknowledgment store, and
// drive the alarm scheduler. The UI layer renders from the published
// snapshot and calls AcceptOrder / MarkMessageRead.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/quickserve/expo/pkg/acks"
	"github.com/quickserve/expo/pkg/entry"
	"github.com/quickserve/expo/pkg/remote"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or
// any other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Alerter is the alarm surface the loop drives. alarm.Scheduler
// implements it.
type Alerter interface {
	EnsureRunning(cat entry.Category)
	FireOnce(cat entry.Category)
	Stop(cat entry.Category)
	StopAll()
}

// Config holds everything a Session needs.
type Config struct {
	Remote   remote.Store
	Acks     *acks.Store
	Alarms   Alerter
	Interval time.Duration    // poll period; defaults to 5s
	Log      Logger           // optional
	Now      func() time.Time // optional, for tests
}

type Session struct {
	remote   remote.Store
	acks     *acks.Store
	alarms   Alerter
	interval time.Duration
	log      Logger
	now      func() time.Time

	mu        sync.RWMutex
	orders    []entry.Entry
	messages  []entry.Entry
	fetchedAt time.Time
}

func New(cfg Config) *Session {
	s := &Session{
		remote:   cfg.Remote,
		acks:     cfg.Acks,
		alarms:   cfg.Alarms,
		interval: cfg.Interval,
		log:      cfg.Log,
		now:      cfg.Now,
	}
	if s.interval <= 0 {
		s.interval = 5 * time.Second
	}
	if s.log == nil {
		s.log = nopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Run polls until ctx is cancelled: an immediate first tick, then one
// per interval. A failed fetch skips that tick and the loop carries on.
// All alarm timers are stopped before Run returns.
func (s *Session) Run(ctx context.Context) error {
	defer s.alarms.StopAll()

	if err := s.Tick(ctx); err != nil {
		s.log.Warnf("poll failed, skipping tick: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.Warnf("poll failed, skipping tick: %v", err)
			}
		}
	}
}

// Tick performs one reconciliation cycle. It is safe to call directly
// for one-shot commands.
func (s *Session) Tick(ctx context.Context) error {
	records, err := s.remote.FetchAll(ctx)
	if err != nil {
		return err
	}

	orders, messages := entry.ClassifyAll(records)
	sets := s.acks.Sets()

	s.mu.Lock()
	s.orders = orders
	s.messages = messages
	s.fetchedAt = s.now()
	s.mu.Unlock()

	// First order nobody has accepted or been alerted about yet. The
	// seen marker keeps a re-ordered poll from counting a known order
	// as newly arrived; the repeating timer is what keeps nagging.
	for _, o := range orders {
		if _, accepted := sets.Accepted[o.ID]; accepted {
			continue
		}
		if _, seen := sets.SeenOrders[o.ID]; seen {
			continue
		}
		s.log.Infof("new order %s from %q", o.ID, o.CustomerName)
		if err := s.acks.MarkSeenOrder(ctx, o.ID); err != nil {
			s.log.Warnf("could not persist seen order %s: %v", o.ID, err)
		}
		s.alarms.EnsureRunning(entry.CategoryOrder)
		break
	}

	// Messages alert once per ID and never nag.
	for _, m := range messages {
		if _, seen := sets.SeenMessages[m.ID]; seen {
			continue
		}
		s.log.Infof("new message %s from %q", m.ID, m.CallerName)
		if err := s.acks.MarkSeenMessage(ctx, m.ID); err != nil {
			s.log.Warnf("could not persist seen message %s: %v", m.ID, err)
		}
		s.alarms.FireOnce(entry.CategoryMessage)
		break
	}

	if hasUnaccepted(orders, sets.Accepted) {
		s.alarms.EnsureRunning(entry.CategoryOrder)
	} else {
		s.alarms.Stop(entry.CategoryOrder)
	}
	return nil
}

func hasUnaccepted(orders []entry.Entry, accepted map[string]struct{}) bool {
	for _, o := range orders {
		if _, ok := accepted[o.ID]; !ok {
			return true
		}
	}
	return false
}

// HasUnacceptedOrders is the live qualifying predicate for the order
// alarm: it consults the latest snapshot and acknowledgment state, not
// a cached answer from the tick that started the timer.
func (s *Session) HasUnacceptedOrders() bool {
	sets := s.acks.Sets()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hasUnaccepted(s.orders, sets.Accepted)
}

// AcceptOrder records staff acceptance locally, then writes it through
// to the remote store. The local mark is optimistic but the remote
// write is awaited so a crash cannot silently diverge for longer than
// one write latency.
func (s *Session) AcceptOrder(ctx context.Context, id string) error {
	if err := s.acks.MarkAccepted(ctx, id); err != nil {
		return err
	}
	return s.remote.Patch(ctx, id, map[string]interface{}{
		"Accepted At": s.now().Format(time.RFC3339),
	})
}

// MarkMessageRead records that staff read the message, locally and on
// the remote store.
func (s *Session) MarkMessageRead(ctx context.Context, id string) error {
	if err := s.acks.MarkRead(ctx, id); err != nil {
		return err
	}
	return s.remote.Patch(ctx, id, map[string]interface{}{
		"Read At": s.now().Format(time.RFC3339),
	})
}
