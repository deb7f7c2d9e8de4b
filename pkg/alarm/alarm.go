// Package alarm drives the repeat-until-acknowledged audible alerts.
// One repeating timer per category at most; each firing re-checks the
// qualifying condition live and the timer stops itself when nothing
// qualifies anymore.
package alarm

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/quickserve/expo/pkg/entry"
)

// Sounder plays the alert sound for a category. Playback failures are
// logged by the scheduler and never stop the timers.
type Sounder interface {
	Play(cat entry.Category) error
}

// Logger abstracts logging so callers can use logrus or any compatible
// logger.
type Logger interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Config holds everything the Scheduler needs.
type Config struct {
	Interval time.Duration // repeat interval; defaults to 30s
	Sounder  Sounder       // defaults to the terminal bell
	Log      Logger        // optional

	// Qualify is re-evaluated on every firing. Returning false stops
	// that category's timer. Nil means "always qualifies".
	Qualify func(cat entry.Category) bool
}

type Scheduler struct {
	interval time.Duration
	sounder  Sounder
	qualify  func(entry.Category) bool
	log      Logger

	mu     sync.Mutex
	timers map[entry.Category]*timer
}

type timer struct {
	stop chan struct{}
}

func New(cfg Config) *Scheduler {
	s := &Scheduler{
		interval: cfg.Interval,
		sounder:  cfg.Sounder,
		qualify:  cfg.Qualify,
		log:      cfg.Log,
		timers:   make(map[entry.Category]*timer),
	}
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}
	if s.sounder == nil {
		s.sounder = ExecSounder{}
	}
	if s.log == nil {
		s.log = nopLogger{}
	}
	return s
}

// EnsureRunning starts the repeating timer for cat if it is not already
// running, playing the alert once immediately. Calling it while running
// is a no-op.
func (s *Scheduler) EnsureRunning(cat entry.Category) {
	s.mu.Lock()
	if _, running := s.timers[cat]; running {
		s.mu.Unlock()
		return
	}
	t := &timer{stop: make(chan struct{})}
	s.timers[cat] = t
	s.mu.Unlock()

	s.log.Debugf("alarm: %s timer started", cat)
	s.play(cat)
	go s.run(cat, t)
}

func (s *Scheduler) run(cat entry.Category, t *timer) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if s.qualify != nil && !s.qualify(cat) {
				s.removeSelf(cat, t)
				s.log.Debugf("alarm: %s timer stopped, nothing left to alert", cat)
				return
			}
			s.play(cat)
		}
	}
}

// removeSelf takes the timer out of the map so a later EnsureRunning
// can start a fresh one. Only the timer's own goroutine calls this.
func (s *Scheduler) removeSelf(cat entry.Category, t *timer) {
	s.mu.Lock()
	if s.timers[cat] == t {
		delete(s.timers, cat)
	}
	s.mu.Unlock()
}

// FireOnce plays the alert a single time without starting a timer.
// Message arrivals alert once; they do not nag.
func (s *Scheduler) FireOnce(cat entry.Category) {
	s.play(cat)
}

// Stop halts the timer for cat, if any.
func (s *Scheduler) Stop(cat entry.Category) {
	s.mu.Lock()
	t := s.timers[cat]
	delete(s.timers, cat)
	s.mu.Unlock()
	if t != nil {
		close(t.stop)
		s.log.Debugf("alarm: %s timer stopped", cat)
	}
}

// StopAll halts every timer. No orphaned timers survive a session stop.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	stopped := s.timers
	s.timers = make(map[entry.Category]*timer)
	s.mu.Unlock()
	for _, t := range stopped {
		close(t.stop)
	}
}

// Running reports whether a timer is active for cat.
func (s *Scheduler) Running(cat entry.Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[cat]
	return ok
}

func (s *Scheduler) play(cat entry.Category) {
	if err := s.sounder.Play(cat); err != nil {
		s.log.Warnf("alarm: playback failed for %s: %v", cat, err)
	}
}

// ExecSounder shells out to a configured player command per category,
// e.g. "paplay /usr/share/sounds/alert.wav". An empty command rings the
// terminal bell instead.
type ExecSounder struct {
	Commands map[entry.Category]string
}

func (e ExecSounder) Play(cat entry.Category) error {
	cmdline := e.Commands[cat]
	if strings.TrimSpace(cmdline) == "" {
		fmt.Print("\a")
		return nil
	}
	parts := strings.Fields(cmdline)
	return exec.Command(parts[0], parts[1:]...).Run()
}
