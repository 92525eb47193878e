package schedule

import (
	"strings"
	"sync"
	"time"

	logx "tockbot/pkg/logx"
)

type Config struct {
	// Path is the persistence file written on Unload and read on Load.
	Path string
	// Timezone is an IANA name, e.g. "Asia/Jakarta". Empty means local.
	Timezone string
}

// Fallback names a callback invoked instead of the primary one when a
// one-shot entry is recovered from persistence after its due time has
// already passed.
type Fallback struct {
	Callback []string
	Params   []any
}

type entry struct {
	id             string
	constraint     *Constraint // nil for one-shot entries
	due            time.Time   // one-shot due instant
	callback       []string
	params         []any
	fallback       []string
	fallbackParams []any

	nextAt time.Time
	timer  *time.Timer
}

// Scheduler owns the registry of scheduled entries. Every entry holds at
// most one armed timer; all mutation and all dispatch serialize on mu.
type Scheduler struct {
	cfg  Config
	log  logx.Logger
	disp *Dispatcher
	loc  *time.Location
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	order   []string // insertion order, preserved through persistence
}

func New(cfg Config, disp *Dispatcher, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn("invalid timezone, falling back to local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}
	s := &Scheduler{
		cfg:     cfg,
		log:     log,
		disp:    disp,
		loc:     loc,
		entries: map[string]*entry{},
	}
	s.now = func() time.Time { return time.Now().In(s.loc) }
	return s
}

// SetRegularSchedule installs a recurring entry. An empty id allocates a
// generated one; a caller-supplied id replaces any existing entry under it
// (the old timer is disarmed first). Returns the final id.
func (s *Scheduler) SetRegularSchedule(c Constraint, callback []string, params []any, id string) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	next, err := c.Next(s.now())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = s.generateLocked()
	} else {
		s.removeLocked(id)
	}
	cc := c
	e := &entry{id: id, constraint: &cc, callback: callback, params: params}
	s.armLocked(e, next)
	s.log.Debug("regular schedule set",
		logx.String("id", id),
		logx.String("constraint", c.String()),
		logx.Time("next", next))
	return id, nil
}

// SetSingleSchedule installs a one-shot entry due at the given instant. A
// due time in the past fires immediately rather than being rejected. The
// id is always generated. fb may be nil.
func (s *Scheduler) SetSingleSchedule(due time.Time, callback []string, params []any, fb *Fallback) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{id: s.generateLocked(), due: due, callback: callback, params: params}
	if fb != nil {
		e.fallback = fb.Callback
		e.fallbackParams = fb.Params
	}
	s.armLocked(e, due)
	s.log.Debug("single schedule set", logx.String("id", e.id), logx.Time("due", due))
	return e.id
}

// SetSingleIn is SetSingleSchedule with a relative delay.
func (s *Scheduler) SetSingleIn(delay time.Duration, callback []string, params []any, fb *Fallback) string {
	return s.SetSingleSchedule(s.now().Add(delay), callback, params, fb)
}

func (s *Scheduler) HasSchedule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// RemoveSchedule disarms and removes the entry. Once it returns true the
// entry's callback will not be invoked again: fire() re-checks liveness
// under the same lock before dispatching.
func (s *Scheduler) RemoveSchedule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Scheduler) generateLocked() string {
	return generateID(func(id string) bool {
		_, taken := s.entries[id]
		return taken
	})
}

func (s *Scheduler) armLocked(e *entry, at time.Time) {
	e.nextAt = at
	e.timer = time.AfterFunc(at.Sub(s.now()), func() { s.fire(e) })
	if _, exists := s.entries[e.id]; !exists {
		s.order = append(s.order, e.id)
	}
	s.entries[e.id] = e
}

func (s *Scheduler) removeLocked(id string) bool {
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.entries, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// fire is the timer-driven step function: dispatch, then either remove the
// entry (one-shot) or recompute the next occurrence and re-arm (recurring).
// Dispatch failures are swallowed by the Dispatcher and never prevent the
// re-arm. The stale-pointer check covers entries that were removed or
// replaced while the firing was already in flight.
func (s *Scheduler) fire(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[e.id]; !ok || cur != e {
		return
	}

	s.disp.Invoke(e.callback, e.params)

	if e.constraint == nil {
		s.removeLocked(e.id)
		return
	}
	next, err := e.constraint.Next(s.now())
	if err != nil {
		s.log.Error("schedule no longer satisfiable, dropping", logx.String("id", e.id), logx.Err(err))
		s.removeLocked(e.id)
		return
	}
	e.nextAt = next
	e.timer = time.AfterFunc(next.Sub(s.now()), func() { s.fire(e) })
}

// EntryInfo is a read-only view of one registry entry.
type EntryInfo struct {
	ID        string
	Recurring bool
	NextAt    time.Time
	Callback  []string
}

// Snapshot lists live entries in insertion order.
func (s *Scheduler) Snapshot() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntryInfo, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		out = append(out, EntryInfo{
			ID:        e.id,
			Recurring: e.constraint != nil,
			NextAt:    e.nextAt,
			Callback:  append([]string(nil), e.callback...),
		})
	}
	return out
}
