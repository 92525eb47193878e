package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	logx "tockbot/pkg/logx"
)

// record is the durable form of one entry. Exactly one of Constraint and
// Due is set; the whole registry is written and read wholesale.
type record struct {
	ID             string      `json:"id"`
	Constraint     *Constraint `json:"constraint,omitempty"`
	Due            *time.Time  `json:"due,omitempty"`
	Callback       []string    `json:"callback"`
	Params         []any       `json:"params,omitempty"`
	Fallback       []string    `json:"fallback,omitempty"`
	FallbackParams []any       `json:"fallback_params,omitempty"`
}

// Load restores the registry from the persistence file. A missing or
// unreadable file means "no prior state" and is not an error. Recurring
// records re-arm under their original IDs with the next occurrence
// recomputed from now; one-shot records still in the future re-arm
// normally, while already-missed ones invoke their recorded fallback (if
// any) exactly once and are dropped — a missed one-shot never re-fires its
// primary callback.
func (s *Scheduler) Load(ctx context.Context) {
	_ = ctx

	s.mu.Lock()
	live := len(s.entries)
	s.mu.Unlock()
	if live > 0 {
		s.Unload(ctx)
	}

	b, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("reading persisted schedules failed, starting empty",
				logx.String("path", s.cfg.Path), logx.Err(err))
		}
		return
	}
	var recs []record
	if err := json.Unmarshal(b, &recs); err != nil {
		s.log.Warn("persisted schedules corrupt, starting empty",
			logx.String("path", s.cfg.Path), logx.Err(err))
		return
	}

	now := s.now()
	restored := 0
	for _, r := range recs {
		switch {
		case r.Constraint != nil:
			if _, err := s.SetRegularSchedule(*r.Constraint, r.Callback, r.Params, r.ID); err != nil {
				s.log.Warn("dropping persisted schedule", logx.String("id", r.ID), logx.Err(err))
				continue
			}
			restored++
		case r.Due != nil:
			var fb *Fallback
			if len(r.Fallback) > 0 {
				fb = &Fallback{Callback: r.Fallback, Params: r.FallbackParams}
			}
			if r.Due.After(now) {
				s.SetSingleSchedule(*r.Due, r.Callback, r.Params, fb)
				restored++
				continue
			}
			if fb != nil {
				s.disp.Invoke(fb.Callback, fb.Params)
			}
		default:
			s.log.Warn("skipping malformed schedule record", logx.String("id", r.ID))
		}
	}
	s.log.Info("schedules loaded", logx.Int("restored", restored), logx.Int("recorded", len(recs)))
}

// Unload disarms every live timer, writes the registry wholesale to the
// persistence file, and clears the in-memory state. Write failures are
// logged only; shutdown proceeds regardless.
func (s *Scheduler) Unload(ctx context.Context) {
	_ = ctx

	s.mu.Lock()
	recs := make([]record, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		r := record{
			ID:             e.id,
			Constraint:     e.constraint,
			Callback:       e.callback,
			Params:         e.params,
			Fallback:       e.fallback,
			FallbackParams: e.fallbackParams,
		}
		if e.constraint == nil {
			due := e.due
			r.Due = &due
		}
		recs = append(recs, r)
	}
	s.entries = map[string]*entry{}
	s.order = nil
	s.mu.Unlock()

	if err := writeRecords(s.cfg.Path, recs); err != nil {
		s.log.Error("persisting schedules failed", logx.String("path", s.cfg.Path), logx.Err(err))
		return
	}
	s.log.Info("schedules persisted", logx.Int("count", len(recs)))
}

func writeRecords(path string, recs []record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
