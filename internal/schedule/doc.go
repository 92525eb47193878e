// Package schedule is the reminder scheduler: partial calendar constraints
// resolved to concrete instants, a registry of recurring and one-shot
// entries with one armed timer each, late-bound callback dispatch through
// the capability registry, and wholesale file persistence across restarts.
//
// All registry mutation and all dispatch serialize on one mutex, so entries
// never observe each other mid-update. Registered capabilities therefore
// must not call back into the Scheduler.
package schedule
