// Package admin implements the operator commands: reminders backed by the
// scheduler, temporary mutes, and permission management.
package admin

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"tockbot/internal/capability"
	"tockbot/internal/schedule"
	"tockbot/internal/storage"
	"tockbot/internal/transport"
	logx "tockbot/pkg/logx"
)

// Permission levels. Owners configured in the bot config always act as
// LevelAdmin regardless of stored rows.
const (
	LevelEveryone  = 0
	LevelTrusted   = 1
	LevelModerator = 2
	LevelAdmin     = 3
)

type Module struct {
	log   logx.Logger
	sched *schedule.Scheduler
	caps  *capability.Registry
	store storage.Store // may be nil (storage disabled)
	send  transport.Adapter

	ownerIDs map[int64]bool

	muteMu sync.Mutex
	muted  map[int64]bool
}

func New(sched *schedule.Scheduler, caps *capability.Registry, store storage.Store, send transport.Adapter, owners []int64, log logx.Logger) *Module {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Module{
		log:      log,
		sched:    sched,
		caps:     caps,
		store:    store,
		send:     send,
		ownerIDs: make(map[int64]bool, len(owners)),
		muted:    map[int64]bool{},
	}
	for _, id := range owners {
		m.ownerIDs[id] = true
	}
	return m
}

// Register installs the module's capability surface. The unmute callable is
// what mute one-shots (and their recovery fallbacks) dispatch to.
func (m *Module) Register() {
	m.caps.Register("admin", capability.Module{
		"unmute": capability.Callable(func(params ...any) {
			if len(params) == 0 {
				return
			}
			id, ok := asInt64(params[0])
			if !ok {
				return
			}
			m.setMuted(id, false)
			m.log.Info("mute lifted", logx.Int64("user", id))
		}),
	})
}

func (m *Module) Unregister() {
	m.caps.Unregister("admin")
}

func (m *Module) setMuted(userID int64, v bool) {
	m.muteMu.Lock()
	if v {
		m.muted[userID] = true
	} else {
		delete(m.muted, userID)
	}
	m.muteMu.Unlock()
}

// Muted reports whether the user is currently muted. The app drops commands
// from muted users before routing.
func (m *Module) Muted(userID int64) bool {
	m.muteMu.Lock()
	defer m.muteMu.Unlock()
	return m.muted[userID]
}

type command struct {
	minLevel int
	usage    string
	handle   func(ctx context.Context, msg transport.Message, args string) (string, error)
}

func (m *Module) commands() map[string]command {
	return map[string]command{
		"remind":     {minLevel: LevelTrusted, usage: "!remind <field=v[,v];...>: <text>", handle: m.cmdRemind},
		"remindonce": {minLevel: LevelTrusted, usage: "!remindonce <duration>: <text>", handle: m.cmdRemindOnce},
		"unremind":   {minLevel: LevelTrusted, usage: "!unremind <id>", handle: m.cmdUnremind},
		"reminders":  {minLevel: LevelTrusted, usage: "!reminders", handle: m.cmdReminders},
		"mute":       {minLevel: LevelModerator, usage: "!mute <user id> <duration>", handle: m.cmdMute},
		"perm":       {minLevel: LevelAdmin, usage: "!perm <user id> <level>", handle: m.cmdPerm},
	}
}

// HandleMessage processes one incoming message and reports whether it was
// consumed as a command.
func (m *Module) HandleMessage(ctx context.Context, msg transport.Message) bool {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "!") {
		return false
	}
	if m.Muted(msg.FromID) {
		return true
	}

	name, args, _ := strings.Cut(strings.TrimPrefix(text, "!"), " ")
	name = strings.ToLower(name)
	cmd, ok := m.commands()[name]
	if !ok {
		return false
	}

	if m.levelOf(ctx, msg) < cmd.minLevel {
		m.reply(ctx, msg, "you are not allowed to do that")
		return true
	}

	reply, err := cmd.handle(ctx, msg, strings.TrimSpace(args))
	m.audit(ctx, msg, name, args, err)
	if err != nil {
		m.reply(ctx, msg, fmt.Sprintf("%v\nusage: %s", err, cmd.usage))
		return true
	}
	if reply != "" {
		m.reply(ctx, msg, reply)
	}
	return true
}

func (m *Module) levelOf(ctx context.Context, msg transport.Message) int {
	if m.ownerIDs[msg.FromID] {
		return LevelAdmin
	}
	if m.store == nil {
		return LevelEveryone
	}
	level, err := m.store.GetPermission(ctx, msg.FromID, msg.ChatID)
	if err != nil {
		m.log.Warn("permission lookup failed", logx.Int64("user", msg.FromID), logx.Err(err))
		return LevelEveryone
	}
	return level
}

func (m *Module) reply(ctx context.Context, msg transport.Message, text string) {
	if _, err := m.send.SendText(ctx, transport.ChatTarget{ChatID: msg.ChatID}, text, nil); err != nil {
		m.log.Warn("reply failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
	}
}

func (m *Module) audit(ctx context.Context, msg transport.Message, action, target string, cmdErr error) {
	if m.store == nil {
		return
	}
	e := storage.AuditEntry{
		ActorID:       msg.FromID,
		ActorUsername: msg.FromUsername,
		ChatID:        msg.ChatID,
		Module:        "admin",
		Action:        action,
		Target:        target,
	}
	if cmdErr != nil {
		e.Error = cmdErr.Error()
	}
	if err := m.store.AppendAudit(ctx, e); err != nil {
		m.log.Warn("audit append failed", logx.Err(err))
	}
}

func (m *Module) cmdRemind(ctx context.Context, msg transport.Message, args string) (string, error) {
	spec, text, ok := strings.Cut(args, ":")
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		return "", fmt.Errorf("missing reminder text")
	}
	c, err := ParseConstraintSpec(spec)
	if err != nil {
		return "", err
	}
	id, err := m.sched.SetRegularSchedule(c, []string{"core", "sendGroupMessage"}, []any{msg.ChatID, text}, "")
	if err != nil {
		return "", err
	}
	return "reminder set: " + id, nil
}

func (m *Module) cmdRemindOnce(ctx context.Context, msg transport.Message, args string) (string, error) {
	durStr, text, ok := strings.Cut(args, ":")
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		return "", fmt.Errorf("missing reminder text")
	}
	d, err := time.ParseDuration(strings.TrimSpace(durStr))
	if err != nil {
		return "", fmt.Errorf("invalid duration %q", strings.TrimSpace(durStr))
	}
	if d <= 0 {
		return "", fmt.Errorf("duration must be positive")
	}
	id := m.sched.SetSingleIn(d, []string{"core", "sendGroupMessage"}, []any{msg.ChatID, text}, nil)
	return "reminder set: " + id, nil
}

func (m *Module) cmdUnremind(ctx context.Context, msg transport.Message, args string) (string, error) {
	id := strings.TrimSpace(args)
	if id == "" {
		return "", fmt.Errorf("missing id")
	}
	if !m.sched.RemoveSchedule(id) {
		return "no such reminder: " + id, nil
	}
	return "reminder removed: " + id, nil
}

func (m *Module) cmdReminders(ctx context.Context, msg transport.Message, args string) (string, error) {
	entries := m.sched.Snapshot()
	if len(entries) == 0 {
		return "no reminders", nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].NextAt.Before(entries[j].NextAt) })

	var b strings.Builder
	for _, e := range entries {
		kind := "once"
		if e.Recurring {
			kind = "recurring"
		}
		fmt.Fprintf(&b, "%s  %s  next %s\n", e.ID, kind, e.NextAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (m *Module) cmdMute(ctx context.Context, msg transport.Message, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", fmt.Errorf("expected a user id and a duration")
	}
	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q", fields[0])
	}
	d, err := time.ParseDuration(fields[1])
	if err != nil {
		return "", fmt.Errorf("invalid duration %q", fields[1])
	}
	if d <= 0 {
		return "", fmt.Errorf("duration must be positive")
	}

	m.setMuted(userID, true)
	// The unmute is also the fallback: if the bot is down when the mute
	// expires, recovery still lifts it instead of leaving the user muted
	// forever.
	unmute := []string{"admin", "unmute"}
	params := []any{userID}
	m.sched.SetSingleIn(d, unmute, params, &schedule.Fallback{Callback: unmute, Params: params})
	return fmt.Sprintf("muted %d for %s", userID, d), nil
}

func (m *Module) cmdPerm(ctx context.Context, msg transport.Message, args string) (string, error) {
	if m.store == nil {
		return "", fmt.Errorf("storage is disabled")
	}
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", fmt.Errorf("expected a user id and a level")
	}
	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q", fields[0])
	}
	level, err := strconv.Atoi(fields[1])
	if err != nil || level < LevelEveryone || level > LevelAdmin {
		return "", fmt.Errorf("level must be %d..%d", LevelEveryone, LevelAdmin)
	}

	// Group chats grant a chat-scoped level; private chats set the global
	// row (chat 0).
	chatID := int64(0)
	if msg.IsGroup {
		chatID = msg.ChatID
	}
	if err := m.store.SetPermission(ctx, userID, chatID, level); err != nil {
		return "", err
	}
	scope := "globally"
	if chatID != 0 {
		scope = "in this chat"
	}
	return fmt.Sprintf("user %d is now level %d %s", userID, level, scope), nil
}

// asInt64 converts params that may have round-tripped through JSON, where
// every number comes back as float64.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
