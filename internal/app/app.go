// Package app wires the services together: config, logging, storage, the
// capability registry, the scheduler, the chat adapter, and the command
// modules.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"tockbot/internal/capability"
	"tockbot/internal/config"
	"tockbot/internal/modules/admin"
	"tockbot/internal/schedule"
	"tockbot/internal/storage"
	"tockbot/internal/transport"
	telegram "tockbot/internal/transport/telegram"
	logx "tockbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	caps    *capability.Registry
	sched   *schedule.Scheduler
	adapter transport.Adapter
	admin   *admin.Module
	cron    *cron.Cron

	updates chan transport.Message

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		store, err = storage.Open(sc, logSvc.Logger().With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	caps := capability.New()
	disp := schedule.NewDispatcher(caps, logSvc.Logger().With(logx.String("comp", "dispatch")))
	schedPath := strings.TrimSpace(cfg.Schedule.Path)
	if schedPath == "" {
		schedPath = "data/schedule.json"
	}
	sched := schedule.New(schedule.Config{
		Path:     schedPath,
		Timezone: cfg.Schedule.Timezone,
	}, disp, logSvc.Logger().With(logx.String("comp", "schedule")))

	adm := admin.New(sched, caps, store, ad, cfg.Telegram.OwnerUserIDs,
		logSvc.Logger().With(logx.String("comp", "admin")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		caps:    caps,
		sched:   sched,
		adapter: ad,
		admin:   adm,
		updates: make(chan transport.Message, 256),
	}, nil
}

// registerCore installs the canonical send callbacks that scheduled entries
// dispatch to. Params cross a JSON round trip, so the chat id may arrive as
// float64.
func (a *App) registerCore() {
	send := func(params ...any) {
		if len(params) < 2 {
			a.log.Warn("send callback needs a chat id and text", logx.Int("params", len(params)))
			return
		}
		chatID, ok := asInt64(params[0])
		if !ok {
			a.log.Warn("send callback chat id is not numeric", logx.Any("value", params[0]))
			return
		}
		parts := make([]string, 0, len(params)-1)
		for _, p := range params[1:] {
			parts = append(parts, fmt.Sprint(p))
		}
		text := strings.Join(parts, " ")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := a.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, nil); err != nil {
			a.log.Warn("scheduled send failed", logx.Int64("chat", chatID), logx.Err(err))
		}
	}
	a.caps.Register("core", capability.Module{
		"sendGroupMessage":   capability.Callable(send),
		"sendPrivateMessage": capability.Callable(send),
	})
}

func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		a.cancel = nil
		return err
	}

	a.registerCore()
	a.admin.Register()
	a.log.Debug("capabilities registered", logx.Any("modules", a.caps.Names()))
	a.sched.Load(runCtx)

	if err := a.startHousekeeping(); err != nil {
		a.log.Warn("housekeeping disabled", logx.Err(err))
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.dispatchLoop(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	sub := a.cfgm.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("started")
	return nil
}

func (a *App) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.updates:
			if a.admin.HandleMessage(ctx, msg) {
				continue
			}
			a.log.Trace("message ignored",
				logx.Int64("chat", msg.ChatID), logx.Int64("from", msg.FromID))
		}
	}
}

// reloadLoop applies hot-reloadable settings from committed config changes.
// Only logging is swapped live; transport and storage changes need a
// restart.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled:    cfg.Logging.File.Enabled,
					Path:       cfg.Logging.File.Path,
					MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
					MaxBackups: cfg.Logging.File.MaxBackups,
					MaxAgeDays: cfg.Logging.File.MaxAgeDays,
				},
			})
			a.log.Info("logging config applied", logx.String("level", cfg.Logging.Level))
		}
	}
}

func (a *App) startHousekeeping() error {
	cfg := a.cfgm.Get()
	if a.store == nil || cfg == nil {
		return nil
	}
	retention, err := config.ParseDurationField("housekeeping.audit_retention", cfg.Housekeeping.AuditRetention)
	if err != nil {
		return err
	}
	if retention <= 0 {
		return nil
	}
	spec := strings.TrimSpace(cfg.Housekeeping.PruneSpec)
	if spec == "" {
		spec = "17 3 * * *"
	}

	c := cron.New()
	_, err = c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := a.store.PruneAudit(ctx, time.Now().Add(-retention))
		if err != nil {
			a.log.Warn("audit prune failed", logx.Err(err))
			return
		}
		if n > 0 {
			a.log.Info("audit pruned", logx.Int64("rows", n))
		}
	})
	if err != nil {
		return fmt.Errorf("housekeeping.prune_spec: %w", err)
	}
	c.Start()
	a.cron = c
	a.log.Info("housekeeping scheduled",
		logx.String("spec", spec), logx.Duration("retention", retention))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.runMu.Unlock()
	if cancel == nil {
		return nil
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err == nil && ok {
		a.log.Debug("sd_notify stopping sent")
	}

	cancel()
	a.wg.Wait()

	if a.cron != nil {
		<-a.cron.Stop().Done()
		a.cron = nil
	}

	// Persist before tearing down the transport so recurring entries and
	// pending one-shots survive the restart.
	a.sched.Unload(ctx)

	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop failed", logx.Err(err))
	}
	a.admin.Unregister()
	a.caps.Unregister("core")

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	return a.logs.Close()
}

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
