package schedule

import (
	"strings"

	"tockbot/internal/capability"
	logx "tockbot/pkg/logx"
)

// Dispatcher resolves callback paths against the capability registry and
// invokes them with the stored arguments.
type Dispatcher struct {
	caps *capability.Registry
	log  logx.Logger
}

func NewDispatcher(caps *capability.Registry, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{caps: caps, log: log}
}

// Invoke calls the capability named by path with params spread
// positionally. A path that does not resolve to a callable is a no-op: a
// missing or unloaded collaborator must never take the scheduler down. The
// call itself is recover-guarded for the same reason.
func (d *Dispatcher) Invoke(path []string, params []any) {
	fn, ok := d.caps.Resolve(path)
	if !ok {
		d.log.Debug("callback target not found", logx.String("callback", strings.Join(path, ".")))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("callback panicked",
				logx.String("callback", strings.Join(path, ".")),
				logx.Any("panic", r))
		}
	}()
	fn(params...)
}
