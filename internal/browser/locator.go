package browser

import (
	"context"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	"pkt.systems/pslog"

	"pkt.systems/checkin/internal/pidfile"
	"pkt.systems/checkin/schema"
)

// Locator resolves the browser process this tool owns. Implementations
// return at most one candidate; finding none is not an error.
type Locator interface {
	Locate(ctx context.Context) (schema.OwnedProcess, bool)
}

// RegistryLocator resolves the owned process from the persisted PID and
// discards entries whose process is no longer alive.
type RegistryLocator struct {
	registry *pidfile.Registry
	alive    func(pid int) bool
}

// NewRegistryLocator returns a locator backed by the PID registry.
func NewRegistryLocator(registry *pidfile.Registry) *RegistryLocator {
	return &RegistryLocator{registry: registry, alive: pidAlive}
}

// Locate returns the registered PID when that process still exists.
func (l *RegistryLocator) Locate(ctx context.Context) (schema.OwnedProcess, bool) {
	pid, ok := l.registry.Load()
	if !ok {
		return schema.OwnedProcess{}, false
	}
	if !l.alive(pid) {
		if log := pslog.Ctx(ctx); log != nil {
			log.Debug("registered pid is not alive", "pid", pid)
		}
		return schema.OwnedProcess{}, false
	}
	return schema.OwnedProcess{PID: pid, Via: schema.DiscoveredViaPidFile}, true
}

// PortLocator resolves the owned process from the listener bound to the
// control port. The open-connection table is ground truth for which process
// actually holds the port when the persisted PID is missing or wrong.
type PortLocator struct {
	port        uint32
	connections func(ctx context.Context) ([]gnet.ConnectionStat, error)
}

// NewPortLocator returns a locator that scans tcp listeners for the control port.
func NewPortLocator(port int) *PortLocator {
	return &PortLocator{
		port: uint32(port),
		connections: func(ctx context.Context) ([]gnet.ConnectionStat, error) {
			return gnet.ConnectionsWithContext(ctx, "tcp")
		},
	}
}

// Locate returns the process listening on the control port, when one exists
// and its PID is resolvable.
func (l *PortLocator) Locate(ctx context.Context) (schema.OwnedProcess, bool) {
	stats, err := l.connections(ctx)
	if err != nil {
		if log := pslog.Ctx(ctx); log != nil {
			log.Warn("connection scan failed", "err", err)
		}
		return schema.OwnedProcess{}, false
	}
	for _, st := range stats {
		if st.Status != "LISTEN" || st.Laddr.Port != l.port {
			continue
		}
		if st.Pid <= 0 {
			continue
		}
		return schema.OwnedProcess{PID: int(st.Pid), Via: schema.DiscoveredViaPortScan}, true
	}
	return schema.OwnedProcess{}, false
}

func pidAlive(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}
