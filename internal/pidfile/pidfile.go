package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pkt.systems/pslog"
)

// Registry persists the PID of the browser process this tool owns. The file
// holds the decimal PID as plain text. Reads and writes are never fatal to a
// run: a missing or unreadable file degrades discovery to the port scan, and
// a failed write still leaves the current run with a consistent in-memory
// value.
type Registry struct {
	path   string
	log    pslog.Logger
	cached int
}

// New constructs a registry backed by the given pid file path.
func New(path string) (*Registry, error) {
	return NewWithLogger(path, nil)
}

// NewWithLogger constructs a registry with logging.
func NewWithLogger(path string, logger pslog.Logger) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("pid file path is required")
	}
	if logger != nil {
		logger = logger.With("pid_file", path)
	}
	return &Registry{path: path, log: logger}, nil
}

// Path returns the pid file location.
func (r *Registry) Path() string {
	return r.path
}

// Load returns the owned PID. The cached value from an earlier Save wins;
// otherwise the file is read. Absent, unreadable, or corrupt content yields
// (0, false).
func (r *Registry) Load() (int, bool) {
	if r.cached > 0 {
		return r.cached, true
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if r.log != nil {
				r.log.Debug("pid load miss")
			}
			return 0, false
		}
		if r.log != nil {
			r.log.Warn("pid load failed", "err", err)
		}
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		if r.log != nil {
			r.log.Warn("pid file corrupt", "content_len", len(data))
		}
		return 0, false
	}
	r.cached = pid
	if r.log != nil {
		r.log.Debug("pid load ok", "pid", pid)
	}
	return pid, true
}

// Save records the PID. The cached value is updated before the durable write
// so the current run keeps a consistent view even when the write fails.
func (r *Registry) Save(pid int) error {
	if pid <= 0 {
		return errors.New("pid must be positive")
	}
	r.cached = pid
	if err := r.write(pid); err != nil {
		if r.log != nil {
			r.log.Warn("pid save failed", "pid", pid, "err", err)
		}
		return err
	}
	if r.log != nil {
		r.log.Debug("pid save ok", "pid", pid)
	}
	return nil
}

func (r *Registry) write(pid int) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "pid-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(strconv.Itoa(pid)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
