package connectivity

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Monitor tracks whether the Govee cloud API is reachable. State flips are
// reported to a single subscriber; repeated results in the same state are
// absorbed silently.
type Monitor struct {
	logger *log.Logger

	mu       sync.Mutex
	online   bool
	onChange func(online bool)
}

func NewMonitor(logger *log.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		online: true,
	}
}

// OnChange registers the callback fired whenever reachability flips. The
// callback runs outside the monitor's lock.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Record feeds the outcome of one API exchange into the monitor.
func (m *Monitor) Record(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fn := m.onChange
	m.mu.Unlock()

	if online {
		m.logger.Info("connection to the Govee API restored")
	} else {
		m.logger.Warn("connection to the Govee API lost")
	}
	if fn != nil {
		fn(online)
	}
}

// Online reports the last observed reachability.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}
