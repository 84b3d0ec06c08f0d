package mirror

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrIllegalMonitorState is returned when a thread releases a monitor it
// does not own.
var ErrIllegalMonitorState = errors.New("monitor not owned by current thread")

// Monitor is a reentrant lock owned by a thread token.
type Monitor struct {
	mu    sync.Mutex
	cond  sync.Cond
	owner any
	count int
}

func (m *Monitor) init() {
	if m.cond.L == nil {
		m.cond.L = &m.mu
	}
}

// TryEnter acquires the monitor for owner without blocking.
func (m *Monitor) TryEnter(owner any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if m.count == 0 || m.owner == owner {
		m.owner = owner
		m.count++
		return true
	}
	return false
}

// Enter acquires the monitor for owner, blocking while another owner
// holds it.
func (m *Monitor) Enter(owner any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	for m.count != 0 && m.owner != owner {
		m.cond.Wait()
	}
	m.owner = owner
	m.count++
}

// Exit releases one level of the monitor.
func (m *Monitor) Exit(owner any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if m.count == 0 || m.owner != owner {
		return ErrIllegalMonitorState
	}
	m.count--
	if m.count == 0 {
		m.owner = nil
		m.cond.Signal()
	}
	return nil
}

// Owner returns the current owner and recursion count.
func (m *Monitor) Owner() (any, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner, m.count
}
