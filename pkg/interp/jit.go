package interp

import (
	"sync"

	"github.com/daimatz/godex/pkg/mirror"
)

// HotnessCounter is a JIT stand-in that counts samples per method and
// remembers the methods that crossed Threshold.
type HotnessCounter struct {
	Threshold uint32

	mu  sync.Mutex
	hot []*mirror.Method
}

// NewHotnessCounter returns a counter marking methods hot at threshold
// samples.
func NewHotnessCounter(threshold uint32) *HotnessCounter {
	return &HotnessCounter{Threshold: threshold}
}

func (h *HotnessCounter) AddSamples(self *Thread, m *mirror.Method, n uint32) {
	after := m.AddHotness(n)
	if h.Threshold == 0 || after < h.Threshold || after-n >= h.Threshold {
		return
	}
	log.Debugf("%s is hot after %d samples", m, after)
	h.mu.Lock()
	h.hot = append(h.hot, m)
	h.mu.Unlock()
}

// Hot returns the methods that reached the threshold, in order.
func (h *HotnessCounter) Hot() []*mirror.Method {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*mirror.Method(nil), h.hot...)
}
