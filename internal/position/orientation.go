package position

import "sync"

// OrientationSample is one deviceorientation reading. A nil Alpha means the
// device reported no heading and the sample is ignored.
type OrientationSample struct {
	Alpha *float64 `json:"alpha"`
}

type OrientationFunc func(OrientationSample)

// OrientationSource is the device orientation sensor, independent of the location backend.
type OrientationSource interface {
	Listen(fn OrientationFunc) (stop func())
}

// OrientationHub fans pushed orientation samples out to listeners.
type OrientationHub struct {
	mu        sync.Mutex
	next      uint64
	listeners map[uint64]OrientationFunc
}

func NewOrientationHub() *OrientationHub {
	return &OrientationHub{listeners: make(map[uint64]OrientationFunc)}
}

func (h *OrientationHub) Listen(fn OrientationFunc) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Push delivers a sample. Samples without alpha are dropped here already.
func (h *OrientationHub) Push(sample OrientationSample) bool {
	if sample.Alpha == nil {
		return false
	}

	h.mu.Lock()
	listeners := make([]OrientationFunc, 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(sample)
	}
	return len(listeners) > 0
}
