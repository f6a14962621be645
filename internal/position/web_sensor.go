package position

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"ubicate.osuc.dev/internal/models"
)

type webWatch struct {
	onPosition PositionFunc
	onError    ErrorFunc
}

// WebSensor adapts browser geolocation. The browser runs watchPosition itself and
// posts every fix or error to the API, which forwards them through Push and PushError.
type WebSensor struct {
	mu      sync.Mutex
	watches map[WatchID]webWatch
}

func NewWebSensor() *WebSensor {
	return &WebSensor{watches: make(map[WatchID]webWatch)}
}

func (s *WebSensor) Name() string { return string(PlatformWeb) }

// RequestPermission always succeeds; the browser prompts the user on its side.
func (s *WebSensor) RequestPermission(ctx context.Context) error {
	return ctx.Err()
}

func (s *WebSensor) Watch(onPosition PositionFunc, onError ErrorFunc) (WatchID, error) {
	id := WatchID(uuid.NewString())

	s.mu.Lock()
	s.watches[id] = webWatch{onPosition: onPosition, onError: onError}
	s.mu.Unlock()

	return id, nil
}

func (s *WebSensor) ClearWatch(id WatchID) {
	s.mu.Lock()
	delete(s.watches, id)
	s.mu.Unlock()
}

// Watching reports whether any watch would consume a pushed fix.
func (s *WebSensor) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches) > 0
}

// Push forwards a browser fix to every active watch. It reports false when nobody is watching.
func (s *WebSensor) Push(c models.Coordinates) bool {
	watches := s.snapshot()
	for _, w := range watches {
		if w.onPosition != nil {
			w.onPosition(c)
		}
	}
	return len(watches) > 0
}

// PushError forwards a browser GeolocationPositionError.
func (s *WebSensor) PushError(err *SensorError) bool {
	watches := s.snapshot()
	for _, w := range watches {
		if w.onError != nil {
			w.onError(err)
		}
	}
	return len(watches) > 0
}

func (s *WebSensor) snapshot() []webWatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	watches := make([]webWatch, 0, len(s.watches))
	for _, w := range s.watches {
		watches = append(watches, w)
	}
	return watches
}
