package realtime

import (
	"errors"
	"strings"
	"sync"
)

const DefaultSubscriberBuffer = 16

var (
	ErrHubUnavailable = errors.New("hub_unavailable")
	ErrInvalidRoom    = errors.New("invalid_room")
)

// Hub fans events out to the sessions currently joined to a user's room.
// Events published to an empty room are dropped.
type Hub struct {
	mu               sync.RWMutex
	rooms            map[string]*room
	subscriberBuffer int
}

type room struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
}

type Subscription struct {
	hub    *Hub
	userID string
	id     uint64
	ch     chan Event
	once   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		rooms:            make(map[string]*room),
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Publish delivers event to every session of userID and returns how many received it.
// Slow sessions with a full buffer miss the event.
func (h *Hub) Publish(userID string, event Event) int {
	if h == nil {
		return 0
	}
	key := strings.TrimSpace(userID)
	if key == "" {
		return 0
	}
	h.mu.RLock()
	current := h.rooms[key]
	h.mu.RUnlock()
	if current == nil {
		return 0
	}

	current.mu.Lock()
	subs := make([]chan Event, 0, len(current.subs))
	for _, ch := range current.subs {
		subs = append(subs, ch)
	}
	current.mu.Unlock()

	delivered := 0
	for _, ch := range subs {
		select {
		case ch <- event:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribe joins userID's room.
func (h *Hub) Subscribe(userID string) (*Subscription, error) {
	if h == nil {
		return nil, ErrHubUnavailable
	}
	key := strings.TrimSpace(userID)
	if key == "" {
		return nil, ErrInvalidRoom
	}

	current := h.ensureRoom(key)
	current.mu.Lock()
	id := current.nextID
	current.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	current.subs[id] = ch
	current.mu.Unlock()

	return &Subscription{
		hub:    h,
		userID: key,
		id:     id,
		ch:     ch,
	}, nil
}

// Sessions reports how many sessions are joined to userID's room.
func (h *Hub) Sessions(userID string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	current := h.rooms[strings.TrimSpace(userID)]
	h.mu.RUnlock()
	if current == nil {
		return 0
	}
	current.mu.Lock()
	defer current.mu.Unlock()
	return len(current.subs)
}

func (h *Hub) ensureRoom(userID string) *room {
	h.mu.RLock()
	current := h.rooms[userID]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.rooms[userID]
	if current == nil {
		current = &room{subs: make(map[uint64]chan Event)}
		h.rooms[userID] = current
	}
	return current
}

func (h *Hub) unsubscribe(userID string, id uint64) {
	h.mu.RLock()
	current := h.rooms[userID]
	h.mu.RUnlock()
	if current == nil {
		return
	}

	current.mu.Lock()
	delete(current.subs, id)
	remaining := len(current.subs)
	current.mu.Unlock()
	if remaining != 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[userID] != current {
		return
	}
	current.mu.Lock()
	empty := len(current.subs) == 0
	current.mu.Unlock()
	if empty {
		delete(h.rooms, userID)
	}
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.userID, s.id)
	})
}
