package rooms

import (
	"fmt"
	"sync"
)

// RegistryStats is the point-in-time registry occupancy.
type RegistryStats struct {
	ActiveRooms int `json:"activeRooms"`
	MaxRooms    int `json:"maxRooms"`
}

// Registry is the capacity-bounded room store. Rooms are destroyed only
// by explicit action, never evicted by time.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	maxRooms int
}

func NewRegistry(maxRooms int) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		maxRooms: maxRooms,
	}
}

// ErrCapReached is returned when the registry is full.
var ErrCapReached = fmt.Errorf("room cap reached")

// Create returns the existing room for a code, or creates one. A full
// registry returns ErrCapReached.
func (s *Registry) Create(code string, nowMs int64) (*Room, error) {
	code = NormalizeCode(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rooms[code]; ok {
		return existing, nil
	}
	if len(s.rooms) >= s.maxRooms {
		return nil, ErrCapReached
	}
	room := NewRoom(code, nowMs)
	s.rooms[code] = room
	return room, nil
}

// CreateWithGeneratedCode creates a room under a fresh random code.
func (s *Registry) CreateWithGeneratedCode(nowMs int64) (*Room, error) {
	for range 10 {
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		s.mu.Lock()
		if _, exists := s.rooms[code]; exists {
			s.mu.Unlock()
			continue
		}
		if len(s.rooms) >= s.maxRooms {
			s.mu.Unlock()
			return nil, ErrCapReached
		}
		room := NewRoom(code, nowMs)
		s.rooms[code] = room
		s.mu.Unlock()
		return room, nil
	}
	return nil, fmt.Errorf("failed to generate unique room code after 10 attempts")
}

// Get returns the room for a code, nil if absent.
func (s *Registry) Get(code string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[NormalizeCode(code)]
}

// Destroy removes a room.
func (s *Registry) Destroy(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, NormalizeCode(code))
}

// List returns all rooms in arbitrary order.
func (s *Registry) List() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	return list
}

// Stats reports occupancy.
func (s *Registry) Stats() RegistryStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RegistryStats{ActiveRooms: len(s.rooms), MaxRooms: s.maxRooms}
}
