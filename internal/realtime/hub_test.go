package realtime

import (
	"encoding/json"
	"sync"
	"testing"
)

type memorySession struct {
	userID uint
	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (s *memorySession) UserID() uint { return s.userID }

func (s *memorySession) Enqueue(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.frames = append(s.frames, data)
	return true
}

func (s *memorySession) received() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Envelope, 0, len(s.frames))
	for _, frame := range s.frames {
		var env Envelope
		if err := json.Unmarshal(frame, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

func TestHubEmitToChatReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub()
	alice := &memorySession{userID: 1}
	bob := &memorySession{userID: 2}
	carol := &memorySession{userID: 3}

	hub.Join("room-a", alice)
	hub.Join("room-a", bob)
	hub.Join("room-b", carol)

	hub.EmitToChat("room-a", "new-message", map[string]string{"text": "hi"})

	if got := len(alice.received()); got != 1 {
		t.Errorf("alice frames: got %d, want 1", got)
	}
	if got := len(bob.received()); got != 1 {
		t.Errorf("bob frames: got %d, want 1", got)
	}
	if got := len(carol.received()); got != 0 {
		t.Errorf("carol is in another room but got %d frames", got)
	}
	if events := alice.received(); events[0].Event != "new-message" {
		t.Errorf("event name: got %q", events[0].Event)
	}
}

func TestHubEmitToChatExceptSkipsAllSessionsOfUser(t *testing.T) {
	hub := NewHub()
	phone := &memorySession{userID: 1}
	laptop := &memorySession{userID: 1}
	bob := &memorySession{userID: 2}

	hub.Join("room", phone)
	hub.Join("room", laptop)
	hub.Join("room", bob)

	hub.EmitToChatExcept("room", 1, "user-typing", map[string]uint{"user_id": 1})

	if len(phone.received()) != 0 || len(laptop.received()) != 0 {
		t.Errorf("excluded user still received frames")
	}
	if len(bob.received()) != 1 {
		t.Errorf("bob frames: got %d, want 1", len(bob.received()))
	}
}

func TestHubLeaveAndLeaveAll(t *testing.T) {
	hub := NewHub()
	sess := &memorySession{userID: 1}

	hub.Join("a", sess)
	hub.Join("b", sess)
	if !hub.InRoom("a", sess) || !hub.InRoom("b", sess) {
		t.Fatalf("join did not register session")
	}

	hub.Leave("a", sess)
	if hub.InRoom("a", sess) {
		t.Errorf("still in room a after Leave")
	}
	if !hub.InRoom("b", sess) {
		t.Errorf("Leave removed session from unrelated room")
	}

	hub.LeaveAll(sess)
	if hub.InRoom("b", sess) {
		t.Errorf("still in room b after LeaveAll")
	}

	// Leaving twice is harmless
	hub.Leave("a", sess)
	hub.LeaveAll(sess)
}

func TestHubDropsFramesForSlowConsumers(t *testing.T) {
	hub := NewHub()
	slow := &memorySession{userID: 1, full: true}
	fast := &memorySession{userID: 2}

	hub.Join("room", slow)
	hub.Join("room", fast)

	hub.EmitToChat("room", "new-message", nil)

	// The slow consumer's drop must not affect the fast one
	if len(fast.received()) != 1 {
		t.Errorf("fast session frames: got %d, want 1", len(fast.received()))
	}
	if len(slow.received()) != 0 {
		t.Errorf("slow session should have dropped the frame")
	}
}

func TestHubConcurrentJoinEmitLeave(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			sess := &memorySession{userID: id}
			hub.Join("room", sess)
			hub.EmitToChat("room", "new-message", nil)
			hub.Leave("room", sess)
		}(uint(i))
	}
	wg.Wait()
}
