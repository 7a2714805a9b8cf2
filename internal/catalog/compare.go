package catalog

import "sync"

// CompareSet holds up to two product ids picked for comparison. Picking a
// third drops the oldest pick.
type CompareSet struct {
	mu  sync.Mutex
	ids []int64
}

// Toggle adds id, or removes it if already picked, and returns the picks.
func (s *CompareSet) Toggle(id int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, picked := range s.ids {
		if picked == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return s.copyLocked()
		}
	}
	if len(s.ids) < 2 {
		s.ids = append(s.ids, id)
	} else {
		s.ids = []int64{s.ids[1], id}
	}
	return s.copyLocked()
}

func (s *CompareSet) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Ready reports whether two products are picked.
func (s *CompareSet) Ready() (id1, id2 int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) != 2 {
		return 0, 0, false
	}
	return s.ids[0], s.ids[1], true
}

func (s *CompareSet) Reset() {
	s.mu.Lock()
	s.ids = nil
	s.mu.Unlock()
}

func (s *CompareSet) copyLocked() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}
