package service

import "sync"

// subjectLocks hands out one mutex per subject so ledger commits and alert
// dedup checks for the same subject are serialized while different subjects
// proceed in parallel. Entries are never evicted; the set is bounded by the
// enrolled population.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{locks: make(map[uint]*sync.Mutex)}
}

// acquire locks the subject's mutex and returns the matching unlock.
func (s *subjectLocks) acquire(subjectID uint) func() {
	s.mu.Lock()
	lock, ok := s.locks[subjectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[subjectID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
