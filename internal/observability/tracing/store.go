package tracing

import (
	"sync"
	"time"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

const defaultMaxEvents = 4096

// EventStore is the process-wide, time-bounded metrics store and the only
// cross-request shared mutable state in the core. Events live in a bounded
// ring; events older than a requested window are excluded from snapshots but
// only evicted by ring overwrite or an explicit Reset.
type EventStore struct {
	mu        sync.RWMutex
	events    []domain.TraceEvent
	next      int
	filled    bool
	ingests   []domain.IngestEvent
	maxEvents int
}

func NewEventStore(maxEvents int) *EventStore {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	return &EventStore{
		events:    make([]domain.TraceEvent, maxEvents),
		maxEvents: maxEvents,
	}
}

func (s *EventStore) Append(event domain.TraceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[s.next] = event
	s.next++
	if s.next == s.maxEvents {
		s.next = 0
		s.filled = true
	}
}

func (s *EventStore) AppendIngest(event domain.IngestEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingests = append(s.ingests, event)
	if len(s.ingests) > s.maxEvents {
		s.ingests = s.ingests[len(s.ingests)-s.maxEvents:]
	}
}

// Snapshot returns a copy of every retrieval event at or after cutoff, so
// summary reads never observe a partially written event.
func (s *EventStore) Snapshot(cutoff time.Time) []domain.TraceEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.filled {
		n = s.maxEvents
	}
	out := make([]domain.TraceEvent, 0, n)
	for i := 0; i < n; i++ {
		if !s.events[i].Timestamp.Before(cutoff) {
			out = append(out, s.events[i])
		}
	}
	return out
}

func (s *EventStore) IngestCount(cutoff time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, e := range s.ingests {
		if !e.Timestamp.Before(cutoff) {
			count++
		}
	}
	return count
}

// Reset discards all recorded events. Used by tests and operational resets.
func (s *EventStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]domain.TraceEvent, s.maxEvents)
	s.next = 0
	s.filled = false
	s.ingests = nil
}
