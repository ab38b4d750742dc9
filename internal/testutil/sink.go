package testutil

import (
	"context"
	"sync"
)

// Record is one message received by a RecordingSink.
type Record struct {
	Endpoint string
	Message  string
}

// RecordingSink captures every message it receives. Set Err to make Log fail.
type RecordingSink struct {
	Err     error
	records []Record
	mu      sync.Mutex
}

// Log records the message and returns s.Err.
func (s *RecordingSink) Log(_ context.Context, endpoint, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, Record{Endpoint: endpoint, Message: message})
	return s.Err
}

// Records returns a copy of the recorded messages in arrival order.
func (s *RecordingSink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Messages returns only the message bodies in arrival order.
func (s *RecordingSink) Messages() []string {
	records := s.Records()
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Message
	}
	return out
}
