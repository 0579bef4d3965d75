package admission

import (
	"context"
	"sync"

	"clinsight/internal/domain"
	"clinsight/internal/port"
)

// Memory caps in-flight runs per user within a single process.
type Memory struct {
	mu       sync.Mutex
	max      int
	inFlight map[string]int
}

// NewMemory creates an in-process limiter. max <= 0 disables the cap.
func NewMemory(max int) *Memory {
	return &Memory{max: max, inFlight: make(map[string]int)}
}

var _ port.Admission = (*Memory)(nil)

func (m *Memory) Acquire(_ context.Context, userID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.max > 0 && m.inFlight[userID] >= m.max {
		return nil, domain.ErrTooManyInFlight
	}
	m.inFlight[userID]++

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.inFlight[userID] <= 1 {
				delete(m.inFlight, userID)
				return
			}
			m.inFlight[userID]--
		})
	}, nil
}

// InFlight returns the current count for userID.
func (m *Memory) InFlight(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight[userID]
}
