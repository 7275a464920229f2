package mocks

import (
	"github.com/mcoot/wordbomb/internal/dependencies/random"
)

var _ random.Random = (*MockRandom)(nil)

// MockRandom replays queued picks. Each pick is clamped into [0, n); once the queue
// is drained every call returns 0.
type MockRandom struct {
	picks []int
	calls int
}

func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

func (r *MockRandom) Intn(n int) int {
	r.calls++
	if len(r.picks) == 0 || n <= 0 {
		return 0
	}
	pick := r.picks[0]
	r.picks = r.picks[1:]
	return min(max(pick, 0), n-1)
}

// QueueIntn appends picks to replay
func (r *MockRandom) QueueIntn(values ...int) {
	r.picks = append(r.picks, values...)
}

// Calls reports how many picks have been requested
func (r *MockRandom) Calls() int {
	return r.calls
}
