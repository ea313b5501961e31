package sshsession

import (
	"sync"
)

// defaultScrollbackSize is used when the configured size is zero.
const defaultScrollbackSize = 256 * 1024

// ScrollbackBuffer keeps the most recent terminal output of a session so a
// reattaching client can repaint. Older data is trimmed from the front.
type ScrollbackBuffer struct {
	mu     sync.Mutex
	data   []byte
	maxLen int
}

// NewScrollbackBuffer creates a buffer holding at most maxLen bytes.
// If maxLen <= 0, defaultScrollbackSize is used.
func NewScrollbackBuffer(maxLen int) *ScrollbackBuffer {
	if maxLen <= 0 {
		maxLen = defaultScrollbackSize
	}
	return &ScrollbackBuffer{maxLen: maxLen}
}

func (s *ScrollbackBuffer) Write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(p) >= s.maxLen {
		s.data = append(s.data[:0], p[len(p)-s.maxLen:]...)
		return
	}
	if over := len(s.data) + len(p) - s.maxLen; over > 0 {
		n := copy(s.data, s.data[over:])
		s.data = s.data[:n]
	}
	s.data = append(s.data, p...)
}

// Snapshot returns a copy of the current contents.
func (s *ScrollbackBuffer) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]byte, len(s.data))
	copy(result, s.data)
	return result
}

func (s *ScrollbackBuffer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
