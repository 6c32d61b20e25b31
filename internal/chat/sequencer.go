package chat

import "sync/atomic"

// Sequencer numbers independent requests so that only the reply to the most
// recent one is rendered. Replies to older ids are stale.
type Sequencer struct {
	latest atomic.Uint64
}

// Next returns a new id, which becomes the latest.
func (s *Sequencer) Next() uint64 {
	return s.latest.Add(1)
}

// IsLatest reports whether id is still the most recently issued one.
func (s *Sequencer) IsLatest(id uint64) bool {
	return s.latest.Load() == id
}
