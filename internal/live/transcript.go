package live

import (
	"strings"
	"sync"
	"time"

	"github.com/ritz-devbox/decisiv/domain/entities"
)

// Aggregator accumulates streamed partial text into turn-complete
// transcript entries. Partial text for the current turn is buffered apart
// from committed entries and only becomes one when the remote signals the
// turn complete.
type Aggregator struct {
	mu      sync.Mutex
	pending strings.Builder
}

// Append concatenates a streamed delta onto the pending turn.
func (a *Aggregator) Append(delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending.WriteString(delta)
}

// Commit emits the accumulated text as a transcript entry and clears the
// buffer. Returns false when nothing was pending.
func (a *Aggregator) Commit(role entities.TranscriptRole) (entities.TranscriptEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending.Len() == 0 {
		return entities.TranscriptEntry{}, false
	}
	entry := entities.TranscriptEntry{
		Role:      role,
		Text:      a.pending.String(),
		Timestamp: time.Now(),
	}
	a.pending.Reset()
	return entry, true
}

// Reset clears the pending buffer without emitting.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending.Reset()
}

// Pending returns the not-yet-committed text of the current turn.
func (a *Aggregator) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending.String()
}
