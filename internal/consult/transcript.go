package consult

import (
	"sync"

	"github.com/google/uuid"
)

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
	SpeakerSystem    Speaker = "system"
)

// Entry is one transcript line. While Complete is false the text may
// still grow; it never shrinks, and once Complete it never changes.
type Entry struct {
	ID       string  `json:"id"`
	Speaker  Speaker `json:"speaker"`
	Text     string  `json:"text"`
	Complete bool    `json:"complete"`
}

// Transcript is the append-only record of a consultation. Entries keep
// their position for the session's lifetime; streamed entries are updated
// in place by ID.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

func NewTranscript() *Transcript {
	return &Transcript{index: make(map[string]int)}
}

// Append adds a finished entry and returns it.
func (t *Transcript) Append(speaker Speaker, text string) Entry {
	return t.add(Entry{ID: uuid.NewString(), Speaker: speaker, Text: text, Complete: true})
}

// Start adds an empty in-progress entry for streaming.
func (t *Transcript) Start(speaker Speaker) Entry {
	return t.add(Entry{ID: uuid.NewString(), Speaker: speaker})
}

func (t *Transcript) add(e Entry) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.index[e.ID] = len(t.entries)
	t.entries = append(t.entries, e)
	return e
}

// AppendDelta grows an in-progress entry and returns the updated copy.
// Deltas against unknown or completed entries are dropped.
func (t *Transcript) AppendDelta(id, delta string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[id]
	if !ok || t.entries[i].Complete {
		return Entry{}, false
	}
	t.entries[i].Text += delta
	return t.entries[i], true
}

// Finalize marks an entry complete. A non-empty override replaces the
// accumulated text, which is how a failed stream becomes an apology line
// instead of a dangling fragment.
func (t *Transcript) Finalize(id, override string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[id]
	if !ok || t.entries[i].Complete {
		return Entry{}, false
	}
	if override != "" {
		t.entries[i].Text = override
	}
	t.entries[i].Complete = true
	return t.entries[i], true
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns a snapshot in insertion order.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
