// Package history keeps the bounded, deduplicated log of completed
// generations. The log itself is pure slice logic; persistence sits behind a
// small Store interface so the backing store is swappable.
package history

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxEntries caps the history; the oldest entries beyond it are dropped.
const MaxEntries = 20

// Entry is one completed generation. Entries are immutable once created.
type Entry struct {
	ID         string `json:"id"`
	Timestamp  int64  `json:"timestamp"` // epoch millis
	Title      string `json:"title"`
	LessonPlan string `json:"lessonPlan"`
}

func NewEntry(title, lessonPlan string) Entry {
	return Entry{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UnixMilli(),
		Title:      title,
		LessonPlan: lessonPlan,
	}
}

// Add returns a new newest-first list with entry at the front. An existing
// entry whose trimmed plan text matches exactly is replaced rather than
// duplicated, and the result is capped at MaxEntries.
func Add(entry Entry, current []Entry) []Entry {
	trimmed := strings.TrimSpace(entry.LessonPlan)

	updated := make([]Entry, 0, len(current)+1)
	updated = append(updated, entry)
	for _, existing := range current {
		if strings.TrimSpace(existing.LessonPlan) == trimmed {
			continue
		}
		updated = append(updated, existing)
	}

	if len(updated) > MaxEntries {
		updated = updated[:MaxEntries]
	}
	return updated
}

// Store persists the full ordered list. Save overwrites everything on each
// mutation; Load treats malformed stored data as an empty history.
type Store interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
}

// Log is the in-memory history backed by a Store. Mutations are serialized,
// and persistence failures are logged but never surfaced: a failed load is
// an empty history, a failed save is a no-op.
type Log struct {
	store Store
	warnf func(format string, args ...any)

	mu      sync.Mutex
	entries []Entry
}

func NewLog(store Store, warnf func(format string, args ...any)) *Log {
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	l := &Log{store: store, warnf: warnf}

	entries, err := store.Load()
	if err != nil {
		warnf("failed to load history: %v", err)
		entries = nil
	}
	l.entries = entries
	return l
}

// Entries returns a copy of the log, newest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Append(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = Add(entry, l.entries)
	l.persistLocked()
}

// Delete removes the entry matching the ID or unique ID prefix, reporting
// whether anything was removed.
func (l *Log) Delete(id string) bool {
	match, ok := l.Find(id)
	if !ok {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	for _, entry := range l.entries {
		if entry.ID != match.ID {
			kept = append(kept, entry)
		}
	}
	l.entries = kept
	l.persistLocked()
	return true
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.persistLocked()
}

// Find looks an entry up by ID or by unique ID prefix.
func (l *Log) Find(id string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var match Entry
	var found bool
	for _, entry := range l.entries {
		if entry.ID == id {
			return entry, true
		}
		if strings.HasPrefix(entry.ID, id) {
			if found {
				return Entry{}, false // ambiguous prefix
			}
			match, found = entry, true
		}
	}
	return match, found
}

func (l *Log) persistLocked() {
	if err := l.store.Save(l.entries); err != nil {
		l.warnf("failed to save history: %v", err)
	}
}
