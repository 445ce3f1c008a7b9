package models

import (
	"slices"
	"sync"

	"wordhub/internal/taxonomy"
)

// Table is the ordered entry set of one word type. Registry order is
// insertion order.
//
// The table's own lock only keeps maps and slices memory-safe for concurrent
// readers. Isolation between mutations is the registry guard's job.
type Table struct {
	mu      sync.RWMutex
	typ     taxonomy.WordType
	entries []WordEntry
	index   map[string]int
	periods int
	dirty   bool
}

// TableSnapshot is the persisted form of a Table.
type TableSnapshot struct {
	Periods int         `json:"periods"`
	Words   []WordEntry `json:"words"`
}

// NewTable returns an empty table with one elapsed period.
func NewTable(t taxonomy.WordType) *Table {
	return &Table{typ: t, index: make(map[string]int), periods: 1}
}

// Type returns the table's word type.
func (t *Table) Type() taxonomy.WordType { return t.typ }

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Periods returns the number of elapsed counting periods (>= 1).
func (t *Table) Periods() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.periods
}

// Get returns the status of word.
func (t *Table) Get(word string) (WordStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[word]
	if !ok {
		return WordStatus{}, false
	}
	return t.entries[i].Status, true
}

// Entries returns a copy of all entries in registry order.
func (t *Table) Entries() []WordEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.entries)
}

// Insert appends a new entry. It returns false and leaves the table unchanged
// when word is already present.
func (t *Table) Insert(word string, status WordStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[word]; ok {
		return false
	}
	t.index[word] = len(t.entries)
	t.entries = append(t.entries, WordEntry{Word: word, Status: status})
	return true
}

// Delete removes word, keeping the order of the remaining entries.
func (t *Table) Delete(word string) bool {
	_, _, ok := t.Take(word)
	return ok
}

// Take removes word and returns the removed entry with its position, so a
// failed save can put it back with InsertAt.
func (t *Table) Take(word string) (WordEntry, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[word]
	if !ok {
		return WordEntry{}, 0, false
	}
	e := t.entries[i]
	t.entries = slices.Delete(t.entries, i, i+1)
	delete(t.index, word)
	t.reindex(i)
	return e, i, true
}

// InsertAt puts e back at position i, clamped to the table bounds. It
// returns false when the word is already present.
func (t *Table) InsertAt(i int, e WordEntry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[e.Word]; ok {
		return false
	}
	i = min(max(i, 0), len(t.entries))
	t.entries = slices.Insert(t.entries, i, e)
	t.reindex(i)
	return true
}

func (t *Table) reindex(from int) {
	for j := from; j < len(t.entries); j++ {
		t.index[t.entries[j].Word] = j
	}
}

// Set overwrites the status of an existing word.
func (t *Table) Set(word string, status WordStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[word]
	if !ok {
		return false
	}
	t.entries[i].Status = status
	return true
}

// Reset rewrites every status to the default template, keeping keys and owners.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		t.entries[i].Status = DefaultStatus(t.entries[i].Status.Owner)
	}
}

// Hit records one match of word: today and total grow by one and the
// average is recomputed over the elapsed periods. The table becomes dirty.
func (t *Table) Hit(word string) (WordStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[word]
	if !ok {
		return WordStatus{}, false
	}
	s := &t.entries[i].Status
	s.Today++
	s.Total++
	s.Average = float64(s.Total) / float64(t.periods)
	t.dirty = true
	return *s, true
}

// Rollover closes the current counting period: temp keeps today's count,
// today restarts at zero and the period count grows.
func (t *Table) Rollover() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.periods++
	for i := range t.entries {
		s := &t.entries[i].Status
		s.Temp = s.Today
		s.Today = 0
		s.Average = float64(s.Total) / float64(t.periods)
	}
	t.dirty = true
}

// Snapshot copies the table into its persisted form.
func (t *Table) Snapshot() TableSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	words := slices.Clone(t.entries)
	if words == nil {
		words = []WordEntry{}
	}
	return TableSnapshot{Periods: t.periods, Words: words}
}

// Restore replaces the table content with snap. Duplicate words keep their
// first occurrence.
func (t *Table) Restore(snap TableSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.periods = max(snap.Periods, 1)
	t.entries = make([]WordEntry, 0, len(snap.Words))
	t.index = make(map[string]int, len(snap.Words))
	for _, e := range snap.Words {
		if _, dup := t.index[e.Word]; dup || e.Word == "" {
			continue
		}
		t.index[e.Word] = len(t.entries)
		t.entries = append(t.entries, e)
	}
}

// TakeDirty reports and clears the dirty flag set by Hit and Rollover.
func (t *Table) TakeDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.dirty
	t.dirty = false
	return d
}

// MarkDirty flags the table for the next periodic flush.
func (t *Table) MarkDirty() {
	t.mu.Lock()
	t.dirty = true
	t.mu.Unlock()
}
