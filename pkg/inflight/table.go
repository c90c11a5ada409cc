// Package inflight tracks strokes that have started but not yet been committed.
package inflight

import (
	"hash/fnv"
	"sync"
)

const shardCount = 16

// Entry is a copy of one in-flight stroke.
type Entry struct {
	ID     string
	Points []float64
}

type shard struct {
	mu      sync.Mutex
	strokes map[string][]float64
}

// Table is a process-wide map from stroke id to accumulated points. It is sharded by id so that
// unrelated strokes do not contend, and each lock is held for exactly one map operation.
type Table struct {
	shards [shardCount]*shard
}

func New() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i] = &shard{strokes: make(map[string][]float64)}
	}
	return t
}

func (t *Table) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return t.shards[h.Sum32()%shardCount]
}

// Start creates the entry for id, replacing any existing one.
func (t *Table) Start(id string, first []float64) {
	pts := make([]float64, len(first), len(first)+64)
	copy(pts, first)
	s := t.shardFor(id)
	s.mu.Lock()
	s.strokes[id] = pts
	s.mu.Unlock()
}

// Append extends the entry for id and reports whether it existed. Unknown ids are ignored.
func (t *Table) Append(id string, pts []float64) bool {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.strokes[id]
	if !ok {
		return false
	}
	s.strokes[id] = append(existing, pts...)
	return true
}

// Finalize removes the entry for id and returns its points, or an empty slice if there was none.
func (t *Table) Finalize(id string) []float64 {
	s := t.shardFor(id)
	s.mu.Lock()
	pts, ok := s.strokes[id]
	delete(s.strokes, id)
	s.mu.Unlock()
	if !ok {
		return []float64{}
	}
	return pts
}

// Discard removes the entry for id and reports whether there was one.
func (t *Table) Discard(id string) bool {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.strokes[id]
	delete(s.strokes, id)
	return ok
}

// Snapshot returns a copy of every entry. Entries are consistent individually; the table as a whole
// is not frozen while the copy is taken.
func (t *Table) Snapshot() []Entry {
	var out []Entry
	for _, s := range t.shards {
		s.mu.Lock()
		for id, pts := range s.strokes {
			cp := make([]float64, len(pts))
			copy(cp, pts)
			out = append(out, Entry{ID: id, Points: cp})
		}
		s.mu.Unlock()
	}
	return out
}

func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += len(s.strokes)
		s.mu.Unlock()
	}
	return n
}
