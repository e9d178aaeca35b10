package embedding

import (
	"sort"
	"sync"

	"mumpsdb/core"
)

// Storage keeps embedding vectors in memory, keyed by global and canonical
// path key.
type Storage struct {
	mu      sync.RWMutex
	entries map[string]vectorEntry
}

type vectorEntry struct {
	global string
	path   core.Path
	value  core.Value
	vector []float32
}

// NewStorage creates an empty vector store
func NewStorage() *Storage {
	return &Storage{entries: make(map[string]vectorEntry)}
}

func entryKey(global string, path core.Path) string {
	return global + "|" + path.Key()
}

// Put records the vector for a node, replacing any previous one
func (st *Storage) Put(global string, path core.Path, value core.Value, vec []float32) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.entries[entryKey(global, path)] = vectorEntry{
		global: global,
		path:   path.Clone(),
		value:  value,
		vector: vec,
	}
}

// Remove drops the vector for one node
func (st *Storage) Remove(global string, path core.Path) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.entries, entryKey(global, path))
}

// RemoveGlobal drops every vector belonging to the global
func (st *Storage) RemoveGlobal(global string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for key, e := range st.entries {
		if e.global == global {
			delete(st.entries, key)
		}
	}
}

// Count returns the number of stored vectors
func (st *Storage) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}

// Nearest returns the topK entries most similar to the query vector, at or
// above the threshold, optionally limited to one global. Results are ordered by
// descending similarity.
func (st *Storage) Nearest(queryVec []float32, topK int, global string, threshold float64) []Hit {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var hits []Hit
	for _, e := range st.entries {
		if global != "" && e.global != global {
			continue
		}
		sim := CosineSimilarity(queryVec, e.vector)
		if sim < threshold {
			continue
		}
		hits = append(hits, Hit{
			Global:     e.global,
			Path:       e.path,
			Value:      e.value,
			Similarity: sim,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if hits[i].Global != hits[j].Global {
			return hits[i].Global < hits[j].Global
		}
		return hits[i].Path.Key() < hits[j].Path.Key()
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
